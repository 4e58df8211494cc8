package syncservice

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/normalize"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

const (
	endpointCharacterInfo      = "eve:CharacterInfo"
	endpointCharacterSheet     = "char:CharacterSheet"
	endpointMarketOrders       = "char:MarketOrders"
	endpointWalletJournal      = "char:WalletJournal"
	endpointWalletTransactions = "char:WalletTransactions"
)

// walletRowCount is the max number of rows requested from wallet endpoints.
const walletRowCount = 1000

type CharacterUpdateParams struct {
	CharacterID int32
	KeyID       int64         // key to use. When zero the character's first key is used.
	Timeout     time.Duration // timeout for each fetch. When zero the policy's timeout is used.
}

// CharacterUpdateResult reports the outcome of a character update.
type CharacterUpdateResult struct {
	Character      *app.Character
	Info           normalize.Attrs // attributes from the character info
	JournalRefIDs  []int64         // ref IDs of updated journal entries
	Orders         []app.CharacterOrder
	Sheet          normalize.Attrs // attributes from the character sheet
	TransactionIDs []int64         // IDs of updated wallet transactions
}

// UpdateCharacter fetches all data of a character and stores it.
//
// All fetches run concurrently and must succeed before anything is stored.
func (s *SyncService) UpdateCharacter(ctx context.Context, arg CharacterUpdateParams) (*CharacterUpdateResult, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("UpdateCharacter: %d: %w", arg.CharacterID, err)
	}
	if arg.CharacterID == 0 {
		return nil, wrapErr(app.ErrInvalid)
	}
	if s.fetcher == nil {
		return nil, wrapErr(fmt.Errorf("no remote fetcher: %w", app.ErrInvalid))
	}
	key := fmt.Sprintf("UpdateCharacter-%d-%d-%s", arg.CharacterID, arg.KeyID, arg.Timeout)
	x, err, _ := s.sfg.Do(key, func() (any, error) {
		return s.updateCharacter(ctx, arg)
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return x.(*CharacterUpdateResult), nil
}

type characterPayloads struct {
	info         map[string]any
	journal      map[string]any
	orders       map[string]any
	sheet        map[string]any
	transactions map[string]any
}

func (s *SyncService) updateCharacter(ctx context.Context, arg CharacterUpdateParams) (*CharacterUpdateResult, error) {
	logger := newRunLogger("UpdateCharacter", "characterID", arg.CharacterID)
	if _, err := s.st.GetCharacter(ctx, arg.CharacterID); err != nil {
		return nil, err
	}
	key, err := s.characterKey(ctx, arg)
	if err != nil {
		return nil, err
	}
	p, err := s.fetchCharacterPayloads(ctx, key, arg)
	if err != nil {
		return nil, err
	}

	// Everything is parsed before the first write so that a bad payload does not leave partial data.
	transactions, err := walletTransactionsFromPayload(arg.CharacterID, p.transactions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointWalletTransactions, err)
	}
	journal, err := walletJournalFromPayload(arg.CharacterID, p.journal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointWalletJournal, err)
	}
	orders, err := ordersFromPayload(p.orders)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointMarketOrders, err)
	}
	sheet := characterAttrs(p.sheet)
	sheetPatch, err := characterPatchFromAttrs(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointCharacterSheet, err)
	}
	info := characterAttrs(p.info)
	infoPatch, err := characterPatchFromAttrs(info)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointCharacterInfo, err)
	}

	r := &CharacterUpdateResult{Info: info, Orders: orders, Sheet: sheet}
	for _, t := range transactions {
		if err := s.st.UpdateOrCreateCharacterWalletTransaction(ctx, t); err != nil {
			return nil, err
		}
		r.TransactionIDs = append(r.TransactionIDs, t.TransactionID)
	}
	for _, j := range journal {
		if err := s.st.UpdateOrCreateCharacterWalletJournalEntry(ctx, j); err != nil {
			return nil, err
		}
		r.JournalRefIDs = append(r.JournalRefIDs, j.RefID)
	}
	patch := sheetPatch.Merge(infoPatch).Merge(app.CharacterPatch{Orders: optional.New(orders)})
	if _, err := s.saveCharacter(ctx, arg.CharacterID, patch); err != nil {
		return nil, err
	}
	r.Character, err = s.st.GetCharacter(ctx, arg.CharacterID)
	if err != nil {
		return nil, err
	}
	logger.Info(
		"Updated character",
		"keyID", key.ID,
		"transactions", len(r.TransactionIDs),
		"journal", len(r.JournalRefIDs),
		"orders", len(r.Orders),
	)
	return r, nil
}

// characterKey returns the account key for accessing a character.
func (s *SyncService) characterKey(ctx context.Context, arg CharacterUpdateParams) (*app.AccountKey, error) {
	if arg.KeyID != 0 {
		return s.st.GetAccountKey(ctx, arg.KeyID)
	}
	keys, err := s.st.ListCharacterAccountKeys(ctx, arg.CharacterID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no account key for character %d: %w", arg.CharacterID, app.ErrNotFound)
	}
	return keys[0], nil
}

// fetchCharacterPayloads fetches all character endpoints concurrently.
// The first failure cancels the remaining fetches.
func (s *SyncService) fetchCharacterPayloads(ctx context.Context, key *app.AccountKey, arg CharacterUpdateParams) (characterPayloads, error) {
	var p characterPayloads
	base := keyParams(key)
	base["characterID"] = strconv.Itoa(int(arg.CharacterID))
	wallet := maps.Clone(base)
	wallet["rowCount"] = strconv.Itoa(walletRowCount)
	g, ctx := errgroup.WithContext(ctx)
	fetch := func(endpoint string, params map[string]string, dst *map[string]any) {
		g.Go(func() error {
			ctx, cancel := s.withTimeout(ctx, arg.Timeout)
			defer cancel()
			data, err := s.fetcher.Fetch(ctx, endpoint, params)
			if err != nil {
				return err
			}
			*dst = data
			return nil
		})
	}
	fetch(endpointWalletTransactions, wallet, &p.transactions)
	fetch(endpointWalletJournal, wallet, &p.journal)
	fetch(endpointMarketOrders, base, &p.orders)
	fetch(endpointCharacterSheet, base, &p.sheet)
	fetch(endpointCharacterInfo, base, &p.info)
	if err := g.Wait(); err != nil {
		return p, err
	}
	return p, nil
}

func walletTransactionsFromPayload(characterID int32, data map[string]any) ([]storage.UpdateOrCreateCharacterWalletTransactionParams, error) {
	rr, err := rows(normalize.Flatten(data), "transactions")
	if err != nil {
		return nil, err
	}
	oo := make([]storage.UpdateOrCreateCharacterWalletTransactionParams, 0, len(rr))
	for _, a := range rr {
		o, err := walletTransactionFromAttrs(characterID, a)
		if err != nil {
			return nil, err
		}
		oo = append(oo, o)
	}
	return oo, nil
}

func walletTransactionFromAttrs(characterID int32, a normalize.Attrs) (storage.UpdateOrCreateCharacterWalletTransactionParams, error) {
	var errs []error
	o := storage.UpdateOrCreateCharacterWalletTransactionParams{
		CharacterID:     characterID,
		ClientName:      a.String("clientName").ValueOrZero(),
		StationName:     a.String("stationName").ValueOrZero(),
		TransactionFor:  a.String("transactionFor").ValueOrZero(),
		TransactionType: a.String("transactionType").ValueOrZero(),
		TypeName:        a.String("typeName").ValueOrZero(),
	}
	id, err := requiredInt64(a, "transactionID")
	errs = append(errs, err)
	o.TransactionID = id
	date, err := a.Time("transactionDateTime")
	errs = append(errs, err)
	o.Date = date.ValueOrZero()
	quantity, err := a.Int32("quantity")
	errs = append(errs, err)
	o.Quantity = quantity.ValueOrZero()
	typeID, err := a.Int32("typeID")
	errs = append(errs, err)
	o.TypeID = typeID.ValueOrZero()
	price, err := a.Float64("price")
	errs = append(errs, err)
	o.Price = price.ValueOrZero()
	o.ClientID, err = a.Int64("clientID")
	errs = append(errs, err)
	o.StationID, err = a.Int64("stationID")
	errs = append(errs, err)
	o.JournalRefID, err = a.Int64("journalTransactionID")
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return o, fmt.Errorf("transaction %d: %w", id, err)
	}
	return o, nil
}

func walletJournalFromPayload(characterID int32, data map[string]any) ([]storage.UpdateOrCreateCharacterWalletJournalEntryParams, error) {
	rr, err := rows(normalize.Flatten(data), "transactions")
	if err != nil {
		return nil, err
	}
	oo := make([]storage.UpdateOrCreateCharacterWalletJournalEntryParams, 0, len(rr))
	for _, a := range rr {
		o, err := walletJournalEntryFromAttrs(characterID, a)
		if err != nil {
			return nil, err
		}
		oo = append(oo, o)
	}
	return oo, nil
}

func walletJournalEntryFromAttrs(characterID int32, a normalize.Attrs) (storage.UpdateOrCreateCharacterWalletJournalEntryParams, error) {
	var errs []error
	o := storage.UpdateOrCreateCharacterWalletJournalEntryParams{
		ArgName:     a.String("argName1").ValueOrZero(),
		CharacterID: characterID,
		OwnerName1:  a.String("ownerName1").ValueOrZero(),
		OwnerName2:  a.String("ownerName2").ValueOrZero(),
		Reason:      a.String("reason").ValueOrZero(),
	}
	id, err := requiredInt64(a, "refID")
	errs = append(errs, err)
	o.RefID = id
	date, err := a.Time("date")
	errs = append(errs, err)
	o.Date = date.ValueOrZero()
	refTypeID, err := a.Int32("refTypeID")
	errs = append(errs, err)
	o.RefTypeID = refTypeID.ValueOrZero()
	amount, err := a.Float64("amount")
	errs = append(errs, err)
	o.Amount = amount.ValueOrZero()
	balance, err := a.Float64("balance")
	errs = append(errs, err)
	o.Balance = balance.ValueOrZero()
	o.OwnerID1, err = a.Int64("ownerID1")
	errs = append(errs, err)
	o.OwnerID2, err = a.Int64("ownerID2")
	errs = append(errs, err)
	o.ArgID, err = a.Int64("argID1")
	errs = append(errs, err)
	o.TaxReceiverID, err = a.Int64("taxReceiverID")
	errs = append(errs, err)
	o.TaxAmount, err = a.Float64("taxAmount")
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return o, fmt.Errorf("journal entry %d: %w", id, err)
	}
	return o, nil
}

// ordersFromPayload returns the market orders of a character ordered by order ID.
func ordersFromPayload(data map[string]any) ([]app.CharacterOrder, error) {
	rr, err := rows(normalize.Flatten(data), "orders")
	if err != nil {
		return nil, err
	}
	oo := make([]app.CharacterOrder, len(rr))
	for i, a := range rr {
		oo[i] = app.CharacterOrder(a)
	}
	return oo, nil
}
