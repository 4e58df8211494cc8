package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ErikKalkoken/go-set"
	"github.com/icrowley/fake"
	"github.com/jmoiron/sqlx"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

// EVE IDs
const (
	startIDAccountKey  = 1_000_001
	startIDCharacter   = 90_000_001
	startIDCorporation = 98_000_001
	startIDMarketGroup = 1_001
	startIDType        = 101
)

// Factory creates objects with random values in the database for tests.
type Factory struct {
	st *storage.Storage
	db *sqlx.DB
}

func NewFactory(st *storage.Storage, db *sqlx.DB) Factory {
	f := Factory{st: st, db: db}
	return f
}

func (f Factory) RandomTime() time.Time {
	hours := time.Duration(rand.IntN(100_000))
	seconds := time.Duration(rand.IntN(3600))
	d := hours*time.Hour + seconds*time.Second
	return time.Now().Add(-d).UTC()
}

// CreateAccountKey creates and returns a new account key.
func (f Factory) CreateAccountKey(args ...storage.CreateAccountKeyParams) *app.AccountKey {
	var arg storage.CreateAccountKeyParams
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.ID == 0 {
		arg.ID = f.calcNewID("account_keys", "id", startIDAccountKey)
	}
	if arg.VerificationCode == "" {
		arg.VerificationCode = fake.Password(32, 64, true, true, false)
	}
	ctx := context.Background()
	if err := f.st.CreateAccountKey(ctx, arg); err != nil {
		panic(err)
	}
	k, err := f.st.GetAccountKey(ctx, arg.ID)
	if err != nil {
		panic(err)
	}
	return k
}

// CreateCharacter creates and returns a new character.
// Empty fields are filled with random values, except orders.
func (f Factory) CreateCharacter(args ...app.Character) *app.Character {
	var arg app.Character
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.ID == 0 {
		arg.ID = int32(f.calcNewID("characters", "id", startIDCharacter))
	}
	if arg.Name == "" {
		arg.Name = fake.FullName()
	}
	if arg.CorporationID.IsEmpty() {
		arg.CorporationID = optional.New(int32(startIDCorporation + rand.IntN(1000)))
	}
	if arg.CorporationName == "" {
		arg.CorporationName = fake.Company()
	}
	if arg.AccountBalance.IsEmpty() {
		arg.AccountBalance = optional.New(rand.Float64() * 10_000_000_000)
	}
	if arg.Race == "" {
		arg.Race = "Caldari"
	}
	if arg.Gender == "" {
		arg.Gender = fake.Gender()
	}
	c, err := f.st.CreateCharacter(context.Background(), arg)
	if err != nil {
		panic(err)
	}
	return c
}

// AttachCharacters attaches characters to an account key.
func (f Factory) AttachCharacters(keyID int64, characterIDs ...int32) {
	ctx := context.Background()
	for _, id := range characterIDs {
		if err := f.st.AttachAccountKeyCharacters(ctx, keyID, set.Of(id)); err != nil {
			panic(err)
		}
	}
}

func (f Factory) CreateCharacterToken(args ...storage.UpdateOrCreateCharacterTokenParams) *app.CharacterToken {
	var arg storage.UpdateOrCreateCharacterTokenParams
	ctx := context.Background()
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.AccessToken == "" {
		arg.AccessToken = fmt.Sprintf("GeneratedAccessToken#%d", rand.IntN(1000000))
	}
	if arg.RefreshToken == "" {
		arg.RefreshToken = fmt.Sprintf("GeneratedRefreshToken#%d", rand.IntN(1000000))
	}
	if arg.ExpiresAt.IsZero() {
		arg.ExpiresAt = time.Now().Add(time.Minute * 20).UTC()
	}
	if arg.TokenType == "" {
		arg.TokenType = "Bearer"
	}
	if arg.Scopes == nil {
		arg.Scopes = []string{"esi-markets.structure_markets.v1"}
	}
	if arg.CharacterID == 0 {
		c := f.CreateCharacter()
		arg.CharacterID = c.ID
	}
	err := f.st.UpdateOrCreateCharacterToken(ctx, arg)
	if err != nil {
		panic(err)
	}
	x, err := f.st.GetCharacterToken(ctx, arg.CharacterID)
	if err != nil {
		panic(err)
	}
	return x
}

func (f Factory) CreateCharacterWalletJournalEntry(args ...storage.UpdateOrCreateCharacterWalletJournalEntryParams) *app.CharacterWalletJournalEntry {
	ctx := context.Background()
	var arg storage.UpdateOrCreateCharacterWalletJournalEntryParams
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.CharacterID == 0 {
		x := f.CreateCharacter()
		arg.CharacterID = x.ID
	}
	if arg.RefID == 0 {
		arg.RefID = f.calcNewIDWithCharacter("character_wallet_journal_entries", "ref_id", arg.CharacterID)
	}
	if arg.Amount == 0 {
		arg.Amount = (rand.Float64() - 0.5) * 10_000_000
	}
	if arg.Balance == 0 {
		arg.Balance = rand.Float64() * 100_000_000_000
	}
	if arg.Date.IsZero() {
		arg.Date = f.RandomTime()
	}
	if arg.Reason == "" {
		arg.Reason = fake.Sentence()
	}
	if arg.RefTypeID == 0 {
		arg.RefTypeID = 10
	}
	if arg.OwnerName1 == "" {
		arg.OwnerName1 = fake.FullName()
	}
	if arg.OwnerName2 == "" {
		arg.OwnerName2 = fake.FullName()
	}
	if err := f.st.UpdateOrCreateCharacterWalletJournalEntry(ctx, arg); err != nil {
		panic(fmt.Sprintf("%s|%+v", err, arg))
	}
	i, err := f.st.GetCharacterWalletJournalEntry(ctx, storage.GetCharacterWalletJournalEntryParams{
		CharacterID: arg.CharacterID,
		RefID:       arg.RefID,
	})
	if err != nil {
		panic(err)
	}
	return i
}

func (f Factory) CreateCharacterWalletTransaction(args ...storage.UpdateOrCreateCharacterWalletTransactionParams) *app.CharacterWalletTransaction {
	ctx := context.Background()
	var arg storage.UpdateOrCreateCharacterWalletTransactionParams
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.CharacterID == 0 {
		x := f.CreateCharacter()
		arg.CharacterID = x.ID
	}
	if arg.TransactionID == 0 {
		arg.TransactionID = f.calcNewIDWithCharacter("character_wallet_transactions", "transaction_id", arg.CharacterID)
	}
	if arg.Date.IsZero() {
		arg.Date = f.RandomTime()
	}
	if arg.Price == 0 {
		arg.Price = rand.Float64() * 10_000_000
	}
	if arg.Quantity == 0 {
		arg.Quantity = rand.Int32N(1000) + 1
	}
	if arg.TypeID == 0 {
		arg.TypeID = int32(startIDType + rand.IntN(1000))
	}
	if arg.TypeName == "" {
		arg.TypeName = fake.Product()
	}
	if arg.TransactionType == "" {
		arg.TransactionType = "buy"
	}
	if arg.TransactionFor == "" {
		arg.TransactionFor = "personal"
	}
	if arg.ClientName == "" {
		arg.ClientName = fake.FullName()
	}
	if err := f.st.UpdateOrCreateCharacterWalletTransaction(ctx, arg); err != nil {
		panic(fmt.Sprintf("%s|%+v", err, arg))
	}
	i, err := f.st.GetCharacterWalletTransaction(ctx, storage.GetCharacterWalletTransactionParams{
		CharacterID:   arg.CharacterID,
		TransactionID: arg.TransactionID,
	})
	if err != nil {
		panic(err)
	}
	return i
}

func (f Factory) CreateMarketGroup(args ...storage.UpdateOrCreateMarketGroupParams) *app.MarketGroup {
	ctx := context.Background()
	var arg storage.UpdateOrCreateMarketGroupParams
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.ID == 0 {
		arg.ID = int32(f.calcNewID("market_groups", "id", startIDMarketGroup))
	}
	if arg.Name == "" {
		arg.Name = fake.ProductName()
	}
	if err := f.st.UpdateOrCreateMarketGroup(ctx, arg); err != nil {
		panic(err)
	}
	o, err := f.st.GetMarketGroup(ctx, arg.ID)
	if err != nil {
		panic(err)
	}
	return o
}

type MarketTypeParams struct {
	BuyOrders     []app.MarketOrder
	History       []app.MarketHistoryItem
	MarketGroupID int32
	RegionID      int32
	SellOrders    []app.MarketOrder
	TypeID        int32
	UpdatedAt     time.Time
}

// CreateMarketType creates and returns a new market type.
// Market data is only stored when at least one list is given.
// UpdatedAt can be used to fake an earlier update.
func (f Factory) CreateMarketType(args ...MarketTypeParams) *app.MarketType {
	ctx := context.Background()
	var arg MarketTypeParams
	if len(args) > 0 {
		arg = args[0]
	}
	if arg.RegionID == 0 {
		arg.RegionID = 10000002
	}
	if arg.TypeID == 0 {
		arg.TypeID = int32(f.calcNewIDWithParam("market_types", "type_id", "region_id", int64(arg.RegionID), startIDType))
	}
	err := f.st.CreateMarketType(ctx, storage.CreateMarketTypeParams{
		MarketGroupID: arg.MarketGroupID,
		RegionID:      arg.RegionID,
		TypeID:        arg.TypeID,
	})
	if err != nil {
		panic(err)
	}
	if arg.BuyOrders != nil || arg.SellOrders != nil || arg.History != nil {
		err := f.st.UpdateMarketTypeData(ctx, storage.UpdateMarketTypeDataParams{
			BuyOrders:  arg.BuyOrders,
			History:    arg.History,
			RegionID:   arg.RegionID,
			SellOrders: arg.SellOrders,
			TypeID:     arg.TypeID,
		})
		if err != nil {
			panic(err)
		}
	}
	if !arg.UpdatedAt.IsZero() {
		_, err := f.db.Exec(
			"UPDATE market_types SET updated_at = ? WHERE region_id = ? AND type_id = ?;",
			arg.UpdatedAt.UTC(), arg.RegionID, arg.TypeID,
		)
		if err != nil {
			panic(err)
		}
	}
	o, err := f.st.GetMarketType(ctx, storage.MarketTypeKey{RegionID: arg.RegionID, TypeID: arg.TypeID})
	if err != nil {
		panic(err)
	}
	return o
}

func (f Factory) calcNewID(table, idField string, start int64) int64 {
	if start < 1 {
		panic("start must be a positive number")
	}
	var vMax sql.NullInt64
	if err := f.db.QueryRow(fmt.Sprintf("SELECT MAX(%s) FROM %s;", idField, table)).Scan(&vMax); err != nil {
		panic(err)
	}
	return max(vMax.Int64+1, start)
}

func (f Factory) calcNewIDWithCharacter(table, idField string, characterID int32) int64 {
	var vMax sql.NullInt64
	q := fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE character_id = ?;", idField, table)
	if err := f.db.QueryRow(q, characterID).Scan(&vMax); err != nil {
		panic(err)
	}
	return vMax.Int64 + 1
}

func (f Factory) calcNewIDWithParam(table, idField, whereField string, whereValue int64, start int64) int64 {
	var vMax sql.NullInt64
	q := fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s = ?;", idField, table, whereField)
	if err := f.db.QueryRow(q, whereValue).Scan(&vMax); err != nil {
		panic(err)
	}
	return max(vMax.Int64+1, start)
}
