package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ErikKalkoken/go-set"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

type characterWalletJournalEntryRow struct {
	ID            int64           `db:"id"`
	Amount        float64         `db:"amount"`
	ArgID         sql.NullInt64   `db:"arg_id"`
	ArgName       string          `db:"arg_name"`
	Balance       float64         `db:"balance"`
	CharacterID   int64           `db:"character_id"`
	Date          time.Time       `db:"date"`
	OwnerID1      sql.NullInt64   `db:"owner_id1"`
	OwnerID2      sql.NullInt64   `db:"owner_id2"`
	OwnerName1    string          `db:"owner_name1"`
	OwnerName2    string          `db:"owner_name2"`
	Reason        string          `db:"reason"`
	RefID         int64           `db:"ref_id"`
	RefTypeID     int64           `db:"ref_type_id"`
	TaxAmount     sql.NullFloat64 `db:"tax_amount"`
	TaxReceiverID sql.NullInt64   `db:"tax_receiver_id"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func characterWalletJournalEntryFromDBModel(r characterWalletJournalEntryRow) *app.CharacterWalletJournalEntry {
	return &app.CharacterWalletJournalEntry{
		Amount:        r.Amount,
		ArgID:         optional.FromNullInt64(r.ArgID),
		ArgName:       r.ArgName,
		Balance:       r.Balance,
		CharacterID:   int32(r.CharacterID),
		Date:          r.Date,
		OwnerID1:      optional.FromNullInt64(r.OwnerID1),
		OwnerID2:      optional.FromNullInt64(r.OwnerID2),
		OwnerName1:    r.OwnerName1,
		OwnerName2:    r.OwnerName2,
		Reason:        r.Reason,
		RefID:         r.RefID,
		RefTypeID:     int32(r.RefTypeID),
		TaxAmount:     optional.FromNullFloat64(r.TaxAmount),
		TaxReceiverID: optional.FromNullInt64(r.TaxReceiverID),
		UpdatedAt:     r.UpdatedAt,
	}
}

type GetCharacterWalletJournalEntryParams struct {
	CharacterID int32
	RefID       int64
}

func (st *Storage) GetCharacterWalletJournalEntry(ctx context.Context, arg GetCharacterWalletJournalEntryParams) (*app.CharacterWalletJournalEntry, error) {
	var r characterWalletJournalEntryRow
	err := st.dbRO.GetContext(ctx, &r, `
		SELECT *
		FROM character_wallet_journal_entries
		WHERE character_id = ? AND ref_id = ?;`,
		arg.CharacterID, arg.RefID,
	)
	if err != nil {
		return nil, fmt.Errorf("get wallet journal entry for character %+v: %w", arg, convertGetError(err))
	}
	return characterWalletJournalEntryFromDBModel(r), nil
}

func (st *Storage) ListCharacterWalletJournalEntryIDs(ctx context.Context, characterID int32) (set.Set[int64], error) {
	var ids []int64
	err := st.dbRO.SelectContext(ctx, &ids, `
		SELECT ref_id
		FROM character_wallet_journal_entries
		WHERE character_id = ?;`,
		characterID,
	)
	if err != nil {
		return set.Set[int64]{}, fmt.Errorf("list wallet journal entry IDs for character %d: %w", characterID, err)
	}
	return set.Of(ids...), nil
}

// ListCharacterWalletJournalEntries returns the wallet journal of a character, newest first.
func (st *Storage) ListCharacterWalletJournalEntries(ctx context.Context, characterID int32) ([]*app.CharacterWalletJournalEntry, error) {
	var rows []characterWalletJournalEntryRow
	err := st.dbRO.SelectContext(ctx, &rows, `
		SELECT *
		FROM character_wallet_journal_entries
		WHERE character_id = ?
		ORDER BY date DESC, ref_id DESC;`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wallet journal entries for character %d: %w", characterID, err)
	}
	oo := make([]*app.CharacterWalletJournalEntry, len(rows))
	for i, r := range rows {
		oo[i] = characterWalletJournalEntryFromDBModel(r)
	}
	return oo, nil
}

type UpdateOrCreateCharacterWalletJournalEntryParams struct {
	Amount        float64
	ArgID         optional.Optional[int64]
	ArgName       string
	Balance       float64
	CharacterID   int32
	Date          time.Time
	OwnerID1      optional.Optional[int64]
	OwnerID2      optional.Optional[int64]
	OwnerName1    string
	OwnerName2    string
	Reason        string
	RefID         int64
	RefTypeID     int32
	TaxAmount     optional.Optional[float64]
	TaxReceiverID optional.Optional[int64]
}

// UpdateOrCreateCharacterWalletJournalEntry creates a new journal entry
// or updates an existing one with the same ref ID.
func (st *Storage) UpdateOrCreateCharacterWalletJournalEntry(ctx context.Context, arg UpdateOrCreateCharacterWalletJournalEntryParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateOrCreateCharacterWalletJournalEntry: %+v: %w", arg, err)
	}
	if arg.CharacterID == 0 || arg.RefID == 0 {
		return wrapErr(app.ErrInvalid)
	}
	r := characterWalletJournalEntryRow{
		Amount:        arg.Amount,
		ArgID:         optional.ToNullInt64(arg.ArgID),
		ArgName:       arg.ArgName,
		Balance:       arg.Balance,
		CharacterID:   int64(arg.CharacterID),
		Date:          arg.Date.UTC(),
		OwnerID1:      optional.ToNullInt64(arg.OwnerID1),
		OwnerID2:      optional.ToNullInt64(arg.OwnerID2),
		OwnerName1:    arg.OwnerName1,
		OwnerName2:    arg.OwnerName2,
		Reason:        arg.Reason,
		RefID:         arg.RefID,
		RefTypeID:     int64(arg.RefTypeID),
		TaxAmount:     optional.ToNullFloat64(arg.TaxAmount),
		TaxReceiverID: optional.ToNullInt64(arg.TaxReceiverID),
		UpdatedAt:     now(),
	}
	_, err := st.dbRW.NamedExecContext(ctx, `
		INSERT INTO character_wallet_journal_entries (
			amount, arg_id, arg_name, balance, character_id, date, owner_id1, owner_id2,
			owner_name1, owner_name2, reason, ref_id, ref_type_id, tax_amount,
			tax_receiver_id, updated_at
		) VALUES (
			:amount, :arg_id, :arg_name, :balance, :character_id, :date, :owner_id1, :owner_id2,
			:owner_name1, :owner_name2, :reason, :ref_id, :ref_type_id, :tax_amount,
			:tax_receiver_id, :updated_at
		)
		ON CONFLICT (character_id, ref_id) DO UPDATE SET
			amount = :amount,
			arg_id = :arg_id,
			arg_name = :arg_name,
			balance = :balance,
			date = :date,
			owner_id1 = :owner_id1,
			owner_id2 = :owner_id2,
			owner_name1 = :owner_name1,
			owner_name2 = :owner_name2,
			reason = :reason,
			ref_type_id = :ref_type_id,
			tax_amount = :tax_amount,
			tax_receiver_id = :tax_receiver_id,
			updated_at = :updated_at;`,
		r,
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}
