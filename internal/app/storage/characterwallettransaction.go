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

type characterWalletTransactionRow struct {
	ID              int64         `db:"id"`
	CharacterID     int64         `db:"character_id"`
	ClientID        sql.NullInt64 `db:"client_id"`
	ClientName      string        `db:"client_name"`
	Date            time.Time     `db:"date"`
	JournalRefID    sql.NullInt64 `db:"journal_ref_id"`
	Price           float64       `db:"price"`
	Quantity        int64         `db:"quantity"`
	StationID       sql.NullInt64 `db:"station_id"`
	StationName     string        `db:"station_name"`
	TransactionFor  string        `db:"transaction_for"`
	TransactionID   int64         `db:"transaction_id"`
	TransactionType string        `db:"transaction_type"`
	TypeID          int64         `db:"type_id"`
	TypeName        string        `db:"type_name"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

func characterWalletTransactionFromDBModel(r characterWalletTransactionRow) *app.CharacterWalletTransaction {
	return &app.CharacterWalletTransaction{
		CharacterID:     int32(r.CharacterID),
		ClientID:        optional.FromNullInt64(r.ClientID),
		ClientName:      r.ClientName,
		Date:            r.Date,
		JournalRefID:    optional.FromNullInt64(r.JournalRefID),
		Price:           r.Price,
		Quantity:        int32(r.Quantity),
		StationID:       optional.FromNullInt64(r.StationID),
		StationName:     r.StationName,
		TransactionFor:  r.TransactionFor,
		TransactionID:   r.TransactionID,
		TransactionType: r.TransactionType,
		TypeID:          int32(r.TypeID),
		TypeName:        r.TypeName,
		UpdatedAt:       r.UpdatedAt,
	}
}

type GetCharacterWalletTransactionParams struct {
	CharacterID   int32
	TransactionID int64
}

func (st *Storage) GetCharacterWalletTransaction(ctx context.Context, arg GetCharacterWalletTransactionParams) (*app.CharacterWalletTransaction, error) {
	var r characterWalletTransactionRow
	err := st.dbRO.GetContext(ctx, &r, `
		SELECT *
		FROM character_wallet_transactions
		WHERE character_id = ? AND transaction_id = ?;`,
		arg.CharacterID, arg.TransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get wallet transaction for character %+v: %w", arg, convertGetError(err))
	}
	return characterWalletTransactionFromDBModel(r), nil
}

func (st *Storage) ListCharacterWalletTransactionIDs(ctx context.Context, characterID int32) (set.Set[int64], error) {
	var ids []int64
	err := st.dbRO.SelectContext(ctx, &ids, `
		SELECT transaction_id
		FROM character_wallet_transactions
		WHERE character_id = ?;`,
		characterID,
	)
	if err != nil {
		return set.Set[int64]{}, fmt.Errorf("list wallet transaction IDs for character %d: %w", characterID, err)
	}
	return set.Of(ids...), nil
}

// ListCharacterWalletTransactions returns the wallet transactions of a character, newest first.
func (st *Storage) ListCharacterWalletTransactions(ctx context.Context, characterID int32) ([]*app.CharacterWalletTransaction, error) {
	var rows []characterWalletTransactionRow
	err := st.dbRO.SelectContext(ctx, &rows, `
		SELECT *
		FROM character_wallet_transactions
		WHERE character_id = ?
		ORDER BY date DESC, transaction_id DESC;`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions for character %d: %w", characterID, err)
	}
	oo := make([]*app.CharacterWalletTransaction, len(rows))
	for i, r := range rows {
		oo[i] = characterWalletTransactionFromDBModel(r)
	}
	return oo, nil
}

type UpdateOrCreateCharacterWalletTransactionParams struct {
	CharacterID     int32
	ClientID        optional.Optional[int64]
	ClientName      string
	Date            time.Time
	JournalRefID    optional.Optional[int64]
	Price           float64
	Quantity        int32
	StationID       optional.Optional[int64]
	StationName     string
	TransactionFor  string
	TransactionID   int64
	TransactionType string
	TypeID          int32
	TypeName        string
}

// UpdateOrCreateCharacterWalletTransaction creates a new wallet transaction
// or updates an existing one with the same transaction ID.
func (st *Storage) UpdateOrCreateCharacterWalletTransaction(ctx context.Context, arg UpdateOrCreateCharacterWalletTransactionParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateOrCreateCharacterWalletTransaction: %+v: %w", arg, err)
	}
	if arg.CharacterID == 0 || arg.TransactionID == 0 {
		return wrapErr(app.ErrInvalid)
	}
	r := characterWalletTransactionRow{
		CharacterID:     int64(arg.CharacterID),
		ClientID:        optional.ToNullInt64(arg.ClientID),
		ClientName:      arg.ClientName,
		Date:            arg.Date.UTC(),
		JournalRefID:    optional.ToNullInt64(arg.JournalRefID),
		Price:           arg.Price,
		Quantity:        int64(arg.Quantity),
		StationID:       optional.ToNullInt64(arg.StationID),
		StationName:     arg.StationName,
		TransactionFor:  arg.TransactionFor,
		TransactionID:   arg.TransactionID,
		TransactionType: arg.TransactionType,
		TypeID:          int64(arg.TypeID),
		TypeName:        arg.TypeName,
		UpdatedAt:       now(),
	}
	_, err := st.dbRW.NamedExecContext(ctx, `
		INSERT INTO character_wallet_transactions (
			character_id, client_id, client_name, date, journal_ref_id, price, quantity,
			station_id, station_name, transaction_for, transaction_id, transaction_type,
			type_id, type_name, updated_at
		) VALUES (
			:character_id, :client_id, :client_name, :date, :journal_ref_id, :price, :quantity,
			:station_id, :station_name, :transaction_for, :transaction_id, :transaction_type,
			:type_id, :type_name, :updated_at
		)
		ON CONFLICT (character_id, transaction_id) DO UPDATE SET
			client_id = :client_id,
			client_name = :client_name,
			date = :date,
			journal_ref_id = :journal_ref_id,
			price = :price,
			quantity = :quantity,
			station_id = :station_id,
			station_name = :station_name,
			transaction_for = :transaction_for,
			transaction_type = :transaction_type,
			type_id = :type_id,
			type_name = :type_name,
			updated_at = :updated_at;`,
		r,
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}
