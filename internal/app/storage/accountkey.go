package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/ErikKalkoken/go-set"
	"github.com/jmoiron/sqlx"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

type accountKeyRow struct {
	ID               int64        `db:"id"`
	AccessMask       int64        `db:"access_mask"`
	CreatedAt        time.Time    `db:"created_at"`
	ExpiresAt        sql.NullTime `db:"expires_at"`
	Type             string       `db:"type"`
	UpdatedAt        time.Time    `db:"updated_at"`
	VerificationCode string       `db:"verification_code"`
}

func accountKeyFromDBModel(r accountKeyRow) *app.AccountKey {
	return &app.AccountKey{
		AccessMask:       r.AccessMask,
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        optional.FromNullTime(r.ExpiresAt),
		ID:               r.ID,
		Type:             r.Type,
		UpdatedAt:        r.UpdatedAt,
		VerificationCode: r.VerificationCode,
	}
}

type CreateAccountKeyParams struct {
	ID               int64
	VerificationCode string
}

func (st *Storage) CreateAccountKey(ctx context.Context, arg CreateAccountKeyParams) error {
	if arg.ID == 0 || arg.VerificationCode == "" {
		return fmt.Errorf("createAccountKey: %d: %w", arg.ID, app.ErrInvalid)
	}
	t := now()
	_, err := st.dbRW.ExecContext(ctx, `
		INSERT INTO account_keys (id, created_at, updated_at, verification_code)
		VALUES (?, ?, ?, ?);`,
		arg.ID, t, t, arg.VerificationCode,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			err = app.ErrAlreadyExists
		}
		return fmt.Errorf("createAccountKey: %d: %w", arg.ID, err)
	}
	return nil
}

func (st *Storage) GetAccountKey(ctx context.Context, id int64) (*app.AccountKey, error) {
	var r accountKeyRow
	err := st.dbRO.GetContext(ctx, &r, `SELECT * FROM account_keys WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("get account key %d: %w", id, convertGetError(err))
	}
	return accountKeyFromDBModel(r), nil
}

func (st *Storage) ListAccountKeys(ctx context.Context) ([]*app.AccountKey, error) {
	var rows []accountKeyRow
	err := st.dbRO.SelectContext(ctx, &rows, `SELECT * FROM account_keys ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list account keys: %w", err)
	}
	oo := make([]*app.AccountKey, len(rows))
	for i, r := range rows {
		oo[i] = accountKeyFromDBModel(r)
	}
	return oo, nil
}

func (st *Storage) ListAccountKeyIDs(ctx context.Context) (set.Set[int64], error) {
	var ids []int64
	err := st.dbRO.SelectContext(ctx, &ids, `SELECT id FROM account_keys;`)
	if err != nil {
		return set.Set[int64]{}, fmt.Errorf("list account key IDs: %w", err)
	}
	return set.Of(ids...), nil
}

type UpdateAccountKeyParams struct {
	AccessMask int64
	ExpiresAt  optional.Optional[time.Time]
	ID         int64
	Type       string
}

// UpdateAccountKey updates the attributes of a key reported by the remote API.
func (st *Storage) UpdateAccountKey(ctx context.Context, arg UpdateAccountKeyParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateAccountKey: %+v: %w", arg, err)
	}
	var expiresAt sql.NullTime
	if v, err := arg.ExpiresAt.Value(); err == nil {
		expiresAt = sql.NullTime{Time: v.UTC(), Valid: true}
	}
	r, err := st.dbRW.ExecContext(ctx, `
		UPDATE account_keys
		SET access_mask = ?, expires_at = ?, type = ?, updated_at = ?
		WHERE id = ?;`,
		arg.AccessMask, expiresAt, arg.Type, now(), arg.ID,
	)
	if err != nil {
		return wrapErr(err)
	}
	if n, err := r.RowsAffected(); err != nil {
		return wrapErr(err)
	} else if n == 0 {
		return wrapErr(app.ErrNotFound)
	}
	return nil
}

// ListAccountKeyCharacterIDs returns the IDs of the characters attached to a key.
func (st *Storage) ListAccountKeyCharacterIDs(ctx context.Context, keyID int64) (set.Set[int32], error) {
	var ids []int32
	err := st.dbRO.SelectContext(ctx, &ids, `
		SELECT character_id
		FROM account_key_characters
		WHERE account_key_id = ?;`,
		keyID,
	)
	if err != nil {
		return set.Set[int32]{}, fmt.Errorf("list character IDs for key %d: %w", keyID, err)
	}
	return set.Of(ids...), nil
}

// ListCharacterIDsWithAccountKey returns the IDs of all characters attached to at least one key.
func (st *Storage) ListCharacterIDsWithAccountKey(ctx context.Context) (set.Set[int32], error) {
	var ids []int32
	err := st.dbRO.SelectContext(ctx, &ids, `
		SELECT DISTINCT character_id
		FROM account_key_characters;`,
	)
	if err != nil {
		return set.Set[int32]{}, fmt.Errorf("list character IDs with keys: %w", err)
	}
	return set.Of(ids...), nil
}

// ListCharacterAccountKeys returns the keys a character is attached to ordered by key ID.
func (st *Storage) ListCharacterAccountKeys(ctx context.Context, characterID int32) ([]*app.AccountKey, error) {
	var rows []accountKeyRow
	err := st.dbRO.SelectContext(ctx, &rows, `
		SELECT ak.*
		FROM account_keys ak
		JOIN account_key_characters akc ON akc.account_key_id = ak.id
		WHERE akc.character_id = ?
		ORDER BY ak.id;`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list account keys for character %d: %w", characterID, err)
	}
	oo := make([]*app.AccountKey, len(rows))
	for i, r := range rows {
		oo[i] = accountKeyFromDBModel(r)
	}
	return oo, nil
}

// AttachAccountKeyCharacters adds characters to a key. Existing edges are kept.
func (st *Storage) AttachAccountKeyCharacters(ctx context.Context, keyID int64, characterIDs set.Set[int32]) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("attach characters %v to key %d: %w", characterIDs, keyID, err)
	}
	if characterIDs.Size() == 0 {
		return nil
	}
	tx, err := st.dbRW.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(err)
	}
	defer tx.Rollback()
	for id := range characterIDs.All() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO account_key_characters (account_key_id, character_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING;`,
			keyID, id,
		)
		if err != nil {
			return wrapErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// DetachAccountKeyCharacters removes characters from a key. The characters themselves are kept.
func (st *Storage) DetachAccountKeyCharacters(ctx context.Context, keyID int64, characterIDs set.Set[int32]) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("detach characters %v from key %d: %w", characterIDs, keyID, err)
	}
	if characterIDs.Size() == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
		DELETE FROM account_key_characters
		WHERE account_key_id = ? AND character_id IN (?);`,
		keyID, slices.Collect(characterIDs.All()),
	)
	if err != nil {
		return wrapErr(err)
	}
	if _, err := st.dbRW.ExecContext(ctx, st.dbRW.Rebind(query), args...); err != nil {
		return wrapErr(err)
	}
	return nil
}
