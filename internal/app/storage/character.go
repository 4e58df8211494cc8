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

type characterRow struct {
	ID              int64           `db:"id"`
	AccountBalance  sql.NullFloat64 `db:"account_balance"`
	AllianceID      sql.NullInt64   `db:"alliance_id"`
	AllianceName    string          `db:"alliance_name"`
	BloodLine       string          `db:"blood_line"`
	BloodLineID     sql.NullInt64   `db:"blood_line_id"`
	CorporationID   sql.NullInt64   `db:"corporation_id"`
	CorporationName string          `db:"corporation_name"`
	CreatedAt       time.Time       `db:"created_at"`
	FactionID       sql.NullInt64   `db:"faction_id"`
	FactionName     string          `db:"faction_name"`
	Gender          string          `db:"gender"`
	Name            string          `db:"name"`
	Orders          sql.NullString  `db:"orders"`
	Race            string          `db:"race"`
	SecurityStatus  sql.NullFloat64 `db:"security_status"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func characterFromDBModel(r characterRow) (*app.Character, error) {
	orders, err := unmarshalJSONColumn[app.CharacterOrder](r.Orders)
	if err != nil {
		return nil, fmt.Errorf("orders of character %d: %w", r.ID, err)
	}
	c := &app.Character{
		AccountBalance:  optional.FromNullFloat64(r.AccountBalance),
		AllianceID:      optional.FromNullInt64ToInteger[int32](r.AllianceID),
		AllianceName:    r.AllianceName,
		BloodLine:       r.BloodLine,
		BloodLineID:     optional.FromNullInt64ToInteger[int32](r.BloodLineID),
		CorporationID:   optional.FromNullInt64ToInteger[int32](r.CorporationID),
		CorporationName: r.CorporationName,
		CreatedAt:       r.CreatedAt,
		FactionID:       optional.FromNullInt64ToInteger[int32](r.FactionID),
		FactionName:     r.FactionName,
		Gender:          r.Gender,
		ID:              int32(r.ID),
		Name:            r.Name,
		Orders:          orders,
		Race:            r.Race,
		SecurityStatus:  optional.FromNullFloat64(r.SecurityStatus),
		UpdatedAt:       r.UpdatedAt,
	}
	return c, nil
}

func characterToDBModel(c app.Character) (characterRow, error) {
	orders, err := marshalJSONColumn(c.Orders)
	if err != nil {
		return characterRow{}, err
	}
	r := characterRow{
		ID:              int64(c.ID),
		AccountBalance:  optional.ToNullFloat64(c.AccountBalance),
		AllianceID:      optional.ToNullInt64(c.AllianceID),
		AllianceName:    c.AllianceName,
		BloodLine:       c.BloodLine,
		BloodLineID:     optional.ToNullInt64(c.BloodLineID),
		CorporationID:   optional.ToNullInt64(c.CorporationID),
		CorporationName: c.CorporationName,
		FactionID:       optional.ToNullInt64(c.FactionID),
		FactionName:     c.FactionName,
		Gender:          c.Gender,
		Name:            c.Name,
		Orders:          orders,
		Race:            c.Race,
		SecurityStatus:  optional.ToNullFloat64(c.SecurityStatus),
	}
	return r, nil
}

const characterColumns = `
	account_balance = :account_balance,
	alliance_id = :alliance_id,
	alliance_name = :alliance_name,
	blood_line = :blood_line,
	blood_line_id = :blood_line_id,
	corporation_id = :corporation_id,
	corporation_name = :corporation_name,
	faction_id = :faction_id,
	faction_name = :faction_name,
	gender = :gender,
	name = :name,
	orders = :orders,
	race = :race,
	security_status = :security_status,
	updated_at = :updated_at`

// CreateCharacter creates a new character from c and returns it.
func (st *Storage) CreateCharacter(ctx context.Context, c app.Character) (*app.Character, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("createCharacter: %d: %w", c.ID, err)
	}
	if c.ID == 0 {
		return nil, wrapErr(app.ErrInvalid)
	}
	r, err := characterToDBModel(c)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt
	_, err = st.dbRW.NamedExecContext(ctx, `
		INSERT INTO characters (
			id, account_balance, alliance_id, alliance_name, blood_line, blood_line_id,
			corporation_id, corporation_name, created_at, faction_id, faction_name,
			gender, name, orders, race, security_status, updated_at
		) VALUES (
			:id, :account_balance, :alliance_id, :alliance_name, :blood_line, :blood_line_id,
			:corporation_id, :corporation_name, :created_at, :faction_id, :faction_name,
			:gender, :name, :orders, :race, :security_status, :updated_at
		);`,
		r,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			err = app.ErrAlreadyExists
		}
		return nil, wrapErr(err)
	}
	return characterFromDBModel(r)
}

// UpdateCharacter saves all attributes of an existing character and returns it.
func (st *Storage) UpdateCharacter(ctx context.Context, c app.Character) (*app.Character, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateCharacter: %d: %w", c.ID, err)
	}
	r, err := characterToDBModel(c)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.UpdatedAt = now()
	res, err := st.dbRW.NamedExecContext(ctx, `UPDATE characters SET `+characterColumns+` WHERE id = :id;`, r)
	if err != nil {
		return nil, wrapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, wrapErr(err)
	} else if n == 0 {
		return nil, wrapErr(app.ErrNotFound)
	}
	return st.GetCharacter(ctx, c.ID)
}

func (st *Storage) GetCharacter(ctx context.Context, id int32) (*app.Character, error) {
	var r characterRow
	err := st.dbRO.GetContext(ctx, &r, `SELECT * FROM characters WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("get character %d: %w", id, convertGetError(err))
	}
	return characterFromDBModel(r)
}

func (st *Storage) ListCharacters(ctx context.Context) ([]*app.Character, error) {
	var rows []characterRow
	err := st.dbRO.SelectContext(ctx, &rows, `SELECT * FROM characters ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	oo := make([]*app.Character, len(rows))
	for i, r := range rows {
		c, err := characterFromDBModel(r)
		if err != nil {
			return nil, err
		}
		oo[i] = c
	}
	return oo, nil
}

func (st *Storage) ListCharacterIDs(ctx context.Context) (set.Set[int32], error) {
	var ids []int32
	err := st.dbRO.SelectContext(ctx, &ids, `SELECT id FROM characters;`)
	if err != nil {
		return set.Set[int32]{}, fmt.Errorf("list character IDs: %w", err)
	}
	return set.Of(ids...), nil
}
