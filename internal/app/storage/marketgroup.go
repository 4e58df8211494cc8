package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

type marketGroupRow struct {
	ID       int64         `db:"id"`
	Name     string        `db:"name"`
	ParentID sql.NullInt64 `db:"parent_id"`
}

func (st *Storage) GetMarketGroup(ctx context.Context, id int32) (*app.MarketGroup, error) {
	var r marketGroupRow
	err := st.dbRO.GetContext(ctx, &r, `SELECT * FROM market_groups WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("get market group %d: %w", id, convertGetError(err))
	}
	o := &app.MarketGroup{
		ID:       int32(r.ID),
		Name:     r.Name,
		ParentID: optional.FromNullInt64ToInteger[int32](r.ParentID),
	}
	return o, nil
}

type UpdateOrCreateMarketGroupParams struct {
	ID       int32
	Name     string
	ParentID optional.Optional[int32]
}

func (st *Storage) UpdateOrCreateMarketGroup(ctx context.Context, arg UpdateOrCreateMarketGroupParams) error {
	if arg.ID == 0 {
		return fmt.Errorf("updateOrCreateMarketGroup: %+v: %w", arg, app.ErrInvalid)
	}
	_, err := st.dbRW.ExecContext(ctx, `
		INSERT INTO market_groups (id, name, parent_id)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id;`,
		arg.ID, arg.Name, optional.ToNullInt64(arg.ParentID),
	)
	if err != nil {
		return fmt.Errorf("updateOrCreateMarketGroup: %+v: %w", arg, err)
	}
	return nil
}
