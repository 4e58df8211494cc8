package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

type marketTypeRow struct {
	ID                int64           `db:"id"`
	Buy               sql.NullFloat64 `db:"buy"`
	BuyOrders         sql.NullString  `db:"buy_orders"`
	CreatedAt         time.Time       `db:"created_at"`
	History           sql.NullString  `db:"history"`
	Margin            float64         `db:"margin"`
	MarketGroupID     int64           `db:"market_group_id"`
	MarketGroupIDPath sql.NullString  `db:"market_group_id_path"`
	RegionID          int64           `db:"region_id"`
	Sell              sql.NullFloat64 `db:"sell"`
	SellOrders        sql.NullString  `db:"sell_orders"`
	Spread            float64         `db:"spread"`
	TypeID            int64           `db:"type_id"`
	UpdatedAt         sql.NullTime    `db:"updated_at"`
}

func marketTypeFromDBModel(r marketTypeRow) (*app.MarketType, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("market type %d/%d: %w", r.RegionID, r.TypeID, err)
	}
	buyOrders, err := unmarshalJSONColumn[app.MarketOrder](r.BuyOrders)
	if err != nil {
		return nil, wrapErr(err)
	}
	sellOrders, err := unmarshalJSONColumn[app.MarketOrder](r.SellOrders)
	if err != nil {
		return nil, wrapErr(err)
	}
	history, err := unmarshalJSONColumn[app.MarketHistoryItem](r.History)
	if err != nil {
		return nil, wrapErr(err)
	}
	path, err := unmarshalJSONColumn[int32](r.MarketGroupIDPath)
	if err != nil {
		return nil, wrapErr(err)
	}
	var updatedAt time.Time
	if r.UpdatedAt.Valid {
		updatedAt = r.UpdatedAt.Time
	}
	mt := &app.MarketType{
		Buy:               optional.FromNullFloat64(r.Buy),
		BuyOrders:         buyOrders,
		CreatedAt:         r.CreatedAt,
		History:           history,
		Margin:            r.Margin,
		MarketGroupID:     int32(r.MarketGroupID),
		MarketGroupIDPath: path,
		RegionID:          int32(r.RegionID),
		Sell:              optional.FromNullFloat64(r.Sell),
		SellOrders:        sellOrders,
		Spread:            r.Spread,
		TypeID:            int32(r.TypeID),
		UpdatedAt:         updatedAt,
	}
	return mt, nil
}

type MarketTypeKey struct {
	RegionID int32
	TypeID   int32
}

func (st *Storage) GetMarketType(ctx context.Context, arg MarketTypeKey) (*app.MarketType, error) {
	var r marketTypeRow
	err := st.dbRO.GetContext(ctx, &r, `
		SELECT *
		FROM market_types
		WHERE region_id = ? AND type_id = ?;`,
		arg.RegionID, arg.TypeID,
	)
	if err != nil {
		return nil, fmt.Errorf("get market type %+v: %w", arg, convertGetError(err))
	}
	return marketTypeFromDBModel(r)
}

type CreateMarketTypeParams struct {
	MarketGroupID int32
	RegionID      int32
	TypeID        int32
}

func (st *Storage) CreateMarketType(ctx context.Context, arg CreateMarketTypeParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("createMarketType: %+v: %w", arg, err)
	}
	if arg.RegionID == 0 || arg.TypeID == 0 {
		return wrapErr(app.ErrInvalid)
	}
	_, err := st.dbRW.ExecContext(ctx, `
		INSERT INTO market_types (created_at, market_group_id, region_id, type_id)
		VALUES (?, ?, ?, ?);`,
		now(), arg.MarketGroupID, arg.RegionID, arg.TypeID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			err = app.ErrAlreadyExists
		}
		return wrapErr(err)
	}
	return nil
}

// GetOrCreateMarketType returns a market type and creates it when it does not yet exist.
func (st *Storage) GetOrCreateMarketType(ctx context.Context, arg CreateMarketTypeParams) (*app.MarketType, error) {
	key := MarketTypeKey{RegionID: arg.RegionID, TypeID: arg.TypeID}
	mt, err := st.GetMarketType(ctx, key)
	if err == nil {
		return mt, nil
	}
	if !errors.Is(err, app.ErrNotFound) {
		return nil, err
	}
	if err := st.CreateMarketType(ctx, arg); err != nil && !errors.Is(err, app.ErrAlreadyExists) {
		return nil, err
	}
	return st.GetMarketType(ctx, key)
}

func (st *Storage) ListMarketTypes(ctx context.Context) ([]*app.MarketType, error) {
	var rows []marketTypeRow
	err := st.dbRO.SelectContext(ctx, &rows, `SELECT * FROM market_types ORDER BY region_id, type_id;`)
	if err != nil {
		return nil, fmt.Errorf("list market types: %w", err)
	}
	oo := make([]*app.MarketType, len(rows))
	for i, r := range rows {
		mt, err := marketTypeFromDBModel(r)
		if err != nil {
			return nil, err
		}
		oo[i] = mt
	}
	return oo, nil
}

type UpdateMarketTypeDataParams struct {
	BuyOrders  []app.MarketOrder
	History    []app.MarketHistoryItem
	RegionID   int32
	SellOrders []app.MarketOrder
	TypeID     int32
}

// UpdateMarketTypeData stores freshly fetched market data and marks the market type as updated.
func (st *Storage) UpdateMarketTypeData(ctx context.Context, arg UpdateMarketTypeDataParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateMarketTypeData: %d/%d: %w", arg.RegionID, arg.TypeID, err)
	}
	buyOrders, err := marshalJSONColumn(arg.BuyOrders)
	if err != nil {
		return wrapErr(err)
	}
	sellOrders, err := marshalJSONColumn(arg.SellOrders)
	if err != nil {
		return wrapErr(err)
	}
	history, err := marshalJSONColumn(arg.History)
	if err != nil {
		return wrapErr(err)
	}
	r, err := st.dbRW.ExecContext(ctx, `
		UPDATE market_types
		SET buy_orders = ?, history = ?, sell_orders = ?, updated_at = ?
		WHERE region_id = ? AND type_id = ?;`,
		buyOrders, history, sellOrders, now(), arg.RegionID, arg.TypeID,
	)
	if err != nil {
		return wrapErr(err)
	}
	return checkRowsAffected(r, wrapErr)
}

type UpdateMarketTypeSummaryParams struct {
	Buy               optional.Optional[float64]
	Margin            float64
	MarketGroupID     int32
	MarketGroupIDPath []int32
	RegionID          int32
	Sell              optional.Optional[float64]
	Spread            float64
	TypeID            int32
}

// UpdateMarketTypeSummary stores the derived metrics together with the market group path.
// It does not change when the market type was last updated.
func (st *Storage) UpdateMarketTypeSummary(ctx context.Context, arg UpdateMarketTypeSummaryParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateMarketTypeSummary: %d/%d: %w", arg.RegionID, arg.TypeID, err)
	}
	path, err := marshalJSONColumn(arg.MarketGroupIDPath)
	if err != nil {
		return wrapErr(err)
	}
	r, err := st.dbRW.ExecContext(ctx, `
		UPDATE market_types
		SET buy = ?, margin = ?, market_group_id = ?, market_group_id_path = ?, sell = ?, spread = ?
		WHERE region_id = ? AND type_id = ?;`,
		optional.ToNullFloat64(arg.Buy),
		arg.Margin,
		arg.MarketGroupID,
		path,
		optional.ToNullFloat64(arg.Sell),
		arg.Spread,
		arg.RegionID,
		arg.TypeID,
	)
	if err != nil {
		return wrapErr(err)
	}
	return checkRowsAffected(r, wrapErr)
}

func checkRowsAffected(r sql.Result, wrapErr func(error) error) error {
	n, err := r.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return wrapErr(app.ErrNotFound)
	}
	return nil
}
