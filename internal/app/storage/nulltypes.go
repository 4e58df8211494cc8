package storage

import (
	"database/sql"

	"github.com/goccy/go-json"
)

// marshalJSONColumn returns v encoded for a nullable JSON column.
// A nil slice is stored as NULL and an empty slice as an empty JSON array.
func marshalJSONColumn[T any](v []T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// unmarshalJSONColumn decodes a nullable JSON column.
// NULL is returned as nil slice and an empty array as empty slice.
func unmarshalJSONColumn[T any](v sql.NullString) ([]T, error) {
	if !v.Valid {
		return nil, nil
	}
	s := make([]T, 0)
	if err := json.Unmarshal([]byte(v.String), &s); err != nil {
		return nil, err
	}
	return s, nil
}
