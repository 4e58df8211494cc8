package optional

import (
	"database/sql"
	"time"

	"golang.org/x/exp/constraints"
)

// FromNull converts a generic sql null value into an Optional.
func FromNull[T any](v sql.Null[T]) Optional[T] {
	if !v.Valid {
		return Optional[T]{}
	}
	return New(v.V)
}

// ToNull converts an Optional into a generic sql null value.
func ToNull[T any](o Optional[T]) sql.Null[T] {
	return sql.Null[T]{V: o.value, Valid: o.isPresent}
}

func FromNullFloat64(v sql.NullFloat64) Optional[float64] {
	return FromNull(sql.Null[float64]{V: v.Float64, Valid: v.Valid})
}

func FromNullInt64(v sql.NullInt64) Optional[int64] {
	return FromNull(sql.Null[int64]{V: v.Int64, Valid: v.Valid})
}

// FromNullInt64ToInteger converts a sql null integer into an Optional of another integer type.
func FromNullInt64ToInteger[T constraints.Integer](v sql.NullInt64) Optional[T] {
	return ConvertNumeric[int64, T](FromNullInt64(v))
}

func FromNullTime(v sql.NullTime) Optional[time.Time] {
	return FromNull(sql.Null[time.Time]{V: v.Time, Valid: v.Valid})
}

func ToNullFloat64[T constraints.Float](o Optional[T]) sql.NullFloat64 {
	n := ToNull(ConvertNumeric[T, float64](o))
	return sql.NullFloat64{Float64: n.V, Valid: n.Valid}
}

func ToNullInt64[T constraints.Integer](o Optional[T]) sql.NullInt64 {
	n := ToNull(ConvertNumeric[T, int64](o))
	return sql.NullInt64{Int64: n.V, Valid: n.Valid}
}

func ToNullTime(o Optional[time.Time]) sql.NullTime {
	n := ToNull(o)
	return sql.NullTime{Time: n.V, Valid: n.Valid}
}
