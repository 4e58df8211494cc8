// Package optional provides a generic type for values that may be absent.
//
// Optionals are used for fields which a remote payload does not always carry,
// e.g. the alliance of a character. They convert to and from sql null types.
package optional

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/constraints"
)

// Numeric is a constraint for all integer and float types.
type Numeric interface {
	constraints.Integer | constraints.Float
}

var ErrIsEmpty = errors.New("optional is empty")

// Optional holds a value of type T or nothing.
// The zero value is empty.
type Optional[T any] struct {
	value     T
	isPresent bool
}

// New returns an Optional holding v.
func New[T any](v T) Optional[T] {
	return Optional[T]{value: v, isPresent: true}
}

// FromIntegerWithZero returns an Optional for v, which is empty when v is 0.
// Remote APIs often report "no entity" with an ID of 0.
func FromIntegerWithZero[T constraints.Integer](v T) Optional[T] {
	var o Optional[T]
	if v != 0 {
		o.Set(v)
	}
	return o
}

// FromTimeWithZero returns an Optional for v, which is empty for the zero time.
func FromTimeWithZero(v time.Time) Optional[time.Time] {
	var o Optional[time.Time]
	if !v.IsZero() {
		o.Set(v)
	}
	return o
}

// ConvertNumeric converts an Optional between numeric types.
func ConvertNumeric[X Numeric, Y Numeric](o Optional[X]) Optional[Y] {
	if !o.isPresent {
		return Optional[Y]{}
	}
	return New(Y(o.value))
}

func (o Optional[T]) IsEmpty() bool {
	return !o.isPresent
}

func (o *Optional[T]) Set(v T) {
	o.value = v
	o.isPresent = true
}

func (o *Optional[T]) Clear() {
	*o = Optional[T]{}
}

// Or returns o when it holds a value and other otherwise.
func (o Optional[T]) Or(other Optional[T]) Optional[T] {
	if o.isPresent {
		return o
	}
	return other
}

// Assign writes the value of o to dst. It does nothing when o is empty.
func (o Optional[T]) Assign(dst *T) {
	if o.isPresent {
		*dst = o.value
	}
}

func (o Optional[T]) String() string {
	return o.StringFunc("<empty>", func(v T) string {
		return fmt.Sprint(v)
	})
}

// StringFunc formats the value with convert or returns fallback when o is empty.
func (o Optional[T]) StringFunc(fallback string, convert func(v T) string) string {
	if !o.isPresent {
		return fallback
	}
	return convert(o.value)
}

// MustValue returns the value and panics when o is empty.
func (o Optional[T]) MustValue() T {
	v, err := o.Value()
	if err != nil {
		panic(err)
	}
	return v
}

// Value returns the value or [ErrIsEmpty].
func (o Optional[T]) Value() (T, error) {
	if !o.isPresent {
		var z T
		return z, ErrIsEmpty
	}
	return o.value, nil
}

func (o Optional[T]) ValueOrFallback(fallback T) T {
	if !o.isPresent {
		return fallback
	}
	return o.value
}

// ValueOrZero returns the value or the zero value of T when o is empty.
func (o Optional[T]) ValueOrZero() T {
	var z T
	return o.ValueOrFallback(z)
}
