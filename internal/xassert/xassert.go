// Package xassert provides test assertions for types testify does not compare well.
package xassert

import (
	"testing"
	"time"

	"github.com/ErikKalkoken/go-set"
	"github.com/stretchr/testify/assert"
)

// EqualSet asserts that two sets contain the same elements.
// The order of elements is ignored.
func EqualSet[T comparable](t *testing.T, want, got set.Set[T]) bool {
	t.Helper()
	if got.Equal(want) {
		return true
	}
	missing := set.Difference(want, got)
	extra := set.Difference(got, want)
	return assert.Fail(t, "Sets not equal",
		"expected: %s\nactual  : %s\nmissing : %s\nextra   : %s", want, got, missing, extra)
}

// EqualTime asserts that two time values denote the same instant.
// Location and monotonic clock readings are ignored.
func EqualTime(t *testing.T, want, got time.Time) bool {
	t.Helper()
	return assert.Truef(t, got.Equal(want), "Times not equal:\nexpected: %s\nactual  : %s", want, got)
}
