package normalize

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/ErikKalkoken/evesync/internal/optional"
)

// LegacyTimeFormat is the time format used by the remote API.
const LegacyTimeFormat = "2006-01-02 15:04:05"

// Attrs is a flat attribute set as returned by [Flatten].
//
// The accessors convert attributes into Go types.
// Absent attributes, nil values and empty strings all report as empty.
type Attrs map[string]any

// Map returns a nested mapping.
func (a Attrs) Map(key string) Attrs {
	m, ok := a[key].(map[string]any)
	if !ok {
		return Attrs{}
	}
	return Attrs(m)
}

// Has reports whether an attribute has a value.
func (a Attrs) Has(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// Keys returns the keys in ascending order.
func (a Attrs) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Rename returns a copy of a where keys are renamed according to aliases
// and the ignored keys are removed.
// An alias does not overwrite a canonical key that is already present.
func (a Attrs) Rename(aliases map[string]string, ignored ...string) Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		if slices.Contains(ignored, k) {
			continue
		}
		if c, ok := aliases[k]; ok {
			if _, found := a[c]; found {
				continue
			}
			k = c
		}
		out[k] = v
	}
	return out
}

// String returns an attribute as string.
func (a Attrs) String(key string) optional.Optional[string] {
	if !a.Has(key) {
		return optional.Optional[string]{}
	}
	switch x := a[key].(type) {
	case string:
		return optional.New(x)
	case fmt.Stringer:
		return optional.New(x.String())
	default:
		return optional.New(fmt.Sprint(x))
	}
}

// Int64 returns an attribute as int64. Numbers encoded as strings are converted.
func (a Attrs) Int64(key string) (optional.Optional[int64], error) {
	if !a.Has(key) {
		return optional.Optional[int64]{}, nil
	}
	switch x := a[key].(type) {
	case int64:
		return optional.New(x), nil
	case int:
		return optional.New(int64(x)), nil
	case int32:
		return optional.New(int64(x)), nil
	case float64:
		return optional.New(int64(x)), nil
	case uint64:
		return optional.New(int64(x)), nil
	case string:
		v, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return optional.Optional[int64]{}, fmt.Errorf("attribute %s: %w", key, err)
		}
		return optional.New(v), nil
	}
	return optional.Optional[int64]{}, fmt.Errorf("attribute %s: unsupported type %T", key, a[key])
}

// Int32 returns an attribute as int32.
func (a Attrs) Int32(key string) (optional.Optional[int32], error) {
	v, err := a.Int64(key)
	if err != nil {
		return optional.Optional[int32]{}, err
	}
	return optional.ConvertNumeric[int64, int32](v), nil
}

// Float64 returns an attribute as float64. Numbers encoded as strings are converted.
func (a Attrs) Float64(key string) (optional.Optional[float64], error) {
	if !a.Has(key) {
		return optional.Optional[float64]{}, nil
	}
	switch x := a[key].(type) {
	case float64:
		return optional.New(x), nil
	case int64:
		return optional.New(float64(x)), nil
	case int:
		return optional.New(float64(x)), nil
	case uint64:
		return optional.New(float64(x)), nil
	case string:
		v, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return optional.Optional[float64]{}, fmt.Errorf("attribute %s: %w", key, err)
		}
		return optional.New(v), nil
	}
	return optional.Optional[float64]{}, fmt.Errorf("attribute %s: unsupported type %T", key, a[key])
}

// Time returns an attribute as time in UTC.
// Both the legacy format and RFC 3339 are accepted.
func (a Attrs) Time(key string) (optional.Optional[time.Time], error) {
	if !a.Has(key) {
		return optional.Optional[time.Time]{}, nil
	}
	switch x := a[key].(type) {
	case time.Time:
		return optional.New(x.UTC()), nil
	case string:
		for _, layout := range []string{LegacyTimeFormat, time.RFC3339} {
			if t, err := time.Parse(layout, x); err == nil {
				return optional.New(t.UTC()), nil
			}
		}
		return optional.Optional[time.Time]{}, fmt.Errorf("attribute %s: invalid time %q", key, x)
	}
	return optional.Optional[time.Time]{}, fmt.Errorf("attribute %s: unsupported type %T", key, a[key])
}
