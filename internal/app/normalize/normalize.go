// Package normalize flattens nested payloads of the remote API into flat attribute sets.
//
// The remote API wraps many scalar fields inconsistently in objects like
// {"content": "Jita", "type": "string"}. Flatten reduces these wrappers to their content.
package normalize

// Kind classifies a value found in a payload.
type Kind uint

const (
	KindValue   Kind = iota // not a mapping
	KindEmpty               // mapping or list without elements
	KindWrapper             // mapping with a field named "content"
	KindNested              // any other mapping or list
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindEmpty:
		return "empty"
	case KindWrapper:
		return "wrapper"
	case KindNested:
		return "nested"
	}
	return "?"
}

const contentField = "content"

// Classify returns the kind of v.
func Classify(v any) Kind {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			return KindEmpty
		}
		if _, ok := x[contentField]; ok {
			return KindWrapper
		}
		return KindNested
	case []any:
		if len(x) == 0 {
			return KindEmpty
		}
		return KindNested
	}
	return KindValue
}

// Flatten returns a new mapping with the same top-level keys as data,
// where each nested value is reduced depth first:
// empty mappings become nil, wrappers become their content
// and all other mappings are flattened recursively.
//
// Flatten never fails and does not modify data. A nil mapping returns an empty mapping.
func Flatten(data map[string]any) Attrs {
	out := make(Attrs, len(data))
	for k, v := range data {
		out[k] = reduce(v)
	}
	return out
}

func reduce(v any) any {
	switch Classify(v) {
	case KindEmpty:
		return nil
	case KindWrapper:
		return v.(map[string]any)[contentField]
	case KindNested:
		switch x := v.(type) {
		case map[string]any:
			return map[string]any(Flatten(x))
		case []any:
			s := make([]any, len(x))
			for i, e := range x {
				s[i] = reduce(e)
			}
			return s
		}
	}
	return v
}
