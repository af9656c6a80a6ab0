package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Encode converts a tagged struct into a document field set.
func Encode(v any) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return d, nil
}

// Decode fills v from a document field set.
func Decode(d Data, v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// Clone deep-copies a field set so callers cannot alias stored state.
func Clone(d Data) Data {
	if d == nil {
		return Data{}
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Clone(t))
	case Data:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return normalizeScalar(v)
	}
}

// normalizeScalar folds every numeric type to float64 so values compare the
// same way regardless of which backend or caller produced them.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

// Equal compares two scalar field values.
func Equal(a, b any) bool {
	a, b = normalizeScalar(a), normalizeScalar(b)
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && (av == bv || (math.IsNaN(av) && math.IsNaN(bv)))
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// IndexKey renders a scalar as a type-prefixed string so equality on the
// key matches Equal. Non-scalar values are not indexable.
func IndexKey(v any) (string, bool) {
	switch t := normalizeScalar(v).(type) {
	case string:
		return "s:" + t, true
	case bool:
		return "b:" + strconv.FormatBool(t), true
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64), true
	case nil:
		return "z:", true
	}
	return "", false
}
