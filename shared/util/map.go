package util

import (
	"maps"
)

// CloneMap returns a copy of m. This is a shallow clone: the new keys
// and values are set using ordinary assignment.
func CloneMap[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return make(map[K]V)
	}

	return maps.Clone(m)
}

// DeepCopyMap returns a copy of a decoded JSON document where nested maps and
// slices are copied too, so the result shares no mutable state with m.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopyValue(v)
	}

	return out
}

// DeepCopyValue copies maps and slices found in a decoded JSON value.
func DeepCopyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return DeepCopyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, entry := range value {
			out[i] = DeepCopyValue(entry)
		}

		return out
	case []string:
		return append([]string(nil), value...)
	default:
		return value
	}
}

// MergeMap returns a deep copy of dst with the top-level keys of src
// replacing the ones in dst. Nested documents are replaced as a whole.
func MergeMap(dst map[string]any, src map[string]any) map[string]any {
	out := DeepCopyMap(dst)
	for k, v := range src {
		out[k] = DeepCopyValue(v)
	}

	return out
}
