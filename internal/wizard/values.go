package wizard

import (
	"fmt"
	"reflect"
	"strings"
)

// Values maps field names to answers. Answers are string, []string or bool.
type Values map[string]any

// Clone copies values, including slices.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		if list, ok := val.([]string); ok {
			cp := make([]string, len(list))
			copy(cp, list)
			out[k] = cp
			continue
		}
		out[k] = val
	}
	return out
}

// Equal compares two value sets after normalisation of list types.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, a := range v {
		b, ok := other[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(canonical(a), canonical(b)) {
			return false
		}
	}
	return true
}

func canonical(v any) any {
	switch t := v.(type) {
	case []any:
		return AsStrings(t)
	case []string:
		if t == nil {
			return []string{}
		}
		return t
	default:
		return v
	}
}

// IsEmpty is true for nil, blank strings and empty lists. Booleans are never empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// AsString renders a scalar answer as text.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// AsStrings accepts []string or a decoded JSON array.
func AsStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, AsString(item))
		}
		return out
	case string:
		if t == "" {
			return []string{}
		}
		return []string{t}
	default:
		return []string{}
	}
}

// AsBool accepts bool or the strings a form checkbox posts.
func AsBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "yes", "1":
			return true
		}
	}
	return false
}

// ToJSON converts values into plain JSON-decoded shapes ([]any instead of []string).
func (v Values) ToJSON() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		if list, ok := val.([]string); ok {
			items := make([]any, len(list))
			for i, s := range list {
				items[i] = s
			}
			out[k] = items
			continue
		}
		out[k] = val
	}
	return out
}
