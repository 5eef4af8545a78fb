package resolver

import (
	"fmt"
	"strings"

	"github.com/open-sspm/resolvers/internal/instance"
)

// PathKey carries the record identifier the host encodes into single-record queries.
const PathKey = "__path__"

// PathValue returns __path__ as one string with surrounding slashes trimmed.
// Segment lists are joined with "/".
func PathValue(attrs instance.Attributes) string {
	switch v := attrs[PathKey].(type) {
	case string:
		return strings.Trim(strings.TrimSpace(v), "/")
	case []string:
		return strings.Trim(strings.Join(v, "/"), "/")
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Trim(strings.Join(parts, "/"), "/")
	case nil:
		return ""
	default:
		return strings.Trim(fmt.Sprint(v), "/")
	}
}

// ID returns the first non-empty attribute among keys, then the last __path__ segment.
// With no keys, "id" is checked.
func ID(attrs instance.Attributes, keys ...string) string {
	if len(keys) == 0 {
		keys = []string{"id"}
	}
	for _, k := range keys {
		if s := Stringify(attrs[k]); s != "" {
			return s
		}
	}
	path := PathValue(attrs)
	if path == "" {
		return ""
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Stringify renders scalar attribute values; integral floats lose their fraction.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// RequireID returns ID(attrs, keys...) or a validation error naming the first key.
func RequireID(attrs instance.Attributes, keys ...string) (string, *Error) {
	id := ID(attrs, keys...)
	if id != "" {
		return id, nil
	}
	name := "id"
	if len(keys) > 0 {
		name = keys[0]
	}
	return "", Validationf("missing required field(s): %s", name)
}
