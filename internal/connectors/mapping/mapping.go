// Package mapping holds the coercion helpers field mappers use to turn decoded
// vendor JSON into canonical attributes. Missing values default to "" for
// strings and nil for numbers.
package mapping

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/shopspring/decimal"
)

// Object is one decoded vendor JSON object.
type Object = map[string]any

// Get walks nested objects along path.
func Get(m Object, path ...string) any {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// Str returns the value at path as a string, "" when absent.
func Str(m Object, path ...string) string {
	return resolver.Stringify(Get(m, path...))
}

// First returns the first non-empty string among keys.
func First(m Object, keys ...string) string {
	for _, k := range keys {
		if s := Str(m, k); s != "" {
			return s
		}
	}
	return ""
}

// Int coerces the value at path to int64, nil when absent or unparsable.
func Int(m Object, path ...string) any {
	switch v := Get(m, path...).(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(f)
		}
	case int:
		return int64(v)
	case int64:
		return v
	}
	return nil
}

// Float coerces the value at path to float64, nil when absent or unparsable.
func Float(m Object, path ...string) any {
	switch v := Get(m, path...).(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return nil
}

// Bool reads a boolean, accepting "true"/"false" strings.
func Bool(m Object, path ...string) bool {
	switch v := Get(m, path...).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case float64:
		return v != 0
	}
	return false
}

// Join renders a list as sep-joined strings. A plain string passes through.
func Join(m Object, sep string, path ...string) string {
	switch v := Get(m, path...).(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := resolver.Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	case []string:
		return strings.Join(v, sep)
	default:
		return resolver.Stringify(v)
	}
}

// Decimal parses a monetary or numeric value exactly.
func Decimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if t == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(t)
		return d, err == nil
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}
	return decimal.Zero, false
}

// Amount reads a monetary value at path as float64, nil when absent.
func Amount(m Object, path ...string) any {
	d, ok := Decimal(Get(m, path...))
	if !ok {
		return nil
	}
	return d.InexactFloat64()
}

// MinorUnits converts an amount in minor units (cents) to a major-unit float.
func MinorUnits(m Object, path ...string) any {
	d, ok := Decimal(Get(m, path...))
	if !ok {
		return nil
	}
	return d.Shift(-2).InexactFloat64()
}

// ToMinorUnits converts a major-unit amount (e.g. "12.34") to integer cents.
func ToMinorUnits(v any) (int64, bool) {
	d, ok := Decimal(v)
	if !ok {
		return 0, false
	}
	return d.Shift(2).Round(0).IntPart(), true
}

// Objects converts a decoded JSON array into objects, skipping non-objects.
func Objects(v any) []Object {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Instances maps up to limit objects (all when limit <= 0) into tagged instances.
func Instances(namespace, entityType string, objs []Object, limit int, fn func(Object) instance.Attributes) []instance.Instance {
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	out := make([]instance.Instance, 0, len(objs))
	for _, obj := range objs {
		out = append(out, instance.Make(namespace, entityType, fn(obj)))
	}
	return out
}

// Compact drops nil and empty-string values. Used to build vendor payloads from optional inputs.
func Compact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
		case []string:
			if len(t) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// NumericID sends numeric ids as integers and anything else unchanged. Empty becomes nil.
func NumericID(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// Snake converts a vendor field name ("First Name", "CloseDate", "Amount (USD)")
// to snake_case.
func Snake(name string) string {
	var b strings.Builder
	prevLower := false
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsUpper(r):
			if prevLower || pendingSep {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			pendingSep = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			prevLower = true
			pendingSep = false
		default:
			pendingSep = b.Len() > 0
			prevLower = false
		}
	}
	return b.String()
}

// Unix renders an epoch-seconds value at path as RFC 3339 UTC, "" when absent.
func Unix(m Object, path ...string) string {
	n, ok := Int(m, path...).(int64)
	if !ok || n == 0 {
		return ""
	}
	return time.Unix(n, 0).UTC().Format(time.RFC3339)
}
