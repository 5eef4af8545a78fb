package resolver

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/open-sspm/resolvers/internal/instance"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("attr"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Bind decodes attrs into out (a pointer to a struct tagged with `attr`) and runs
// its `validate` rules. Strings are split on commas for slice fields and weakly
// converted for numeric ones. Missing required fields are reported by attribute name.
func Bind(attrs instance.Attributes, out any) *Error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "attr",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Validationf("invalid attribute binding: %v", err)
	}
	input := map[string]any{}
	for k, v := range attrs {
		if k == PathKey {
			continue
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		input[k] = v
	}
	if err := dec.Decode(input); err != nil {
		return Validationf("invalid attributes: %v", err)
	}
	if err := validate.Struct(out); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validationf("invalid attributes: %v", err)
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fe.Field()+" ("+fe.Tag()+")")
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required field(s): "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid field(s): "+strings.Join(invalid, ", "))
	}
	return Validationf("%s", strings.Join(parts, "; "))
}

// Require returns a validation error naming the first empty key.
func Require(attrs instance.Attributes, keys ...string) *Error {
	var missing []string
	for _, k := range keys {
		if isEmpty(attrs[k]) {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return Validationf("missing required field(s): %s", strings.Join(missing, ", "))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
