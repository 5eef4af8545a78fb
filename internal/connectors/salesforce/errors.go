package salesforce

import (
	"encoding/json"
	"strings"

	"github.com/open-sspm/resolvers/internal/resolver"
)

// apiError is one element of the error array Salesforce returns on failure.
type apiError struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields"`
}

func vendorCode(errorCode string) string {
	switch errorCode {
	case "NOT_FOUND", "ENTITY_IS_DELETED", "INVALID_CROSS_REFERENCE_KEY":
		return resolver.CodeNotFound
	case "DUPLICATE_VALUE", "DUPLICATES_DETECTED":
		return resolver.CodeAlreadyExists
	default:
		return ""
	}
}

// decodeError maps known errorCodes onto vendor errors. Anything else stays a
// plain http_status error.
func decodeError(_ int, body []byte) *resolver.Error {
	var errs []apiError
	if err := json.Unmarshal(body, &errs); err != nil || len(errs) == 0 {
		return nil
	}
	first := errs[0]
	code := vendorCode(first.ErrorCode)
	if code == "" {
		return nil
	}
	msg := "salesforce " + first.ErrorCode + ": " + first.Message
	if len(first.Fields) > 0 {
		msg += " (" + strings.Join(first.Fields, ", ") + ")"
	}
	return resolver.Vendorf(code, "%s", msg)
}

// saveResult is the body of a create call.
type saveResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

func (r saveResult) err() *resolver.Error {
	if r.Success && r.ID != "" {
		return nil
	}
	if len(r.Errors) > 0 {
		e := r.Errors[0]
		return resolver.Vendorf(vendorCode(e.ErrorCode), "salesforce %s: %s", e.ErrorCode, e.Message)
	}
	return resolver.Vendorf("", "salesforce create returned no id")
}
