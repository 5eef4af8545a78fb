package box

import (
	"encoding/json"
	"net/http"

	"github.com/open-sspm/resolvers/internal/resolver"
)

// decodeError reads the Box error object
// {"type":"error","status":409,"code":"item_name_in_use","message":"..."}.
func decodeError(status int, body []byte) *resolver.Error {
	var e struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Type != "error" {
		return nil
	}
	switch {
	case status == http.StatusConflict || e.Code == "item_name_in_use":
		return resolver.Vendorf(resolver.CodeAlreadyExists, "box %s: %s", e.Code, e.Message)
	case status == http.StatusNotFound || e.Code == "not_found" || e.Code == "trashed":
		return resolver.Vendorf(resolver.CodeNotFound, "box %s: %s", e.Code, e.Message)
	default:
		return nil
	}
}
