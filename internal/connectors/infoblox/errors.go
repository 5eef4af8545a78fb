package infoblox

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/open-sspm/resolvers/internal/resolver"
)

// wapiError is the body WAPI sends with non-2xx responses.
type wapiError struct {
	Error string `json:"Error"`
	Code  string `json:"code"`
	Text  string `json:"text"`
}

func decodeError(status int, body []byte) *resolver.Error {
	var e wapiError
	_ = json.Unmarshal(body, &e)
	msg := e.Text
	if msg == "" {
		msg = e.Error
	}
	switch {
	case strings.Contains(e.Code, "Data.Conflict") || strings.Contains(e.Error, "IB.Data.Conflict"):
		return resolver.Vendorf(resolver.CodeAlreadyExists, "infoblox: %s", msg)
	case strings.Contains(e.Code, "Data.NotFound") || status == http.StatusNotFound:
		if msg == "" {
			msg = "object not found"
		}
		return resolver.Vendorf(resolver.CodeNotFound, "infoblox: %s", msg)
	}
	return nil
}
