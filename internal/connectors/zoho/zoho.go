// Package zoho holds what Zoho CRM and Zoho Expense share: the accounts-server
// refresh token flow, the Zoho-oauthtoken authorization scheme and error
// envelope decoding.
package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
	"golang.org/x/oauth2"
)

const (
	EnvClientID     = "ZOHO_CLIENT_ID"
	EnvClientSecret = "ZOHO_CLIENT_SECRET"
	EnvRefreshToken = "ZOHO_REFRESH_TOKEN"
	EnvAccountsURL  = "ZOHO_ACCOUNTS_URL"

	DefaultAccountsURL = "https://accounts.zoho.com"

	// TokenType is the Authorization scheme Zoho APIs expect.
	TokenType = "Zoho-oauthtoken"
)

// CredentialKeys lists the settings every Zoho connector needs.
var CredentialKeys = []string{EnvClientID, EnvClientSecret, EnvRefreshToken}

// TokenURL returns the accounts-server token endpoint for the configured data center.
func TokenURL(get func(string) string) string {
	base := strings.TrimRight(strings.TrimSpace(get(EnvAccountsURL)), "/")
	if base == "" {
		base = DefaultAccountsURL
	}
	return base + "/oauth/v2/token"
}

// Credentials returns a cached refresh-token source that renders tokens with
// the Zoho-oauthtoken scheme. extra names connector settings that must also be
// present before any token is requested.
func Credentials(connector string, get func(string) string, hc *http.Client, clk clock.Clock, extra ...string) *credential.Cache {
	chain := &credential.Chain{
		Vendor: "Zoho",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "refresh token",
			Requires: append(append([]string{}, CredentialKeys...), extra...),
			Build: func(get func(string) string) credential.Source {
				cfg := &oauth2.Config{
					ClientID:     strings.TrimSpace(get(EnvClientID)),
					ClientSecret: strings.TrimSpace(get(EnvClientSecret)),
					Endpoint: oauth2.Endpoint{
						TokenURL:  TokenURL(get),
						AuthStyle: oauth2.AuthStyleInParams,
					},
				}
				refresh := credential.NewRefresh(cfg, get(EnvRefreshToken), hc)
				return credential.SourceFunc(func(ctx context.Context) (credential.Token, error) {
					tok, err := refresh.Token(ctx)
					if err != nil {
						return tok, err
					}
					tok.Type = TokenType
					return tok, nil
				})
			},
		}},
	}
	return credential.NewCache(chain, credential.CacheOptions{Connector: connector, Clock: clk})
}

// Detail is one entry of Zoho's per-record status envelope.
type Detail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

// Envelope is the CRM write response: one Detail per submitted record.
type Envelope struct {
	Data []Detail `json:"data"`
}

var codes = map[string]string{
	"DUPLICATE_DATA":   resolver.CodeAlreadyExists,
	"RECORD_NOT_FOUND": resolver.CodeNotFound,
	"INVALID_URL":      resolver.CodeNotFound,
}

// DetailError converts an error-status Detail into a vendor error, nil otherwise.
func DetailError(d Detail) *resolver.Error {
	if !strings.EqualFold(d.Status, "error") {
		return nil
	}
	msg := d.Message
	if field, ok := d.Details["api_name"].(string); ok && field != "" {
		msg += " (" + field + ")"
	}
	return resolver.Vendorf(codes[d.Code], "zoho %s: %s", d.Code, msg)
}

// DecodeError understands both the CRM shapes ({"data":[{code,...}]} and a
// top-level {code,message,status}) and Expense's {code:<number>,message}.
func DecodeError(status int, body []byte) *resolver.Error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		if verr := DetailError(env.Data[0]); verr != nil {
			return verr
		}
	}
	var top struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &top); err != nil || top.Message == "" {
		if status == http.StatusNotFound {
			return resolver.Vendorf(resolver.CodeNotFound, "zoho: not found")
		}
		return nil
	}
	code := resolver.Stringify(top.Code)
	mapped := codes[code]
	switch {
	case mapped != "":
	case status == http.StatusNotFound:
		mapped = resolver.CodeNotFound
	case strings.Contains(strings.ToLower(top.Message), "already exists"):
		mapped = resolver.CodeAlreadyExists
	}
	return resolver.Vendorf(mapped, "zoho %s: %s", code, top.Message)
}
