package github

import (
	"encoding/json"
	"errors"
	"net/http"

	gh "github.com/google/go-github/v74/github"
	"github.com/open-sspm/resolvers/internal/resolver"
)

// apiError maps go-github failures onto resolver errors. Credential failures
// from the transport keep their original classification.
func apiError(prefix string, err error) error {
	var rerr *resolver.Error
	if errors.As(err, &rerr) {
		return rerr
	}

	var rate *gh.RateLimitError
	if errors.As(err, &rate) && rate.Response != nil {
		return resolver.HTTPStatus(prefix, rate.Response.StatusCode, []byte(rate.Message))
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) && abuse.Response != nil {
		return resolver.HTTPStatus(prefix, abuse.Response.StatusCode, []byte(abuse.Message))
	}

	var gerr *gh.ErrorResponse
	if !errors.As(err, &gerr) || gerr.Response == nil {
		return resolver.Network(prefix, err)
	}
	status := gerr.Response.StatusCode
	body, _ := json.Marshal(gerr)

	var code string
	switch {
	case status == http.StatusNotFound:
		code = resolver.CodeNotFound
	case status == http.StatusUnprocessableEntity && hasErrorCode(gerr, "already_exists"):
		code = resolver.CodeAlreadyExists
	default:
		return resolver.HTTPStatus(prefix, status, body)
	}
	verr := resolver.Vendorf(code, "%s: %s", prefix, gerr.Message)
	verr.Status = status
	verr.Body = resolver.EmbedBody(body)
	return verr
}

func hasErrorCode(e *gh.ErrorResponse, code string) bool {
	for _, item := range e.Errors {
		if item.Code == code {
			return true
		}
	}
	return false
}
