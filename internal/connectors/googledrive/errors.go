package googledrive

import (
	"encoding/json"
	"net/http"

	"github.com/open-sspm/resolvers/internal/resolver"
)

func configErrorf(format string, args ...any) *resolver.Error {
	return resolver.Configf("google drive: "+format, args...)
}

// decodeError recognises the Google API error envelope:
// {"error":{"code":404,"message":"File not found: x.","errors":[{"reason":"notFound"}]}}.
func decodeError(status int, body []byte) *resolver.Error {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		return nil
	}
	if status == http.StatusNotFound {
		return resolver.Vendorf(resolver.CodeNotFound, "google drive: %s", env.Error.Message)
	}
	for _, e := range env.Error.Errors {
		if e.Reason == "duplicate" {
			return resolver.Vendorf(resolver.CodeAlreadyExists, "google drive: %s", env.Error.Message)
		}
	}
	return nil
}
