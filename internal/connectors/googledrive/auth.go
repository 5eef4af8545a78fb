package googledrive

import (
	"context"
	"net/http"
	"strings"

	"github.com/open-sspm/resolvers/internal/credential"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const driveScope = "https://www.googleapis.com/auth/drive"

var authKeys = [][]string{
	{envAccessToken},
	{envClientID, envClientSecret, envRefreshToken},
	{envServiceAccountKey},
}

func credentialChain(get func(string) string, hc *http.Client) *credential.Chain {
	return &credential.Chain{
		Vendor: "Google Drive",
		Get:    get,
		Methods: []credential.Method{
			{
				Name:     "access token",
				Requires: authKeys[0],
				Build: func(get func(string) string) credential.Source {
					return credential.Static(get(envAccessToken), "Bearer")
				},
			},
			{
				Name:     "refresh token",
				Requires: authKeys[1],
				Build: func(get func(string) string) credential.Source {
					endpoint := google.Endpoint
					if u := strings.TrimSpace(get(envTokenURL)); u != "" {
						endpoint.TokenURL = u
					}
					return credential.NewRefresh(&oauth2.Config{
						ClientID:     strings.TrimSpace(get(envClientID)),
						ClientSecret: strings.TrimSpace(get(envClientSecret)),
						Endpoint:     endpoint,
						Scopes:       []string{driveScope},
					}, get(envRefreshToken), hc)
				},
			},
			{
				Name:     "service account",
				Requires: authKeys[2],
				Build:    serviceAccount(hc),
			},
		},
	}
}

// serviceAccount signs a JWT with the service-account key, impersonating
// GOOGLE_DRIVE_SUBJECT when set (domain-wide delegation).
func serviceAccount(hc *http.Client) func(get func(string) string) credential.Source {
	return func(get func(string) string) credential.Source {
		cfg, err := google.JWTConfigFromJSON([]byte(get(envServiceAccountKey)), driveScope)
		if err != nil {
			return credential.SourceFunc(func(context.Context) (credential.Token, error) {
				return credential.Token{}, configErrorf("parse %s: %v", envServiceAccountKey, err)
			})
		}
		cfg.Subject = strings.TrimSpace(get(envSubject))
		if u := strings.TrimSpace(get(envTokenURL)); u != "" {
			cfg.TokenURL = u
		}
		ctx := context.Background()
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		return credential.OAuth2Source("service account token", cfg.TokenSource(ctx))
	}
}
