package github

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	gh "github.com/google/go-github/v74/github"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// appJWTLifetime stays under GitHub's ten minute ceiling.
const appJWTLifetime = 9 * time.Minute

func credentialChain(get func(string) string, cfg Config, hc *http.Client, clk clock.Clock) *credential.Chain {
	return &credential.Chain{
		Vendor: "GitHub",
		Get:    get,
		Methods: []credential.Method{
			{
				Name:     "token",
				Requires: authKeys[0],
				Build: func(get func(string) string) credential.Source {
					return credential.Static(get(envToken), "Bearer")
				},
			},
			{
				Name:     "oauth code",
				Requires: authKeys[1],
				Build: func(get func(string) string) credential.Source {
					endpoint := endpoints.GitHub
					if u := strings.TrimSpace(get(envOAuthURL)); u != "" {
						endpoint.TokenURL = u
					}
					endpoint.AuthStyle = oauth2.AuthStyleInParams
					return &credential.CodeExchange{
						Config: &oauth2.Config{
							ClientID:     strings.TrimSpace(get(envClientID)),
							ClientSecret: strings.TrimSpace(get(envClientSecret)),
							Endpoint:     endpoint,
						},
						Code: get(envAuthCode),
						HTTP: hc,
					}
				},
			},
			{
				Name:     "app installation",
				Requires: authKeys[2],
				Build: func(get func(string) string) credential.Source {
					return &appInstallation{
						appID:          strings.TrimSpace(get(envAppID)),
						privateKey:     get(envAppPrivateKey),
						installationID: strings.TrimSpace(get(envInstallationID)),
						apiBase:        cfg.APIBase,
						http:           hc,
						clock:          clk,
					}
				},
			},
		},
	}
}

// appInstallation mints installation tokens with a short-lived App JWT.
type appInstallation struct {
	appID          string
	privateKey     string
	installationID string
	apiBase        string
	http           *http.Client
	clock          clock.Clock
}

func (a *appInstallation) Token(ctx context.Context) (credential.Token, error) {
	id, err := strconv.ParseInt(a.installationID, 10, 64)
	if err != nil {
		return credential.Token{}, resolver.Configf("github: %s must be numeric: %q", envInstallationID, a.installationID)
	}
	now := a.clock.Now()
	signed, err := credential.SignRS256(jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}, a.privateKey, "")
	if err != nil {
		return credential.Token{}, resolver.Configf("github app jwt: %v", err)
	}

	client := gh.NewClient(a.http).WithAuthToken(signed)
	setBaseURL(client, a.apiBase)
	tok, _, err := client.Apps.CreateInstallationToken(ctx, id, nil)
	if err != nil {
		return credential.Token{}, apiError("github installation token", err)
	}
	return credential.Token{
		Value:  tok.GetToken(),
		Type:   "Bearer",
		Expiry: tok.GetExpiresAt().Time,
	}, nil
}
