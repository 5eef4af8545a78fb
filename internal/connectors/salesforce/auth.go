package salesforce

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/open-sspm/resolvers/internal/credential"
	"golang.org/x/oauth2"
)

// Salesforce rejects JWT bearer assertions valid for more than three minutes.
const assertionLifetime = 3 * time.Minute

var authKeys = [][]string{
	{envAccessToken, envInstanceURL},
	{envClientID, envClientSecret, envRefreshToken},
	{envClientID, envClientSecret, envUsername, envPassword},
	{envClientID, envUsername, envPrivateKey},
}

func loginURL(get func(string) string) string {
	if v := strings.TrimRight(strings.TrimSpace(get(envLoginURL)), "/"); v != "" {
		return v
	}
	return defaultLoginURL
}

func oauthConfig(get func(string) string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strings.TrimSpace(get(envClientID)),
		ClientSecret: strings.TrimSpace(get(envClientSecret)),
		Endpoint: oauth2.Endpoint{
			AuthURL:   loginURL(get) + "/services/oauth2/authorize",
			TokenURL:  loginURL(get) + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func credentialChain(get func(string) string, hc *http.Client) *credential.Chain {
	return &credential.Chain{
		Vendor: "Salesforce",
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
					return credential.NewRefresh(oauthConfig(get), get(envRefreshToken), hc)
				},
			},
			{
				Name:     "username password",
				Requires: authKeys[2],
				Build: func(get func(string) string) credential.Source {
					// The security token is appended to the password.
					return &credential.Password{
						Config:   oauthConfig(get),
						Username: strings.TrimSpace(get(envUsername)),
						Password: get(envPassword) + strings.TrimSpace(get(envSecurityToken)),
						HTTP:     hc,
					}
				},
			},
			{
				Name:     "jwt bearer",
				Requires: authKeys[3],
				Build: func(get func(string) string) credential.Source {
					clientID := strings.TrimSpace(get(envClientID))
					username := strings.TrimSpace(get(envUsername))
					audience := loginURL(get)
					key := get(envPrivateKey)
					return &credential.JWTBearer{
						TokenURL: audience + "/services/oauth2/token",
						Assertion: func(now time.Time) (string, error) {
							return credential.SignRS256(jwt.RegisteredClaims{
								Issuer:    clientID,
								Subject:   username,
								Audience:  jwt.ClaimStrings{audience},
								ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
							}, key, "")
						},
						HTTP: hc,
					}
				},
			},
		},
	}
}
