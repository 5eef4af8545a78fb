package box

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/raulk/clock"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Box caps JWT assertion lifetime at 60 seconds.
const assertionLifetime = 45 * time.Second

var authKeys = [][]string{
	{envDeveloperToken},
	{envClientID, envClientSecret, envAuthCode},
	{envClientID, envClientSecret, envRefreshToken},
	{envClientID, envClientSecret, envEnterpriseID, envJWTKeyID, envJWTPrivateKey},
	{envClientID, envClientSecret, envEnterpriseID},
}

// assertionClaims are the Box JWT claims for an enterprise service account.
type assertionClaims struct {
	BoxSubType string `json:"box_sub_type"`
	jwt.RegisteredClaims
}

func oauthConfig(get func(string) string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strings.TrimSpace(get(envClientID)),
		ClientSecret: strings.TrimSpace(get(envClientSecret)),
		RedirectURL:  strings.TrimSpace(get(envRedirectURI)),
		Endpoint: oauth2.Endpoint{
			AuthURL:   authorizeURL,
			TokenURL:  setting(get, envTokenURL, defaultTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func credentialChain(get func(string) string, hc *http.Client, clk clock.Clock) *credential.Chain {
	return &credential.Chain{
		Vendor: "Box",
		Get:    get,
		Methods: []credential.Method{
			{
				Name:     "developer token",
				Requires: authKeys[0],
				Build: func(get func(string) string) credential.Source {
					return credential.Static(get(envDeveloperToken), "Bearer")
				},
			},
			{
				Name:     "auth code",
				Requires: authKeys[1],
				Build: func(get func(string) string) credential.Source {
					return &credential.CodeExchange{Config: oauthConfig(get), Code: get(envAuthCode), HTTP: hc}
				},
			},
			{
				Name:     "refresh token",
				Requires: authKeys[2],
				Build: func(get func(string) string) credential.Source {
					return credential.NewRefresh(oauthConfig(get), get(envRefreshToken), hc)
				},
			},
			{
				Name:     "jwt",
				Requires: authKeys[3],
				Build: func(get func(string) string) credential.Source {
					return jwtSource(get, hc, clk)
				},
			},
			{
				Name:     "client credentials",
				Requires: authKeys[4],
				Build: func(get func(string) string) credential.Source {
					return &credential.ClientCredentials{
						Config: clientcredentials.Config{
							ClientID:     strings.TrimSpace(get(envClientID)),
							ClientSecret: strings.TrimSpace(get(envClientSecret)),
							TokenURL:     setting(get, envTokenURL, defaultTokenURL),
							AuthStyle:    oauth2.AuthStyleInParams,
							EndpointParams: url.Values{
								"box_subject_type": {"enterprise"},
								"box_subject_id":   {strings.TrimSpace(get(envEnterpriseID))},
							},
						},
						HTTP: hc,
					}
				},
			},
		},
	}
}

func jwtSource(get func(string) string, hc *http.Client, clk clock.Clock) credential.Source {
	clientID := strings.TrimSpace(get(envClientID))
	tokenURL := setting(get, envTokenURL, defaultTokenURL)
	enterpriseID := strings.TrimSpace(get(envEnterpriseID))
	keyID := strings.TrimSpace(get(envJWTKeyID))
	key := get(envJWTPrivateKey)

	return &credential.JWTBearer{
		TokenURL: tokenURL,
		Assertion: func(time.Time) (string, error) {
			now := clk.Now()
			return credential.SignRS256(assertionClaims{
				BoxSubType: "enterprise",
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    clientID,
					Subject:   enterpriseID,
					Audience:  jwt.ClaimStrings{defaultTokenURL},
					ID:        uuid.NewString(),
					ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
				},
			}, key, keyID)
		},
		Params: url.Values{
			"client_id":     {clientID},
			"client_secret": {strings.TrimSpace(get(envClientSecret))},
		},
		HTTP: hc,
	}
}
