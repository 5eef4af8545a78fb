package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/open-sspm/resolvers/internal/resolver"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenTimeout = 30 * time.Second
	defaultExpiresIn    = 3600
	maxTokenBodySize    = 1 << 20

	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

func tokenHTTP(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: defaultTokenTimeout}
}

func oauthContext(ctx context.Context, hc *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, tokenHTTP(hc))
}

// FromOAuth2 converts an oauth2 token, keeping instance_url and api_domain extras.
func FromOAuth2(t *oauth2.Token) Token {
	if t == nil {
		return Token{}
	}
	tok := Token{Value: t.AccessToken, Type: t.Type(), Expiry: t.Expiry}
	for _, key := range []string{"instance_url", "api_domain", "scope"} {
		if v, ok := t.Extra(key).(string); ok && v != "" {
			if tok.Extra == nil {
				tok.Extra = map[string]string{}
			}
			tok.Extra[key] = v
		}
	}
	return tok
}

// TokenError maps an oauth2 failure onto the resolver taxonomy.
func TokenError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return resolver.HTTPStatus(prefix, re.Response.StatusCode, re.Body)
	}
	var rerr *resolver.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return resolver.Network(prefix, err)
}

// Refresh exchanges a refresh token, keeping any rotated refresh token for the next call.
type Refresh struct {
	Config *oauth2.Config
	HTTP   *http.Client

	mu           sync.Mutex
	refreshToken string
}

func NewRefresh(cfg *oauth2.Config, refreshToken string, hc *http.Client) *Refresh {
	return &Refresh{Config: cfg, HTTP: hc, refreshToken: strings.TrimSpace(refreshToken)}
}

func (r *Refresh) Token(ctx context.Context) (Token, error) {
	r.mu.Lock()
	rt := r.refreshToken
	r.mu.Unlock()

	t, err := r.Config.TokenSource(oauthContext(ctx, r.HTTP), &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		return Token{}, TokenError("refresh token exchange", err)
	}
	if t.RefreshToken != "" {
		r.mu.Lock()
		r.refreshToken = t.RefreshToken
		r.mu.Unlock()
	}
	return FromOAuth2(t), nil
}

// CodeExchange redeems an authorization code once, then refreshes with the returned refresh token.
type CodeExchange struct {
	Config *oauth2.Config
	Code   string
	HTTP   *http.Client

	mu      sync.Mutex
	used    bool
	refresh *Refresh
}

func (c *CodeExchange) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refresh != nil {
		return c.refresh.Token(ctx)
	}
	if c.used {
		return Token{}, resolver.Configf("authorization code was already redeemed and no refresh token was issued")
	}
	c.used = true

	t, err := c.Config.Exchange(oauthContext(ctx, c.HTTP), strings.TrimSpace(c.Code))
	if err != nil {
		return Token{}, TokenError("authorization code exchange", err)
	}
	if t.RefreshToken != "" {
		c.refresh = NewRefresh(c.Config, t.RefreshToken, c.HTTP)
	}
	return FromOAuth2(t), nil
}

// ClientCredentials runs the client credentials grant.
type ClientCredentials struct {
	Config clientcredentials.Config
	HTTP   *http.Client
}

func (c *ClientCredentials) Token(ctx context.Context) (Token, error) {
	t, err := c.Config.Token(oauthContext(ctx, c.HTTP))
	if err != nil {
		return Token{}, TokenError("client credentials grant", err)
	}
	return FromOAuth2(t), nil
}

// Password runs the resource owner password grant.
type Password struct {
	Config   *oauth2.Config
	Username string
	Password string
	HTTP     *http.Client
}

func (p *Password) Token(ctx context.Context) (Token, error) {
	t, err := p.Config.PasswordCredentialsToken(oauthContext(ctx, p.HTTP), p.Username, p.Password)
	if err != nil {
		return Token{}, TokenError("password grant", err)
	}
	return FromOAuth2(t), nil
}

// OAuth2Source wraps any oauth2.TokenSource, e.g. a service-account JWT config.
func OAuth2Source(prefix string, ts oauth2.TokenSource) Source {
	return SourceFunc(func(context.Context) (Token, error) {
		t, err := ts.Token()
		if err != nil {
			return Token{}, TokenError(prefix, err)
		}
		return FromOAuth2(t), nil
	})
}

// JWTBearer posts a signed assertion with the jwt-bearer grant.
type JWTBearer struct {
	TokenURL  string
	Assertion func(now time.Time) (string, error)
	Params    url.Values
	HTTP      *http.Client
}

func (j *JWTBearer) Token(ctx context.Context) (Token, error) {
	assertion, err := j.Assertion(time.Now())
	if err != nil {
		return Token{}, resolver.Configf("sign jwt assertion: %v", err)
	}
	form := url.Values{}
	for k, v := range j.Params {
		form[k] = v
	}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("assertion", assertion)
	return PostTokenForm(ctx, tokenHTTP(j.HTTP), j.TokenURL, form, nil)
}

// PostTokenForm posts form to tokenURL and decodes a standard token response.
// header is applied to the request when non-nil.
func PostTokenForm(ctx context.Context, hc *http.Client, tokenURL string, form url.Values, header http.Header) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Token{}, resolver.Network("token request", err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodySize))
	resp.Body.Close()
	if readErr != nil {
		return Token{}, resolver.Network("token response", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, resolver.HTTPStatus("token request", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   any    `json:"expires_in"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return Token{}, errors.New("token response missing access_token")
	}
	expiresIn, ok := parseExpiresInSeconds(payload.ExpiresIn)
	if !ok {
		expiresIn = defaultExpiresIn
	}
	tok := Token{
		Value:  payload.AccessToken,
		Type:   normalizeTokenType(payload.TokenType),
		Expiry: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	if payload.InstanceURL != "" {
		tok.Extra = map[string]string{"instance_url": payload.InstanceURL}
	}
	return tok, nil
}

// SignRS256 signs claims with a PEM RSA private key. kid is set when non-empty.
func SignRS256(claims jwt.Claims, privateKeyPEM, kid string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(NormalizePEM(privateKeyPEM)))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		t.Header["kid"] = kid
	}
	return t.SignedString(key)
}

// NormalizePEM restores newlines in keys stored with literal "\n" sequences.
func NormalizePEM(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), `\n`, "\n")
}

func normalizeTokenType(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "bearer":
		return "Bearer"
	default:
		return typ
	}
}

func parseExpiresInSeconds(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
