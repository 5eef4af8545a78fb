package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
	"golang.org/x/oauth2"
)

func TestCacheReusesTokenUntilMargin(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	var fetches int32
	src := SourceFunc(func(context.Context) (Token, error) {
		n := atomic.AddInt32(&fetches, 1)
		return Token{Value: "tok-" + string(rune('0'+n)), Expiry: mock.Now().Add(10 * time.Minute)}, nil
	})
	cache := NewCache(src, CacheOptions{Clock: mock, Margin: time.Minute})

	first, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	mock.Add(8 * time.Minute)
	second, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first.Value != second.Value || atomic.LoadInt32(&fetches) != 1 {
		t.Fatalf("token refreshed early: first=%q second=%q fetches=%d", first.Value, second.Value, fetches)
	}

	mock.Add(90 * time.Second)
	third, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if third.Value == first.Value || atomic.LoadInt32(&fetches) != 2 {
		t.Fatalf("token not refreshed inside margin: third=%q fetches=%d", third.Value, fetches)
	}
}

func TestCacheInvalidateForcesFetch(t *testing.T) {
	t.Parallel()

	var fetches int32
	cache := NewCache(SourceFunc(func(context.Context) (Token, error) {
		atomic.AddInt32(&fetches, 1)
		return Token{Value: "static"}, nil
	}), CacheOptions{})

	for range 3 {
		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	cache.Invalidate()
	if _, err := cache.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}

func TestCacheConcurrentMissesShareFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var fetches int32
	cache := NewCache(SourceFunc(func(context.Context) (Token, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return Token{Value: "shared"}, nil
	}), CacheOptions{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Token(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}
}

func TestCacheCanceledCallerDoesNotFailWaiters(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	cache := NewCache(SourceFunc(func(ctx context.Context) (Token, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return Token{}, err
		}
		return Token{Value: "shared"}, nil
	}), CacheOptions{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Token(firstCtx)
		firstErr <- err
	}()
	<-started

	type result struct {
		tok Token
		err error
	}
	second := make(chan result, 1)
	go func() {
		tok, err := cache.Token(context.Background())
		second <- result{tok, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; err != context.Canceled {
		t.Fatalf("first caller err = %v, want %v", err, context.Canceled)
	}
	close(release)

	got := <-second
	if got.err != nil || got.tok.Value != "shared" {
		t.Fatalf("second caller = %q, %v, want shared token", got.tok.Value, got.err)
	}
}

func TestCacheApplySetsHeader(t *testing.T) {
	t.Parallel()

	cache := NewCache(Basic("apikey", "X"), CacheOptions{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := cache.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Basic YXBpa2V5Olg=" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestChainPrefersFirstEligibleMethod(t *testing.T) {
	t.Parallel()

	env := map[string]string{"X_TOKEN": "direct", "X_CLIENT_ID": "id", "X_REFRESH_TOKEN": "rt"}
	var refreshBuilt bool
	chain := &Chain{
		Vendor: "x",
		Get:    func(k string) string { return env[k] },
		Methods: []Method{
			{Name: "token", Requires: []string{"X_TOKEN"}, Build: func(get func(string) string) Source {
				return Static(get("X_TOKEN"), "Bearer")
			}},
			{Name: "refresh", Requires: []string{"X_CLIENT_ID", "X_REFRESH_TOKEN"}, Build: func(func(string) string) Source {
				refreshBuilt = true
				return Static("refreshed", "Bearer")
			}},
		},
	}

	tok, err := chain.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Value != "direct" || tok.Method != "token" {
		t.Fatalf("token = %+v, want direct token", tok)
	}
	if refreshBuilt {
		t.Fatal("refresh method built although direct token is set")
	}
}

func TestChainMissingConfigNamesVariables(t *testing.T) {
	t.Parallel()

	chain := &Chain{
		Vendor: "box",
		Get:    func(k string) string { return map[string]string{"BOX_CLIENT_ID": "id"}[k] },
		Methods: []Method{
			{Name: "developer token", Requires: []string{"BOX_DEVELOPER_TOKEN"}},
			{Name: "refresh token", Requires: []string{"BOX_CLIENT_ID", "BOX_CLIENT_SECRET", "BOX_REFRESH_TOKEN"}},
		},
	}

	_, err := chain.Token(context.Background())
	if !resolver.IsKind(err, resolver.KindConfig) {
		t.Fatalf("err = %v, want config error", err)
	}
	msg := err.Error()
	for _, want := range []string{"BOX_CLIENT_SECRET", "BOX_REFRESH_TOKEN", "BOX_DEVELOPER_TOKEN"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %s", msg, want)
		}
	}
}

func newTokenServer(t *testing.T, handler func(form url.Values) string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(r.PostForm)))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRefreshKeepsRotatedToken(t *testing.T) {
	t.Parallel()

	var seen []string
	srv, calls := newTokenServer(t, func(form url.Values) string {
		seen = append(seen, form.Get("refresh_token"))
		return `{"access_token":"at","token_type":"bearer","expires_in":3600,"refresh_token":"rt-next"}`
	})

	r := NewRefresh(&oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}, "rt-first", nil)
	for range 2 {
		tok, err := r.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok.Value != "at" || tok.Type != "Bearer" {
			t.Fatalf("token = %+v", tok)
		}
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("calls = %d, want 2", *calls)
	}
	if seen[0] != "rt-first" || seen[1] != "rt-next" {
		t.Fatalf("refresh tokens sent = %v", seen)
	}
}

func TestCodeExchangeThenRefresh(t *testing.T) {
	t.Parallel()

	var grants []string
	srv, _ := newTokenServer(t, func(form url.Values) string {
		grants = append(grants, form.Get("grant_type"))
		return `{"access_token":"at","expires_in":60,"refresh_token":"rt"}`
	})

	src := &CodeExchange{Config: &oauth2.Config{ClientID: "id", ClientSecret: "s", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}, Code: "code-1"}
	for range 2 {
		if _, err := src.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if len(grants) != 2 || grants[0] != "authorization_code" || grants[1] != "refresh_token" {
		t.Fatalf("grants = %v", grants)
	}
}

func TestPostTokenFormSurfacesStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{"grant_type": {"x"}}, nil)
	if !resolver.IsKind(err, resolver.KindHTTPStatus) || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("err = %v, want http_status 400 error embedding body", err)
	}
}

func TestJWTBearerSignsAssertion(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	escaped := strings.ReplaceAll(keyPEM, "\n", `\n`)

	var assertion string
	srv, _ := newTokenServer(t, func(form url.Values) string {
		assertion = form.Get("assertion")
		if form.Get("grant_type") != GrantTypeJWTBearer {
			t.Errorf("grant_type = %q", form.Get("grant_type"))
		}
		return `{"access_token":"sf","instance_url":"https://acme.my.salesforce.com"}`
	})

	src := &JWTBearer{
		TokenURL: srv.URL,
		Assertion: func(now time.Time) (string, error) {
			return SignRS256(jwt.RegisteredClaims{Issuer: "client", Subject: "user", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}, escaped, "kid-1")
		},
	}
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Extra["instance_url"] != "https://acme.my.salesforce.com" {
		t.Fatalf("instance_url = %q", tok.Extra["instance_url"])
	}

	parsed, err := jwt.ParseWithClaims(assertion, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) { return &key.PublicKey, nil })
	if err != nil {
		t.Fatalf("parse assertion: %v", err)
	}
	if parsed.Header["kid"] != "kid-1" {
		t.Fatalf("kid = %v", parsed.Header["kid"])
	}
	if claims := parsed.Claims.(*jwt.RegisteredClaims); claims.Subject != "user" {
		t.Fatalf("sub = %q", claims.Subject)
	}
}
