package credential

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/open-sspm/resolvers/internal/metrics"
	"github.com/raulk/clock"
	"golang.org/x/sync/singleflight"
)

// DefaultMargin is subtracted from a token's expiry before it is considered stale.
const DefaultMargin = 60 * time.Second

// Token is an acquired credential. A zero Expiry never expires.
type Token struct {
	Value  string
	Type   string
	Expiry time.Time
	Method string
	Extra  map[string]string
}

// HeaderValue renders the Authorization header value, defaulting the type to Bearer.
func (t Token) HeaderValue() string {
	typ := strings.TrimSpace(t.Type)
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

func (t Token) validAt(now time.Time, margin time.Duration) bool {
	if strings.TrimSpace(t.Value) == "" {
		return false
	}
	return t.Expiry.IsZero() || t.Expiry.After(now.Add(margin))
}

// Source acquires a fresh token.
type Source interface {
	Token(ctx context.Context) (Token, error)
}

type SourceFunc func(ctx context.Context) (Token, error)

func (f SourceFunc) Token(ctx context.Context) (Token, error) { return f(ctx) }

// Static returns value with the given type on every call.
func Static(value, typ string) Source {
	return SourceFunc(func(context.Context) (Token, error) {
		return Token{Value: strings.TrimSpace(value), Type: typ}, nil
	})
}

// Basic encodes user:password for HTTP basic auth.
func Basic(user, password string) Source {
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	return Static(encoded, "Basic")
}

type CacheOptions struct {
	Connector string
	Clock     clock.Clock
	Margin    time.Duration
}

// Cache holds one connector's current token and refreshes it from source
// once it is within Margin of expiring. Concurrent misses share one fetch.
type Cache struct {
	source    Source
	connector string
	clock     clock.Clock
	margin    time.Duration

	mu      sync.Mutex
	current Token
	group   singleflight.Group
}

func NewCache(source Source, opts CacheOptions) *Cache {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Cache{
		source:    source,
		connector: opts.Connector,
		clock:     clk,
		margin:    margin,
	}
}

// Token returns the cached token or fetches a new one.
func (c *Cache) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur.validAt(c.clock.Now(), c.margin) {
		return cur, nil
	}

	// The shared fetch ignores caller cancellation; each caller stops waiting on its own ctx.
	ch := c.group.DoChan("token", func() (any, error) {
		c.mu.Lock()
		cur := c.current
		c.mu.Unlock()
		if cur.validAt(c.clock.Now(), c.margin) {
			return cur, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTokenTimeout)
		defer cancel()
		tok, err := c.source.Token(fetchCtx)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.TokenFetchesTotal.WithLabelValues(c.connector, methodLabel(tok), status).Inc()
		if err != nil {
			return Token{}, err
		}

		c.mu.Lock()
		c.current = tok
		c.mu.Unlock()
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = Token{}
	c.mu.Unlock()
}

// Apply sets the Authorization header.
func (c *Cache) Apply(ctx context.Context, req *http.Request) error {
	tok, err := c.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", tok.HeaderValue())
	return nil
}

func methodLabel(t Token) string {
	if t.Method == "" {
		return "unknown"
	}
	return t.Method
}
