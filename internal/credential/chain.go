package credential

import (
	"context"
	"strings"
	"sync"

	"github.com/open-sspm/resolvers/internal/resolver"
)

// Method is one way of authenticating. It is eligible when every Requires key is set.
type Method struct {
	Name     string
	Requires []string
	Build    func(get func(string) string) Source
}

// Chain picks the first eligible method, in order, at fetch time.
// Built sources are kept so stateful flows (rotated refresh tokens, consumed
// authorization codes) survive across refreshes.
type Chain struct {
	Vendor  string
	Get     func(string) string
	Methods []Method

	mu    sync.Mutex
	built map[string]Source
}

func (c *Chain) Token(ctx context.Context) (Token, error) {
	m, ok := c.Select()
	if !ok {
		return Token{}, c.missingError()
	}
	src := c.source(m)
	tok, err := src.Token(ctx)
	if err != nil {
		return Token{Method: m.Name}, err
	}
	tok.Method = m.Name
	return tok, nil
}

// Select returns the first method whose required keys are all non-empty.
func (c *Chain) Select() (Method, bool) {
	for _, m := range c.Methods {
		if len(c.missing(m)) == 0 {
			return m, true
		}
	}
	return Method{}, false
}

func (c *Chain) source(m Method) Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.built == nil {
		c.built = map[string]Source{}
	}
	if src, ok := c.built[m.Name]; ok {
		return src
	}
	src := m.Build(c.get)
	c.built[m.Name] = src
	return src
}

func (c *Chain) get(key string) string {
	if c.Get == nil {
		return ""
	}
	return strings.TrimSpace(c.Get(key))
}

func (c *Chain) missing(m Method) []string {
	var out []string
	for _, k := range m.Requires {
		if c.get(k) == "" {
			out = append(out, k)
		}
	}
	return out
}

func (c *Chain) missingError() *resolver.Error {
	options := make([]string, 0, len(c.Methods))
	for _, m := range c.Methods {
		options = append(options, m.Name+" ("+strings.Join(m.Requires, ", ")+")")
	}
	// Name what is missing for the closest method so partial configs are obvious.
	var closest []string
	best := -1
	for _, m := range c.Methods {
		missing := c.missing(m)
		have := len(m.Requires) - len(missing)
		if have > best {
			best = have
			closest = missing
		}
	}
	return resolver.Configf("%s credentials are not configured: missing %s; set one of: %s",
		c.Vendor, strings.Join(closest, ", "), strings.Join(options, " | "))
}
