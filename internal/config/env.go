package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Source supplies integration-scoped configuration values.
type Source interface {
	Name() string
	Fetch(ctx context.Context, integration string) (map[string]string, error)
}

// Env resolves connector configuration. Integration values come from the
// sources in order (first non-empty wins) and fall back to the local environment.
type Env struct {
	sources []Source
	lookup  func(string) (string, bool)

	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewEnv resolves local values from the process environment.
func NewEnv(sources ...Source) *Env {
	return &Env{
		sources: sources,
		lookup:  os.LookupEnv,
		values:  map[string]map[string]string{},
	}
}

// MapEnv resolves local values from m only.
func MapEnv(m map[string]string, sources ...Source) *Env {
	env := NewEnv(sources...)
	env.lookup = func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
	return env
}

// Load fetches every source's values for the given integrations. A failing
// source is logged and skipped; the remaining sources and the local environment still apply.
func (e *Env) Load(ctx context.Context, integrations ...string) {
	for _, integration := range integrations {
		integration = normalizeIntegration(integration)
		merged := map[string]string{}
		for _, src := range e.sources {
			vals, err := src.Fetch(ctx, integration)
			if err != nil {
				slog.Warn("integration config source failed", "source", src.Name(), "integration", integration, "err", err)
				continue
			}
			for k, v := range vals {
				if _, seen := merged[k]; !seen && strings.TrimSpace(v) != "" {
					merged[k] = v
				}
			}
		}
		e.mu.Lock()
		e.values[integration] = merged
		e.mu.Unlock()
	}
}

// Local returns the trimmed local environment value for key.
func (e *Env) Local(key string) string {
	if e == nil || e.lookup == nil {
		return ""
	}
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

// Integration returns key for integration, falling back to Local(key).
func (e *Env) Integration(integration, key string) string {
	if e == nil {
		return ""
	}
	e.mu.RLock()
	v := e.values[normalizeIntegration(integration)][key]
	e.mu.RUnlock()
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return e.Local(key)
}

// Lookup returns a key reader bound to one integration.
func (e *Env) Lookup(integration string) func(string) string {
	return func(key string) string {
		return e.Integration(integration, key)
	}
}

// IntDefault returns a positive integer value or def.
func (e *Env) IntDefault(integration, key string, def int) int {
	if n, ok := parsePositiveInt(e.Integration(integration, key)); ok {
		return n
	}
	return def
}

// BoolDefault accepts 1/0, true/false, yes/no.
func (e *Env) BoolDefault(integration, key string, def bool) bool {
	if b, ok := parseBool(e.Integration(integration, key)); ok {
		return b
	}
	return def
}

// MinutesDefault reads a whole number of minutes.
func (e *Env) MinutesDefault(integration, key string, def time.Duration) time.Duration {
	if n, ok := parsePositiveInt(e.Integration(integration, key)); ok {
		return time.Duration(n) * time.Minute
	}
	return def
}

// Missing returns the keys that resolve to an empty value.
func (e *Env) Missing(integration string, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if e.Integration(integration, k) == "" {
			out = append(out, k)
		}
	}
	return out
}

func (e *Env) String() string {
	names := make([]string, 0, len(e.sources))
	for _, s := range e.sources {
		names = append(names, s.Name())
	}
	return fmt.Sprintf("env(sources=%s)", strings.Join(names, ","))
}

func normalizeIntegration(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
