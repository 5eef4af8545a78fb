package registry

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

// ConnectorDefinition defines the behavior and metadata for a connector.
type ConnectorDefinition interface {
	// Identity
	Kind() string        // e.g., "zendesk", "zohocrm"
	DisplayName() string // e.g., "Zendesk", "Zoho CRM"

	// Configuration
	IsConfigured(get func(string) string) bool

	New(deps Deps) (Connector, error)
}

// Connector is a constructed resolver: CRUD handlers plus polling subscribers.
type Connector interface {
	Kind() string
	Handlers() resolver.Handlers
	Pollers(sub instance.Subscriber) []*poller.Poller
}

// Deps carries what a connector needs from the host.
type Deps struct {
	Env    *config.Env
	Logger *slog.Logger
	Clock  clock.Clock
	// HTTP overrides the transport, mainly for tests.
	HTTP *http.Client
	// PollIntervalOverride replaces every configured poll interval when positive.
	PollIntervalOverride time.Duration
}

// Get returns the integration-scoped value for kind, falling back to the local environment.
func (d Deps) Get(kind string) func(string) string {
	if d.Env == nil {
		return func(string) string { return "" }
	}
	return d.Env.Lookup(kind)
}

// Interval reads <key> in minutes, defaulting to def, unless the override is set.
func (d Deps) Interval(kind, key string, def time.Duration) time.Duration {
	if d.PollIntervalOverride > 0 {
		return d.PollIntervalOverride
	}
	if d.Env == nil {
		return def
	}
	return d.Env.MinutesDefault(kind, key, def)
}

func (d Deps) ConnectorLogger(kind string) *slog.Logger {
	return logging.Connector(d.Logger, kind)
}

func (d Deps) ClockOrDefault() clock.Clock {
	if d.Clock == nil {
		return clock.New()
	}
	return d.Clock
}

// AllSet reports whether every key has a non-empty value.
func AllSet(get func(string) string, keys ...string) bool {
	for _, k := range keys {
		if strings.TrimSpace(get(k)) == "" {
			return false
		}
	}
	return true
}

// AnySet reports whether any group of keys is fully set.
func AnySet(get func(string) string, groups ...[]string) bool {
	for _, g := range groups {
		if AllSet(get, g...) {
			return true
		}
	}
	return false
}
