package freshdesk

import (
	"log/slog"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "freshdesk"

	envDomain       = "FRESHDESK_DOMAIN"
	envBaseURL      = "FRESHDESK_BASE_URL"
	envAPIKey       = "FRESHDESK_API_KEY"
	envPollInterval = "FRESHDESK_POLL_INTERVAL_MINUTES"

	defaultPollInterval = 5 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Freshdesk" }

func (Definition) IsConfigured(get func(string) string) bool {
	return baseURL(get) != "" && registry.AllSet(get, envAPIKey)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client   *httpclient.Client
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	// Freshdesk takes the API key as the basic-auth user with any password.
	chain := &credential.Chain{
		Vendor: "Freshdesk",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "api key",
			Requires: []string{envAPIKey},
			Build: func(get func(string) string) credential.Source {
				return credential.Basic(get(envAPIKey), "X")
			},
		}},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:       Kind,
			BaseURL:    baseURL(get),
			BaseURLEnv: envDomain,
			Auth:       credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			MaxRetries: 2,
			Logger:     logger,
			HTTP:       deps.HTTP,
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

// baseURL accepts FRESHDESK_DOMAIN as "acme" or "acme.freshdesk.com".
func baseURL(get func(string) string) string {
	if v := strings.TrimSpace(get(envBaseURL)); v != "" {
		return strings.TrimRight(v, "/")
	}
	domain := strings.TrimSpace(get(envDomain))
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	domain = strings.TrimRight(domain, "/")
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, ".") {
		domain += ".freshdesk.com"
	}
	return "https://" + domain + "/api/v2"
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityTicket, c.CreateTicket, c.QueryTicket, c.UpdateTicket, c.DeleteTicket),
		resolver.CRUD(entityContact, c.CreateContact, c.QueryContact, c.UpdateContact, c.DeleteContact)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "tickets",
		Interval:   c.interval,
		Fetch:      c.listTickets,
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
