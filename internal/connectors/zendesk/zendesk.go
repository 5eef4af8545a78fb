package zendesk

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
	Kind = "zendesk"

	envSubdomain    = "ZENDESK_SUBDOMAIN"
	envBaseURL      = "ZENDESK_BASE_URL"
	envEmail        = "ZENDESK_EMAIL"
	envAPIToken     = "ZENDESK_API_TOKEN"
	envOAuthToken   = "ZENDESK_OAUTH_TOKEN"
	envPollInterval = "ZENDESK_POLL_INTERVAL_MINUTES"

	defaultPollInterval = 5 * time.Minute
	pageSize            = 100
	maxRetries          = 2
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Zendesk" }

func (Definition) IsConfigured(get func(string) string) bool {
	if baseURL(get) == "" {
		return false
	}
	return registry.AnySet(get, []string{envOAuthToken}, []string{envEmail, envAPIToken})
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

// Connector talks to the Zendesk Support API.
type Connector struct {
	client   *httpclient.Client
	creds    *credential.Cache
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	chain := &credential.Chain{
		Vendor: "Zendesk",
		Get:    get,
		Methods: []credential.Method{
			{Name: "oauth token", Requires: []string{envOAuthToken}, Build: func(get func(string) string) credential.Source {
				return credential.Static(get(envOAuthToken), "Bearer")
			}},
			{Name: "api token", Requires: []string{envEmail, envAPIToken}, Build: func(get func(string) string) credential.Source {
				return credential.Basic(get(envEmail)+"/token", get(envAPIToken))
			}},
		},
	}
	creds := credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk})

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:       Kind,
			BaseURL:    baseURL(get),
			BaseURLEnv: envSubdomain,
			Auth:       creds,
			MaxRetries: maxRetries,
			Logger:     logger,
			HTTP:       deps.HTTP,
		}),
		creds:    creds,
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func baseURL(get func(string) string) string {
	if v := strings.TrimSpace(get(envBaseURL)); v != "" {
		return strings.TrimRight(v, "/")
	}
	sub := strings.TrimSpace(get(envSubdomain))
	if sub == "" {
		return ""
	}
	return "https://" + sub + ".zendesk.com/api/v2"
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	var hs resolver.Handlers
	hs = append(hs, resolver.CRUD(entityTicket, c.CreateTicket, c.QueryTicket, c.UpdateTicket, c.DeleteTicket)...)
	hs = append(hs, resolver.CRUD(entityUser, c.CreateUser, c.QueryUser, c.UpdateUser, c.DeleteUser)...)
	return hs
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
