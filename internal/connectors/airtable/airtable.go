package airtable

import (
	"context"
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
	Kind = "airtable"

	envAPIKey       = "AIRTABLE_API_KEY"
	envBaseID       = "AIRTABLE_BASE_ID"
	envTableName    = "AIRTABLE_TABLE_NAME"
	envBaseURL      = "AIRTABLE_BASE_URL"
	envPollInterval = "AIRTABLE_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://api.airtable.com/v0"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Airtable" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envAPIKey, envBaseID)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client   *httpclient.Client
	baseID   string
	table    string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	base := strings.TrimSpace(get(envBaseURL))
	if base == "" {
		base = defaultBaseURL
	}
	chain := &credential.Chain{
		Vendor: "Airtable",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "personal access token",
			Requires: []string{envAPIKey},
			Build: func(get func(string) string) credential.Source {
				return credential.Static(get(envAPIKey), "Bearer")
			},
		}},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:       Kind,
			BaseURL:    base,
			Auth:       credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			MaxRetries: 2,
			Logger:     logger,
			HTTP:       deps.HTTP,
		}),
		baseID:   strings.TrimSpace(get(envBaseID)),
		table:    strings.TrimSpace(get(envTableName)),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return resolver.CRUD(entityRecord, c.CreateRecord, c.QueryRecord, c.UpdateRecord, c.DeleteRecord)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "records",
		Interval:   c.interval,
		Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.listRecords(ctx, c.table) },
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
