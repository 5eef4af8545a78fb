package zohocrm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/connectors/zoho"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "zohocrm"

	envAPIURL       = "ZOHO_CRM_API_URL"
	envPollInterval = "ZOHO_CRM_POLL_INTERVAL_MINUTES"

	defaultAPIURL       = "https://www.zohoapis.com/crm/v2"
	defaultPollInterval = 10 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Zoho CRM" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, zoho.CredentialKeys...)
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

	base := strings.TrimSpace(get(envAPIURL))
	if base == "" {
		base = defaultAPIURL
	}
	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           base,
			Auth:              zoho.Credentials(Kind, get, deps.HTTP, clk),
			DecodeError:       zoho.DecodeError,
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	var hs resolver.Handlers
	for _, m := range modules {
		hs = append(hs, resolver.CRUD(m.entity,
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.create(ctx, m, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.query(ctx, m, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.update(ctx, m, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.delete(ctx, m, attrs) },
		)...)
	}
	return hs
}

// Pollers lists every module each interval and emits only records this
// process has not emitted before.
func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	out := make([]*poller.Poller, 0, len(modules))
	for _, m := range modules {
		out = append(out, &poller.Poller{
			Connector:  Kind,
			Name:       strings.ToLower(m.name),
			Interval:   c.interval,
			Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.list(ctx, m) },
			Subscriber: sub,
			Seen:       poller.NewSeenSet(0),
			Clock:      c.clock,
			Logger:     c.logger,
		})
	}
	return out
}
