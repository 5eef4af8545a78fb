package hubspot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
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
	Kind = "hubspot"

	envAccessToken  = "HUBSPOT_ACCESS_TOKEN"
	envBaseURL      = "HUBSPOT_BASE_URL"
	envPollInterval = "HUBSPOT_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://api.hubapi.com"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "HubSpot" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envAccessToken)
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

	base := strings.TrimSpace(get(envBaseURL))
	if base == "" {
		base = defaultBaseURL
	}
	chain := &credential.Chain{
		Vendor: "HubSpot",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "private app token",
			Requires: []string{envAccessToken},
			Build: func(get func(string) string) credential.Source {
				return credential.Static(get(envAccessToken), "Bearer")
			},
		}},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:        Kind,
			BaseURL:     base,
			Auth:        credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			DecodeError: decodeError,
			MaxRetries:  2,
			Logger:      logger,
			HTTP:        deps.HTTP,
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

// decodeError maps HubSpot's 409 CONFLICT (duplicate email or domain) onto AlreadyExists.
func decodeError(status int, body []byte) *resolver.Error {
	var payload struct {
		Category string `json:"category"`
		Message  string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	if status == http.StatusConflict || payload.Category == "CONFLICT" {
		msg := payload.Message
		if msg == "" {
			msg = "record already exists"
		}
		return resolver.Vendorf(resolver.CodeAlreadyExists, "hubspot: %s", msg)
	}
	return nil
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	var hs resolver.Handlers
	for _, obj := range objects {
		hs = append(hs, resolver.CRUD(obj.entity,
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.create(ctx, obj, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.query(ctx, obj, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.update(ctx, obj, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.delete(ctx, obj, attrs) },
		)...)
	}
	return hs
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	out := make([]*poller.Poller, 0, len(objects))
	for _, obj := range objects {
		out = append(out, &poller.Poller{
			Connector:  Kind,
			Name:       obj.path,
			Interval:   c.interval,
			Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.list(ctx, obj) },
			Subscriber: sub,
			Clock:      c.clock,
			Logger:     c.logger,
		})
	}
	return out
}
