package stripe

import (
	"encoding/json"
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
	Kind = "stripe"

	envSecretKey    = "STRIPE_SECRET_KEY"
	envBaseURL      = "STRIPE_BASE_URL"
	envPollInterval = "STRIPE_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://api.stripe.com/v1"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Stripe" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envSecretKey)
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
		Vendor: "Stripe",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "secret key",
			Requires: []string{envSecretKey},
			Build: func(get func(string) string) credential.Source {
				return credential.Static(get(envSecretKey), "Bearer")
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

// decodeError surfaces Stripe's error object; resource_missing becomes NotFound.
func decodeError(status int, body []byte) *resolver.Error {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Type == "" {
		return nil
	}
	code := ""
	if payload.Error.Code == "resource_missing" {
		code = resolver.CodeNotFound
	}
	return resolver.Vendorf(code, "stripe %s (%d): %s", payload.Error.Type, status, payload.Error.Message)
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityCustomer, c.CreateCustomer, c.QueryCustomer, c.UpdateCustomer, c.DeleteCustomer),
		resolver.CRUD(entityPaymentIntent, c.CreatePaymentIntent, c.QueryPaymentIntent, c.UpdatePaymentIntent, c.CancelPaymentIntent)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "customers",
		Interval:   c.interval,
		Fetch:      c.listCustomers,
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
