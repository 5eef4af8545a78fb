// Package salesforce adapts Salesforce accounts, contacts and opportunities
// through the REST API. The instance URL comes from SALESFORCE_INSTANCE_URL or,
// for OAuth flows, from the token response.
package salesforce

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
	Kind = "salesforce"

	envInstanceURL   = "SALESFORCE_INSTANCE_URL"
	envAccessToken   = "SALESFORCE_ACCESS_TOKEN"
	envClientID      = "SALESFORCE_CLIENT_ID"
	envClientSecret  = "SALESFORCE_CLIENT_SECRET"
	envRefreshToken  = "SALESFORCE_REFRESH_TOKEN"
	envUsername      = "SALESFORCE_USERNAME"
	envPassword      = "SALESFORCE_PASSWORD"
	envSecurityToken = "SALESFORCE_SECURITY_TOKEN"
	envPrivateKey    = "SALESFORCE_PRIVATE_KEY"
	envLoginURL      = "SALESFORCE_LOGIN_URL"
	envAPIVersion    = "SALESFORCE_API_VERSION"
	envPollInterval  = "SALESFORCE_POLL_INTERVAL_MINUTES"

	defaultLoginURL     = "https://login.salesforce.com"
	defaultAPIVersion   = "59.0"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Salesforce" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AnySet(get, authKeys...)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client      *httpclient.Client
	creds       *credential.Cache
	instanceURL string
	apiVersion  string
	interval    time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	creds := credential.NewCache(credentialChain(get, deps.HTTP), credential.CacheOptions{Connector: Kind, Clock: clk})
	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			Auth:              creds,
			DecodeError:       decodeError,
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		creds:       creds,
		instanceURL: strings.TrimRight(strings.TrimSpace(get(envInstanceURL)), "/"),
		apiVersion:  apiVersion(get),
		interval:    deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:       clk,
		logger:      logger,
	}
}

// apiVersion accepts "59.0" or "v59.0".
func apiVersion(get func(string) string) string {
	v := strings.TrimPrefix(strings.TrimSpace(get(envAPIVersion)), "v")
	if v == "" {
		return defaultAPIVersion
	}
	return v
}

// dataURL returns the REST root for the org, e.g.
// https://acme.my.salesforce.com/services/data/v59.0.
func (c *Connector) dataURL(ctx context.Context) (string, error) {
	base := c.instanceURL
	if base == "" {
		tok, err := c.creds.Token(ctx)
		if err != nil {
			return "", err
		}
		base = strings.TrimRight(tok.Extra["instance_url"], "/")
	}
	if base == "" {
		return "", resolver.Configf("salesforce instance url is unknown: set %s", envInstanceURL)
	}
	return base + "/services/data/v" + c.apiVersion, nil
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	var hs resolver.Handlers
	for _, o := range sobjects {
		hs = append(hs, resolver.CRUD(o.entity,
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.create(ctx, o, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.query(ctx, o, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.update(ctx, o, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.delete(ctx, o, attrs) },
		)...)
	}
	return hs
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	out := make([]*poller.Poller, 0, len(sobjects))
	for _, o := range sobjects {
		out = append(out, &poller.Poller{
			Connector:  Kind,
			Name:       o.plural,
			Interval:   c.interval,
			Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.list(ctx, o) },
			Subscriber: sub,
			Clock:      c.clock,
			Logger:     c.logger,
		})
	}
	return out
}
