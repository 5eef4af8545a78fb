// Package github adapts GitHub issues and repositories through go-github.
// Credentials come from a personal/installation token, a one-time OAuth code
// exchange, or a GitHub App installation token minted from an App JWT.
package github

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v74/github"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "github"

	defaultPollInterval = 10 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "GitHub" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AnySet(get, authKeys...)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	api      *gh.Client
	cfg      Config
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()
	cfg := LoadConfig(get)

	var base http.RoundTripper
	if deps.HTTP != nil {
		base = deps.HTTP.Transport
	}
	hc := &http.Client{Timeout: httpclient.DefaultTimeout, Transport: base}
	creds := credential.NewCache(credentialChain(get, cfg, hc, clk), credential.CacheOptions{Connector: Kind, Clock: clk})

	api := gh.NewClient(&http.Client{
		Timeout:   httpclient.DefaultTimeout,
		Transport: &httpclient.Transport{Name: Kind, Auth: creds, Base: base, Logger: logger},
	})
	setBaseURL(api, cfg.APIBase)

	return &Connector{
		api:      api,
		cfg:      cfg,
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

// setBaseURL points the client at apiBase. go-github requires a trailing slash.
func setBaseURL(c *gh.Client, apiBase string) {
	if apiBase == defaultAPIBase {
		return
	}
	if u, err := url.Parse(strings.TrimRight(apiBase, "/") + "/"); err == nil {
		c.BaseURL = u
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityIssue, c.CreateIssue, c.QueryIssue, c.UpdateIssue, c.CloseIssue),
		resolver.CRUD(entityRepository, nil, c.QueryRepository, nil, nil)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "issues",
		Interval:   c.interval,
		Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.listIssues(ctx, c.cfg.Repos, 0) },
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
