// Package infoblox manages DNS host records, A records and networks through
// the Infoblox WAPI REST interface. Object ids are WAPI `_ref` strings.
package infoblox

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
	"golang.org/x/net/publicsuffix"
)

const (
	Kind = "infoblox"

	envHost          = "INFOBLOX_HOST"
	envUsername      = "INFOBLOX_USERNAME"
	envPassword      = "INFOBLOX_PASSWORD"
	envWAPIVersion   = "INFOBLOX_WAPI_VERSION"
	envSkipTLSVerify = "INFOBLOX_SKIP_TLS_VERIFY"
	envPollInterval  = "INFOBLOX_POLL_INTERVAL_MINUTES"

	DefaultWAPIVersion  = "2.12"
	defaultPollInterval = 30 * time.Minute
	maxResults          = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Infoblox" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envHost, envUsername, envPassword)
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

	chain := &credential.Chain{
		Vendor: "Infoblox",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "basic",
			Requires: []string{envUsername, envPassword},
			Build: func(get func(string) string) credential.Source {
				return credential.Basic(get(envUsername), get(envPassword))
			},
		}},
	}

	insecure, _ := strconv.ParseBool(strings.TrimSpace(get(envSkipTLSVerify)))
	if insecure {
		logger.Warn("TLS certificate verification is disabled", "env", envSkipTLSVerify)
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:        Kind,
			BaseURL:     baseURL(get),
			BaseURLEnv:  envHost,
			Auth:        credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			DecodeError: decodeError,
			MaxRetries:  2,
			Logger:      logger,
			HTTP:        sessionClient(deps.HTTP, insecure),
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

// baseURL accepts INFOBLOX_HOST as a bare grid master name or a full URL.
func baseURL(get func(string) string) string {
	host := strings.TrimRight(strings.TrimSpace(get(envHost)), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	version := strings.TrimPrefix(strings.TrimSpace(get(envWAPIVersion)), "v")
	if version == "" {
		version = DefaultWAPIVersion
	}
	return host + "/wapi/v" + version
}

// sessionClient keeps the ibapauth cookie WAPI issues after the first
// authenticated call, so later calls reuse the session.
func sessionClient(base *http.Client, insecure bool) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	hc := &http.Client{Jar: jar}
	if base != nil {
		hc.Transport = base.Transport
		hc.CheckRedirect = base.CheckRedirect
		hc.Timeout = base.Timeout
	}
	if !insecure {
		return hc
	}
	rt := hc.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if t, ok := rt.(*http.Transport); ok {
		t = t.Clone()
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // opt-in for self-signed grid certificates
		hc.Transport = t
	}
	return hc
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	var hs resolver.Handlers
	for _, k := range objectKinds {
		hs = append(hs, resolver.CRUD(k.entity,
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.create(ctx, k, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.query(ctx, k, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.update(ctx, k, attrs) },
			func(ctx context.Context, attrs instance.Attributes) resolver.Result { return c.delete(ctx, k, attrs) },
		)...)
	}
	return hs
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector: Kind,
		Name:      "host_records",
		Interval:  c.interval,
		Fetch: func(ctx context.Context) ([]instance.Instance, error) {
			return c.list(ctx, hostRecords, nil)
		},
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
