// Package jira adapts Jira Cloud issues and projects through go-jira with
// email + API token basic auth.
package jira

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "jira"

	envBaseURL      = "JIRA_BASE_URL"
	envEmail        = "JIRA_EMAIL"
	envAPIToken     = "JIRA_API_TOKEN"
	envProjectKey   = "JIRA_PROJECT_KEY"
	envJQL          = "JIRA_JQL"
	envPollInterval = "JIRA_POLL_INTERVAL_MINUTES"

	defaultPollInterval = 5 * time.Minute
	defaultIssueType    = "Task"
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Jira" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envBaseURL, envEmail, envAPIToken)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	api        *jira.Client
	configErr  error
	projectKey string
	jql        string
	interval   time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)

	c := &Connector{
		projectKey: strings.TrimSpace(get(envProjectKey)),
		jql:        strings.TrimSpace(get(envJQL)),
		interval:   deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:      deps.ClockOrDefault(),
		logger:     logger,
	}
	if c.jql == "" {
		c.jql = "ORDER BY updated DESC"
		if c.projectKey != "" {
			c.jql = "project = " + c.projectKey + " " + c.jql
		}
	}

	var missing []string
	for _, key := range []string{envBaseURL, envEmail, envAPIToken} {
		if strings.TrimSpace(get(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		c.configErr = resolver.Configf("Jira credentials are not configured: missing %s", strings.Join(missing, ", "))
		return c
	}

	var base http.RoundTripper
	if deps.HTTP != nil {
		base = deps.HTTP.Transport
	}
	tp := jira.BasicAuthTransport{
		Username:  strings.TrimSpace(get(envEmail)),
		Password:  strings.TrimSpace(get(envAPIToken)),
		Transport: &httpclient.Transport{Name: Kind, Base: base, Logger: logger},
	}
	hc := tp.Client()
	hc.Timeout = httpclient.DefaultTimeout
	api, err := jira.NewClient(hc, strings.TrimSpace(get(envBaseURL)))
	if err != nil {
		c.configErr = resolver.Configf("jira: invalid %s: %v", envBaseURL, err)
		return c
	}
	c.api = api
	return c
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityIssue, c.CreateIssue, c.QueryIssue, c.UpdateIssue, c.DeleteIssue),
		resolver.CRUD(entityProject, nil, c.QueryProject, nil, nil)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "issues",
		Interval:   c.interval,
		Fetch:      c.searchIssues,
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}

// apiError classifies a go-jira failure. go-jira returns the response even
// on error; its body may already have been read into err.
func apiError(prefix string, resp *jira.Response, err error) error {
	var rerr *resolver.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	if resp == nil || resp.Response == nil {
		return resolver.Network(prefix, err)
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil || len(body) == 0 {
		body = []byte(err.Error())
	}
	if resp.StatusCode == http.StatusNotFound {
		verr := resolver.Vendorf(resolver.CodeNotFound, "%s: not found", prefix)
		verr.Status = resp.StatusCode
		verr.Body = resolver.EmbedBody(body)
		return verr
	}
	return resolver.HTTPStatus(prefix, resp.StatusCode, body)
}
