package servicenow

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
	"golang.org/x/oauth2"
)

const (
	Kind = "servicenow"

	envInstanceURL  = "SERVICENOW_INSTANCE_URL"
	envUsername     = "SERVICENOW_USERNAME"
	envPassword     = "SERVICENOW_PASSWORD"
	envClientID     = "SERVICENOW_CLIENT_ID"
	envClientSecret = "SERVICENOW_CLIENT_SECRET"
	envPollInterval = "SERVICENOW_POLL_INTERVAL_MINUTES"

	defaultPollInterval = 5 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "ServiceNow" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envInstanceURL, envUsername, envPassword)
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

	instanceURL := strings.TrimRight(strings.TrimSpace(get(envInstanceURL)), "/")
	base := ""
	if instanceURL != "" {
		base = instanceURL + "/api/now/table"
	}

	chain := &credential.Chain{
		Vendor: "ServiceNow",
		Get:    get,
		Methods: []credential.Method{
			{
				Name:     "oauth password grant",
				Requires: []string{envClientID, envClientSecret, envUsername, envPassword},
				Build: func(get func(string) string) credential.Source {
					return &credential.Password{
						Config: &oauth2.Config{
							ClientID:     get(envClientID),
							ClientSecret: get(envClientSecret),
							Endpoint: oauth2.Endpoint{
								TokenURL:  instanceURL + "/oauth_token.do",
								AuthStyle: oauth2.AuthStyleInParams,
							},
						},
						Username: get(envUsername),
						Password: get(envPassword),
						HTTP:     deps.HTTP,
					}
				},
			},
			{
				Name:     "basic auth",
				Requires: []string{envUsername, envPassword},
				Build: func(get func(string) string) credential.Source {
					return credential.Basic(get(envUsername), get(envPassword))
				},
			},
		},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           base,
			BaseURLEnv:        envInstanceURL,
			Auth:              credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			DecodeError:       decodeError,
			RetryUnauthorized: true,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

// decodeError maps the Table API's 404 "No Record found" onto NotFound.
func decodeError(status int, body []byte) *resolver.Error {
	if status != http.StatusNotFound {
		return nil
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return nil
	}
	return resolver.Vendorf(resolver.CodeNotFound, "servicenow (404): %s", payload.Error.Message)
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityIncident, c.CreateIncident, c.QueryIncident, c.UpdateIncident, c.DeleteIncident),
		resolver.CRUD(entityUser, c.CreateUser, c.QueryUser, c.UpdateUser, c.DeleteUser)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "incidents",
		Interval:   c.interval,
		Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.list(ctx, tableIncident, entityIncident, mapIncident) },
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
