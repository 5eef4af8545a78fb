package teams

import (
	"context"
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
	"golang.org/x/oauth2/clientcredentials"
)

const (
	Kind = "teams"

	envTenantID     = "TEAMS_TENANT_ID"
	envClientID     = "TEAMS_CLIENT_ID"
	envClientSecret = "TEAMS_CLIENT_SECRET"
	envTeamID       = "TEAMS_TEAM_ID"
	envBaseURL      = "TEAMS_BASE_URL"
	envTokenURL     = "TEAMS_TOKEN_URL"
	envPollInterval = "TEAMS_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
	messagePageSize     = 50
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Microsoft Teams" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envTenantID, envClientID, envClientSecret)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client   *httpclient.Client
	teamID   string
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
		Vendor: "Microsoft Teams",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "graph client credentials",
			Requires: []string{envTenantID, envClientID, envClientSecret},
			Build: func(get func(string) string) credential.Source {
				return &credential.ClientCredentials{
					Config: clientcredentials.Config{
						ClientID:     get(envClientID),
						ClientSecret: get(envClientSecret),
						TokenURL:     tokenURL(get),
						Scopes:       []string{graphScope},
					},
					HTTP: deps.HTTP,
				}
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
		teamID:   strings.TrimSpace(get(envTeamID)),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func tokenURL(get func(string) string) string {
	if v := strings.TrimSpace(get(envTokenURL)); v != "" {
		return v
	}
	return "https://login.microsoftonline.com/" + strings.TrimSpace(get(envTenantID)) + "/oauth2/v2.0/token"
}

// decodeError maps Graph error codes onto the shared codes.
func decodeError(status int, body []byte) *resolver.Error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Code == "" {
		return nil
	}
	code := ""
	switch payload.Error.Code {
	case "NameAlreadyExists", "Conflict":
		code = resolver.CodeAlreadyExists
	case "NotFound", "ItemNotFound", "ResourceNotFound":
		code = resolver.CodeNotFound
	default:
		return nil
	}
	return resolver.Vendorf(code, "graph %s (%d): %s", payload.Error.Code, status, payload.Error.Message)
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	hs := resolver.CRUD(entityTeam, nil, c.QueryTeam, nil, nil)
	hs = append(hs, resolver.CRUD(entityChannel, c.CreateChannel, c.QueryChannel, c.UpdateChannel, c.DeleteChannel)...)
	hs = append(hs, resolver.CRUD(entityMessage, c.CreateMessage, c.QueryMessage, nil, nil)...)
	return hs
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "channels",
		Interval:   c.interval,
		Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.listChannels(ctx, c.teamID) },
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
