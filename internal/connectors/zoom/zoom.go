package zoom

import (
	"context"
	"log/slog"
	"net/url"
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
	"golang.org/x/oauth2/clientcredentials"
)

const (
	Kind = "zoom"

	envAccountID    = "ZOOM_ACCOUNT_ID"
	envClientID     = "ZOOM_CLIENT_ID"
	envClientSecret = "ZOOM_CLIENT_SECRET"
	envUserID       = "ZOOM_USER_ID"
	envBaseURL      = "ZOOM_BASE_URL"
	envTokenURL     = "ZOOM_OAUTH_URL"
	envPollInterval = "ZOOM_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://api.zoom.us/v2"
	defaultTokenURL     = "https://zoom.us/oauth/token"
	defaultUserID       = "me"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Zoom" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envAccountID, envClientID, envClientSecret)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client   *httpclient.Client
	userID   string
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
	tokenURL := strings.TrimSpace(get(envTokenURL))
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	userID := strings.TrimSpace(get(envUserID))
	if userID == "" {
		userID = defaultUserID
	}

	// Server-to-server OAuth is the client credentials flow with a vendor grant type.
	chain := &credential.Chain{
		Vendor: "Zoom",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "server-to-server oauth",
			Requires: []string{envAccountID, envClientID, envClientSecret},
			Build: func(get func(string) string) credential.Source {
				return &credential.ClientCredentials{
					Config: clientcredentials.Config{
						ClientID:     get(envClientID),
						ClientSecret: get(envClientSecret),
						TokenURL:     tokenURL,
						AuthStyle:    oauth2.AuthStyleInHeader,
						EndpointParams: url.Values{
							"grant_type": {"account_credentials"},
							"account_id": {get(envAccountID)},
						},
					},
					HTTP: deps.HTTP,
				}
			},
		}},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           base,
			Auth:              credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		userID:   userID,
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityMeeting, c.CreateMeeting, c.QueryMeeting, c.UpdateMeeting, c.DeleteMeeting),
		resolver.CRUD(entityUser, c.CreateUser, c.QueryUser, c.UpdateUser, c.DeleteUser)...,
	)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "meetings",
		Interval:   c.interval,
		Fetch:      func(ctx context.Context) ([]instance.Instance, error) { return c.listMeetings(ctx, c.userID) },
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
