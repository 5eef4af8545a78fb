// Package box adapts Box folders and files through the Box Platform API v2.0.
package box

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
	Kind = "box"

	envDeveloperToken = "BOX_DEVELOPER_TOKEN"
	envClientID       = "BOX_CLIENT_ID"
	envClientSecret   = "BOX_CLIENT_SECRET"
	envAuthCode       = "BOX_AUTH_CODE"
	envRedirectURI    = "BOX_REDIRECT_URI"
	envRefreshToken   = "BOX_REFRESH_TOKEN"
	envEnterpriseID   = "BOX_ENTERPRISE_ID"
	envJWTKeyID       = "BOX_JWT_KEY_ID"
	envJWTPrivateKey  = "BOX_JWT_PRIVATE_KEY"
	envPollFolderID   = "BOX_POLL_FOLDER_ID"
	envBaseURL        = "BOX_BASE_URL"
	envUploadURL      = "BOX_UPLOAD_URL"
	envTokenURL       = "BOX_TOKEN_URL"
	envPollInterval   = "BOX_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://api.box.com/2.0"
	defaultUploadURL    = "https://upload.box.com/api/2.0"
	defaultTokenURL     = "https://api.box.com/oauth2/token"
	authorizeURL        = "https://account.box.com/api/oauth2/authorize"
	rootFolderID        = "0"
	defaultPollInterval = 10 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Box" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AnySet(get, authKeys...)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client       *httpclient.Client
	uploadURL    string
	pollFolderID string
	interval     time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

func setting(get func(string) string, key, def string) string {
	if v := strings.TrimRight(strings.TrimSpace(get(key)), "/"); v != "" {
		return v
	}
	return def
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	creds := credential.NewCache(credentialChain(get, deps.HTTP, clk), credential.CacheOptions{Connector: Kind, Clock: clk})
	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           setting(get, envBaseURL, defaultBaseURL),
			Auth:              creds,
			DecodeError:       decodeError,
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		uploadURL:    setting(get, envUploadURL, defaultUploadURL) + "/files/content",
		pollFolderID: setting(get, envPollFolderID, rootFolderID),
		interval:     deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:        clk,
		logger:       logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	hs := resolver.CRUD(entityFolder, c.CreateFolder, c.QueryFolder, c.UpdateFolder, c.DeleteFolder)
	hs = append(hs, resolver.CRUD(entityFile, c.UploadFile, c.QueryFile, c.UpdateFile, c.DeleteFile)...)
	return append(hs, resolver.Handler{Entity: entityFile, Verb: resolver.VerbDownload, Run: c.DownloadFile})
}

// Pollers emits every item (files and folders) in BOX_POLL_FOLDER_ID, the
// root folder by default.
func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector: Kind,
		Name:      "folder_items",
		Interval:  c.interval,
		Fetch: func(ctx context.Context) ([]instance.Instance, error) {
			return c.folderItems(ctx, c.pollFolderID, "")
		},
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
