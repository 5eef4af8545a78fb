// Package googledrive adapts Google Drive files and folders through the Drive v3
// REST API.
package googledrive

import (
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
	Kind = "googledrive"

	envAccessToken       = "GOOGLE_DRIVE_ACCESS_TOKEN"
	envClientID          = "GOOGLE_DRIVE_CLIENT_ID"
	envClientSecret      = "GOOGLE_DRIVE_CLIENT_SECRET"
	envRefreshToken      = "GOOGLE_DRIVE_REFRESH_TOKEN"
	envServiceAccountKey = "GOOGLE_DRIVE_SERVICE_ACCOUNT_KEY"
	envSubject           = "GOOGLE_DRIVE_SUBJECT"
	envFolderID          = "GOOGLE_DRIVE_FOLDER_ID"
	envTokenURL          = "GOOGLE_DRIVE_TOKEN_URL"
	envBaseURL           = "GOOGLE_DRIVE_BASE_URL"
	envPollInterval      = "GOOGLE_DRIVE_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://www.googleapis.com"
	defaultPollInterval = 15 * time.Minute
	pageSize            = 100
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Google Drive" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AnySet(get, authKeys...)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client    *httpclient.Client
	uploadURL string
	folderID  string
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
}

func New(deps registry.Deps) *Connector {
	get := deps.Get(Kind)
	logger := deps.ConnectorLogger(Kind)
	clk := deps.ClockOrDefault()

	root := strings.TrimRight(strings.TrimSpace(get(envBaseURL)), "/")
	if root == "" {
		root = defaultBaseURL
	}
	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           root + "/drive/v3",
			Auth:              credential.NewCache(credentialChain(get, deps.HTTP), credential.CacheOptions{Connector: Kind, Clock: clk}),
			DecodeError:       decodeError,
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		uploadURL: root + "/upload/drive/v3/files",
		folderID:  strings.TrimSpace(get(envFolderID)),
		interval:  deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:     clk,
		logger:    logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	hs := resolver.CRUD(entityFile, c.CreateFile, c.QueryFile, c.UpdateFile, c.DeleteFile)
	hs = append(hs, resolver.Handler{Entity: entityFile, Verb: resolver.VerbDownload, Run: c.DownloadFile})
	return append(hs, resolver.CRUD(entityFolder, c.CreateFolder, c.QueryFolder, nil, nil)...)
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "files",
		Interval:   c.interval,
		Fetch:      c.listFiles,
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
