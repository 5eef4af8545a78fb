package zohoexpense

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/connectors/zoho"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "zohoexpense"

	envOrganizationID = "ZOHO_EXPENSE_ORGANIZATION_ID"
	envAPIURL         = "ZOHO_EXPENSE_API_URL"
	envPollInterval   = "ZOHO_EXPENSE_POLL_INTERVAL_MINUTES"

	defaultAPIURL       = "https://www.zohoapis.com/expense/v1"
	defaultPollInterval = 30 * time.Minute
	pageSize            = 100

	organizationHeader = "X-com-zoho-expense-organizationid"
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Zoho Expense" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, append([]string{envOrganizationID}, zoho.CredentialKeys...)...)
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

	base := strings.TrimSpace(get(envAPIURL))
	if base == "" {
		base = defaultAPIURL
	}
	headers := http.Header{}
	if org := strings.TrimSpace(get(envOrganizationID)); org != "" {
		headers.Set(organizationHeader, org)
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:              Kind,
			BaseURL:           base,
			Auth:              zoho.Credentials(Kind, get, deps.HTTP, clk, envOrganizationID),
			Headers:           headers,
			DecodeError:       zoho.DecodeError,
			RetryUnauthorized: true,
			MaxRetries:        2,
			Logger:            logger,
			HTTP:              deps.HTTP,
		}),
		interval: deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:    clk,
		logger:   logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	return append(
		resolver.CRUD(entityExpense, c.CreateExpense, c.QueryExpense, c.UpdateExpense, c.DeleteExpense),
		resolver.CRUD(entityReport, c.CreateReport, c.QueryReport, c.UpdateReport, c.DeleteReport)...,
	)
}

// Pollers emits each expense once per process lifetime.
func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "expenses",
		Interval:   c.interval,
		Fetch:      c.listExpenses,
		Subscriber: sub,
		Seen:       poller.NewSeenSet(0),
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}
