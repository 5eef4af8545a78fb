// Package expensify talks to the Expensify Integration Server, which takes a
// single form field, requestJobDescription, holding a JSON job with the partner
// credentials inline.
package expensify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/credential"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/raulk/clock"
)

const (
	Kind = "expensify"

	envPartnerUserID     = "EXPENSIFY_PARTNER_USER_ID"
	envPartnerUserSecret = "EXPENSIFY_PARTNER_USER_SECRET"
	envEmployeeEmail     = "EXPENSIFY_EMPLOYEE_EMAIL"
	envPolicyID          = "EXPENSIFY_POLICY_ID"
	envBaseURL           = "EXPENSIFY_BASE_URL"
	envPollInterval      = "EXPENSIFY_POLL_INTERVAL_MINUTES"

	defaultBaseURL      = "https://integrations.expensify.com/Integration-Server/ExpensifyIntegrations"
	defaultPollInterval = 60 * time.Minute

	extraPartnerUserID = "partner_user_id"
)

type Definition struct{}

func (Definition) Kind() string        { return Kind }
func (Definition) DisplayName() string { return "Expensify" }

func (Definition) IsConfigured(get func(string) string) bool {
	return registry.AllSet(get, envPartnerUserID, envPartnerUserSecret)
}

func (Definition) New(deps registry.Deps) (registry.Connector, error) {
	return New(deps), nil
}

type Connector struct {
	client        *httpclient.Client
	creds         *credential.Cache
	employeeEmail string
	policyID      string
	interval      time.Duration
	clock         clock.Clock
	logger        *slog.Logger
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
		Vendor: "Expensify",
		Get:    get,
		Methods: []credential.Method{{
			Name:     "partner credentials",
			Requires: []string{envPartnerUserID, envPartnerUserSecret},
			Build: func(get func(string) string) credential.Source {
				return credential.SourceFunc(func(context.Context) (credential.Token, error) {
					return credential.Token{
						Value: strings.TrimSpace(get(envPartnerUserSecret)),
						Extra: map[string]string{extraPartnerUserID: strings.TrimSpace(get(envPartnerUserID))},
					}, nil
				})
			},
		}},
	}

	return &Connector{
		client: httpclient.New(httpclient.Options{
			Name:    Kind,
			BaseURL: base,
			Logger:  logger,
			HTTP:    deps.HTTP,
		}),
		creds:         credential.NewCache(chain, credential.CacheOptions{Connector: Kind, Clock: clk}),
		employeeEmail: strings.TrimSpace(get(envEmployeeEmail)),
		policyID:      strings.TrimSpace(get(envPolicyID)),
		interval:      deps.Interval(Kind, envPollInterval, defaultPollInterval),
		clock:         clk,
		logger:        logger,
	}
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Handlers() resolver.Handlers {
	hs := resolver.CRUD(entityExpense, c.CreateExpense, nil, nil, nil)
	hs = append(hs, resolver.CRUD(entityReport, c.CreateReport, nil, c.UpdateReportStatus, nil)...)
	hs = append(hs, resolver.CRUD(entityPolicy, nil, c.QueryPolicy, nil, nil)...)
	return hs
}

func (c *Connector) Pollers(sub instance.Subscriber) []*poller.Poller {
	return []*poller.Poller{{
		Connector:  Kind,
		Name:       "policies",
		Interval:   c.interval,
		Fetch:      c.listPolicies,
		Subscriber: sub,
		Clock:      c.clock,
		Logger:     c.logger,
	}}
}

// job submits one requestJobDescription and decodes the response object.
// Expensify answers HTTP 200 for failures too; responseCode carries the outcome.
func (c *Connector) job(ctx context.Context, jobType string, inputSettings map[string]any) (mapping.Object, error) {
	tok, err := c.creds.Token(ctx)
	if err != nil {
		return nil, err
	}
	desc := map[string]any{
		"type": jobType,
		"credentials": map[string]string{
			"partnerUserID":     tok.Extra[extraPartnerUserID],
			"partnerUserSecret": tok.Value,
		},
		"inputSettings": inputSettings,
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, resolver.Validationf("encode job description: %v", err)
	}

	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Form:   url.Values{"requestJobDescription": {string(raw)}},
		Prefix: "expensify " + jobType + " " + resolver.Stringify(inputSettings["type"]),
	})
	if err != nil {
		return nil, err
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	if code, ok := mapping.Int(out, "responseCode").(int64); ok && code != http.StatusOK {
		return nil, resolver.Vendorf(vendorCode(code), "expensify responseCode %d: %s", code, mapping.Str(out, "responseMessage"))
	}
	return out, nil
}

func vendorCode(code int64) string {
	if code == http.StatusNotFound {
		return resolver.CodeNotFound
	}
	return ""
}
