package main

import (
	"github.com/open-sspm/resolvers/internal/connectors/airtable"
	"github.com/open-sspm/resolvers/internal/connectors/box"
	"github.com/open-sspm/resolvers/internal/connectors/expensify"
	"github.com/open-sspm/resolvers/internal/connectors/freshdesk"
	"github.com/open-sspm/resolvers/internal/connectors/github"
	"github.com/open-sspm/resolvers/internal/connectors/googledrive"
	"github.com/open-sspm/resolvers/internal/connectors/hubspot"
	"github.com/open-sspm/resolvers/internal/connectors/infoblox"
	"github.com/open-sspm/resolvers/internal/connectors/jira"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/connectors/salesforce"
	"github.com/open-sspm/resolvers/internal/connectors/servicenow"
	"github.com/open-sspm/resolvers/internal/connectors/stripe"
	"github.com/open-sspm/resolvers/internal/connectors/teams"
	"github.com/open-sspm/resolvers/internal/connectors/zendesk"
	"github.com/open-sspm/resolvers/internal/connectors/zohocrm"
	"github.com/open-sspm/resolvers/internal/connectors/zohoexpense"
	"github.com/open-sspm/resolvers/internal/connectors/zoom"
)

func buildConnectorRegistry() (*registry.ConnectorRegistry, error) {
	reg := registry.NewRegistry()
	for _, def := range []registry.ConnectorDefinition{
		airtable.Definition{},
		box.Definition{},
		expensify.Definition{},
		freshdesk.Definition{},
		github.Definition{},
		googledrive.Definition{},
		hubspot.Definition{},
		infoblox.Definition{},
		jira.Definition{},
		salesforce.Definition{},
		servicenow.Definition{},
		stripe.Definition{},
		teams.Definition{},
		zendesk.Definition{},
		zohocrm.Definition{},
		zohoexpense.Definition{},
		zoom.Definition{},
	} {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
