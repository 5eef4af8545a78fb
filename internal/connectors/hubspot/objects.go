package hubspot

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

// object describes one CRM v3 object type.
type object struct {
	entity     string
	path       string
	properties []string
	required   []string
	bind       func(attrs instance.Attributes) (map[string]any, *resolver.Error)
	mapper     func(mapping.Object) instance.Attributes
}

var objects = []object{
	{
		entity:     "contact",
		path:       "contacts",
		properties: []string{"email", "firstname", "lastname", "phone", "company", "website", "jobtitle", "lifecyclestage", "createdate", "lastmodifieddate"},
		required:   []string{"email"},
		bind:       bindInput[contactInput],
		mapper:     mapContact,
	},
	{
		entity:     "company",
		path:       "companies",
		properties: []string{"name", "domain", "industry", "phone", "city", "state", "country", "numberofemployees", "annualrevenue", "createdate", "hs_lastmodifieddate"},
		required:   []string{"name"},
		bind:       bindInput[companyInput],
		mapper:     mapCompany,
	},
	{
		entity:     "deal",
		path:       "deals",
		properties: []string{"dealname", "amount", "dealstage", "pipeline", "closedate", "hubspot_owner_id", "createdate", "hs_lastmodifieddate"},
		required:   []string{"deal_name"},
		bind:       bindInput[dealInput],
		mapper:     mapDeal,
	},
}

type propertiesInput interface {
	properties() map[string]any
}

func bindInput[T any, PT interface {
	*T
	propertiesInput
}](attrs instance.Attributes) (map[string]any, *resolver.Error) {
	in := PT(new(T))
	if err := resolver.Bind(attrs, in); err != nil {
		return nil, err
	}
	return in.properties(), nil
}

type contactInput struct {
	Email          string `attr:"email" validate:"omitempty,email"`
	FirstName      string `attr:"first_name"`
	LastName       string `attr:"last_name"`
	Phone          string `attr:"phone"`
	Company        string `attr:"company"`
	Website        string `attr:"website"`
	JobTitle       string `attr:"job_title"`
	LifecycleStage string `attr:"lifecycle_stage"`
}

func (in *contactInput) properties() map[string]any {
	return mapping.Compact(map[string]any{
		"email":          in.Email,
		"firstname":      in.FirstName,
		"lastname":       in.LastName,
		"phone":          in.Phone,
		"company":        in.Company,
		"website":        in.Website,
		"jobtitle":       in.JobTitle,
		"lifecyclestage": in.LifecycleStage,
	})
}

type companyInput struct {
	Name              string `attr:"name"`
	Domain            string `attr:"domain" validate:"omitempty,fqdn"`
	Industry          string `attr:"industry"`
	Phone             string `attr:"phone"`
	City              string `attr:"city"`
	State             string `attr:"state"`
	Country           string `attr:"country"`
	NumberOfEmployees string `attr:"number_of_employees" validate:"omitempty,number"`
	AnnualRevenue     string `attr:"annual_revenue" validate:"omitempty,numeric"`
}

func (in *companyInput) properties() map[string]any {
	return mapping.Compact(map[string]any{
		"name":              in.Name,
		"domain":            in.Domain,
		"industry":          in.Industry,
		"phone":             in.Phone,
		"city":              in.City,
		"state":             in.State,
		"country":           in.Country,
		"numberofemployees": in.NumberOfEmployees,
		"annualrevenue":     in.AnnualRevenue,
	})
}

type dealInput struct {
	DealName  string `attr:"deal_name"`
	Amount    string `attr:"amount" validate:"omitempty,numeric"`
	DealStage string `attr:"deal_stage"`
	Pipeline  string `attr:"pipeline"`
	CloseDate string `attr:"close_date"`
	OwnerID   string `attr:"owner_id"`
}

func (in *dealInput) properties() map[string]any {
	return mapping.Compact(map[string]any{
		"dealname":         in.DealName,
		"amount":           in.Amount,
		"dealstage":        in.DealStage,
		"pipeline":         in.Pipeline,
		"closedate":        in.CloseDate,
		"hubspot_owner_id": in.OwnerID,
	})
}
