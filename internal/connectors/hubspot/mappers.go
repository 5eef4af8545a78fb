package hubspot

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapContact(o mapping.Object) instance.Attributes {
	p, _ := o["properties"].(map[string]any)
	return instance.Attributes{
		"id":              mapping.Str(o, "id"),
		"email":           mapping.Str(p, "email"),
		"first_name":      mapping.Str(p, "firstname"),
		"last_name":       mapping.Str(p, "lastname"),
		"phone":           mapping.Str(p, "phone"),
		"company":         mapping.Str(p, "company"),
		"website":         mapping.Str(p, "website"),
		"job_title":       mapping.Str(p, "jobtitle"),
		"lifecycle_stage": mapping.Str(p, "lifecyclestage"),
		"archived":        mapping.Bool(o, "archived"),
		"created_at":      mapping.Str(o, "createdAt"),
		"updated_at":      mapping.Str(o, "updatedAt"),
	}
}

func mapCompany(o mapping.Object) instance.Attributes {
	p, _ := o["properties"].(map[string]any)
	return instance.Attributes{
		"id":                  mapping.Str(o, "id"),
		"name":                mapping.Str(p, "name"),
		"domain":              mapping.Str(p, "domain"),
		"industry":            mapping.Str(p, "industry"),
		"phone":               mapping.Str(p, "phone"),
		"city":                mapping.Str(p, "city"),
		"state":               mapping.Str(p, "state"),
		"country":             mapping.Str(p, "country"),
		"number_of_employees": mapping.Int(p, "numberofemployees"),
		"annual_revenue":      mapping.Amount(p, "annualrevenue"),
		"archived":            mapping.Bool(o, "archived"),
		"created_at":          mapping.Str(o, "createdAt"),
		"updated_at":          mapping.Str(o, "updatedAt"),
	}
}

func mapDeal(o mapping.Object) instance.Attributes {
	p, _ := o["properties"].(map[string]any)
	return instance.Attributes{
		"id":         mapping.Str(o, "id"),
		"deal_name":  mapping.Str(p, "dealname"),
		"amount":     mapping.Amount(p, "amount"),
		"deal_stage": mapping.Str(p, "dealstage"),
		"pipeline":   mapping.Str(p, "pipeline"),
		"close_date": mapping.Str(p, "closedate"),
		"owner_id":   mapping.Str(p, "hubspot_owner_id"),
		"archived":   mapping.Bool(o, "archived"),
		"created_at": mapping.Str(o, "createdAt"),
		"updated_at": mapping.Str(o, "updatedAt"),
	}
}
