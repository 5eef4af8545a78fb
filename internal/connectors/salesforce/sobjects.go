package salesforce

import (
	"strconv"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type fieldKind int

const (
	text fieldKind = iota
	currency
	integer
)

type field struct {
	attr string
	api  string
	kind fieldKind
}

// sobject maps one Salesforce object type onto an entity.
type sobject struct {
	entity   string
	name     string
	plural   string
	required []string
	fields   []field
}

var sobjects = []sobject{
	{
		entity:   "account",
		name:     "Account",
		plural:   "accounts",
		required: []string{"name"},
		fields: []field{
			{attr: "name", api: "Name"},
			{attr: "type", api: "Type"},
			{attr: "industry", api: "Industry"},
			{attr: "phone", api: "Phone"},
			{attr: "website", api: "Website"},
			{attr: "billing_city", api: "BillingCity"},
			{attr: "billing_country", api: "BillingCountry"},
			{attr: "annual_revenue", api: "AnnualRevenue", kind: currency},
			{attr: "number_of_employees", api: "NumberOfEmployees", kind: integer},
			{attr: "description", api: "Description"},
		},
	},
	{
		entity:   "contact",
		name:     "Contact",
		plural:   "contacts",
		required: []string{"last_name"},
		fields: []field{
			{attr: "first_name", api: "FirstName"},
			{attr: "last_name", api: "LastName"},
			{attr: "email", api: "Email"},
			{attr: "phone", api: "Phone"},
			{attr: "title", api: "Title"},
			{attr: "department", api: "Department"},
			{attr: "account_id", api: "AccountId"},
		},
	},
	{
		entity:   "opportunity",
		name:     "Opportunity",
		plural:   "opportunities",
		required: []string{"name", "stage", "close_date"},
		fields: []field{
			{attr: "name", api: "Name"},
			{attr: "stage", api: "StageName"},
			{attr: "close_date", api: "CloseDate"},
			{attr: "amount", api: "Amount", kind: currency},
			{attr: "probability", api: "Probability", kind: currency},
			{attr: "type", api: "Type"},
			{attr: "lead_source", api: "LeadSource"},
			{attr: "account_id", api: "AccountId"},
			{attr: "description", api: "Description"},
		},
	},
}

// selectList is the SOQL field list, Id first.
func (o sobject) selectList() string {
	names := []string{"Id"}
	for _, f := range o.fields {
		names = append(names, f.api)
	}
	names = append(names, "CreatedDate", "LastModifiedDate")
	return strings.Join(names, ", ")
}

func (o sobject) soql() string {
	return "SELECT " + o.selectList() + " FROM " + o.name + " ORDER BY LastModifiedDate DESC LIMIT " + strconv.Itoa(pageSize)
}

// record builds the write payload from the attributes present.
func (o sobject) record(attrs instance.Attributes) (map[string]any, *resolver.Error) {
	out := map[string]any{}
	for _, f := range o.fields {
		raw, ok := attrs[f.attr]
		if !ok || resolver.Stringify(raw) == "" {
			continue
		}
		switch f.kind {
		case currency, integer:
			d, ok := mapping.Decimal(raw)
			if !ok {
				return nil, resolver.Validationf("invalid attributes: %s (numeric)", f.attr)
			}
			if f.kind == integer {
				out[f.api] = d.IntPart()
			} else {
				out[f.api] = d.InexactFloat64()
			}
		default:
			out[f.api] = resolver.Stringify(raw)
		}
	}
	return out, nil
}

func (o sobject) mapRecord(r mapping.Object) instance.Attributes {
	attrs := instance.Attributes{
		"id":                 mapping.Str(r, "Id"),
		"created_date":       mapping.Str(r, "CreatedDate"),
		"last_modified_date": mapping.Str(r, "LastModifiedDate"),
	}
	for _, f := range o.fields {
		switch f.kind {
		case currency:
			attrs[f.attr] = mapping.Amount(r, f.api)
		case integer:
			attrs[f.attr] = mapping.Int(r, f.api)
		default:
			attrs[f.attr] = mapping.Str(r, f.api)
		}
	}
	return attrs
}
