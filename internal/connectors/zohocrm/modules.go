package zohocrm

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type fieldKind int

const (
	text fieldKind = iota
	number
	// lookup fields are sent as {"id": ...} and read back from .id and .name.
	lookup
)

type field struct {
	attr string
	api  string
	kind fieldKind
}

// module describes one CRM module: its entity name, API name and the
// attribute to API field mapping used in both directions.
type module struct {
	entity   string
	name     string
	required []string
	fields   []field
}

var modules = []module{
	{
		entity:   "lead",
		name:     "Leads",
		required: []string{"last_name", "company"},
		fields: []field{
			{attr: "first_name", api: "First_Name"},
			{attr: "last_name", api: "Last_Name"},
			{attr: "company", api: "Company"},
			{attr: "email", api: "Email"},
			{attr: "phone", api: "Phone"},
			{attr: "title", api: "Designation"},
			{attr: "lead_status", api: "Lead_Status"},
			{attr: "lead_source", api: "Lead_Source"},
			{attr: "industry", api: "Industry"},
		},
	},
	{
		entity:   "contact",
		name:     "Contacts",
		required: []string{"last_name"},
		fields: []field{
			{attr: "first_name", api: "First_Name"},
			{attr: "last_name", api: "Last_Name"},
			{attr: "email", api: "Email"},
			{attr: "phone", api: "Phone"},
			{attr: "mobile", api: "Mobile"},
			{attr: "title", api: "Title"},
			{attr: "department", api: "Department"},
			{attr: "account", api: "Account_Name", kind: lookup},
		},
	},
	{
		entity:   "deal",
		name:     "Deals",
		required: []string{"deal_name", "stage"},
		fields: []field{
			{attr: "deal_name", api: "Deal_Name"},
			{attr: "stage", api: "Stage"},
			{attr: "amount", api: "Amount", kind: number},
			{attr: "probability", api: "Probability", kind: number},
			{attr: "closing_date", api: "Closing_Date"},
			{attr: "description", api: "Description"},
			{attr: "account", api: "Account_Name", kind: lookup},
			{attr: "contact", api: "Contact_Name", kind: lookup},
		},
	},
}

// record builds the API payload from the attributes that are present.
// Lookup fields are read from "<attr>_id".
func (m module) record(attrs instance.Attributes) (map[string]any, *resolver.Error) {
	out := map[string]any{}
	for _, f := range m.fields {
		switch f.kind {
		case lookup:
			if id := resolver.Stringify(attrs[f.attr+"_id"]); id != "" {
				out[f.api] = map[string]any{"id": id}
			}
		case number:
			v, ok := attrs[f.attr]
			if !ok || resolver.Stringify(v) == "" {
				continue
			}
			d, ok := mapping.Decimal(v)
			if !ok {
				return nil, resolver.Validationf("invalid attributes: %s (numeric)", f.attr)
			}
			out[f.api] = d.InexactFloat64()
		default:
			if s := resolver.Stringify(attrs[f.attr]); s != "" {
				out[f.api] = s
			}
		}
	}
	return out, nil
}

func (m module) mapRecord(r mapping.Object) instance.Attributes {
	attrs := instance.Attributes{
		"id":            mapping.Str(r, "id"),
		"owner_id":      mapping.Str(r, "Owner", "id"),
		"owner_name":    mapping.Str(r, "Owner", "name"),
		"created_time":  mapping.Str(r, "Created_Time"),
		"modified_time": mapping.Str(r, "Modified_Time"),
	}
	for _, f := range m.fields {
		switch f.kind {
		case lookup:
			attrs[f.attr+"_id"] = mapping.Str(r, f.api, "id")
			attrs[f.attr+"_name"] = mapping.Str(r, f.api, "name")
		case number:
			attrs[f.attr] = mapping.Amount(r, f.api)
		default:
			attrs[f.attr] = mapping.Str(r, f.api)
		}
	}
	return attrs
}
