package infoblox

import (
	"net/netip"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityHostRecord = "host_record"
	entityARecord    = "a_record"
	entityNetwork    = "network"
)

// objectKind binds an entity type to its WAPI object type.
type objectKind struct {
	entity  string
	objtype string
	// returnFields is sent as _return_fields+ so reads include the mapped fields.
	returnFields string
	// filters are the attributes forwarded as WAPI search arguments on list.
	filters  []string
	required []string
	payload  func(attrs instance.Attributes, creating bool) (map[string]any, *resolver.Error)
	mapper   func(mapping.Object) instance.Attributes
}

var (
	hostRecords = objectKind{
		entity:       entityHostRecord,
		objtype:      "record:host",
		returnFields: "name,ipv4addrs,view,zone,comment,ttl",
		filters:      []string{"name", "ipv4addr", "view", "zone", "comment"},
		required:     []string{"name", "ipv4addr"},
		payload:      hostPayload,
		mapper:       mapHostRecord,
	}
	aRecords = objectKind{
		entity:       entityARecord,
		objtype:      "record:a",
		returnFields: "name,ipv4addr,view,zone,comment,ttl",
		filters:      []string{"name", "ipv4addr", "view", "zone", "comment"},
		required:     []string{"name", "ipv4addr"},
		payload:      aPayload,
		mapper:       mapARecord,
	}
	networks = objectKind{
		entity:       entityNetwork,
		objtype:      "network",
		returnFields: "network,network_view,comment",
		filters:      []string{"network", "network_view", "comment"},
		required:     []string{"network"},
		payload:      networkPayload,
		mapper:       mapNetwork,
	}

	objectKinds = []objectKind{hostRecords, aRecords, networks}
)

// ref resolves the object reference from id, _ref or the whole __path__.
func (k objectKind) ref(attrs instance.Attributes) (string, *resolver.Error) {
	ref := resolver.Stringify(attrs["id"])
	if ref == "" {
		ref = resolver.Stringify(attrs["_ref"])
	}
	if ref == "" {
		ref = resolver.PathValue(attrs)
	}
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" {
		return "", nil
	}
	if !strings.HasPrefix(ref, k.objtype+"/") {
		return "", resolver.Validationf("id %q is not a %s reference", ref, k.objtype)
	}
	return ref, nil
}

type recordInput struct {
	Name     string   `attr:"name"`
	IPv4Addr []string `attr:"ipv4addr"`
	View     string   `attr:"view"`
	Comment  string   `attr:"comment"`
}

func bindRecord(attrs instance.Attributes) (recordInput, []string, *resolver.Error) {
	var in recordInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return in, nil, err
	}
	addrs := make([]string, 0, len(in.IPv4Addr))
	for _, raw := range in.IPv4Addr {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil || !a.Is4() {
			return in, nil, resolver.Validationf("invalid field(s): ipv4addr (%q is not an IPv4 address)", raw)
		}
		addrs = append(addrs, a.String())
	}
	return in, addrs, nil
}

func hostPayload(attrs instance.Attributes, creating bool) (map[string]any, *resolver.Error) {
	in, addrs, err := bindRecord(attrs)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"name": in.Name, "comment": in.Comment}
	if creating {
		body["view"] = in.View
	}
	body = mapping.Compact(body)
	if len(addrs) > 0 {
		list := make([]map[string]any, 0, len(addrs))
		for _, a := range addrs {
			list = append(list, map[string]any{"ipv4addr": a})
		}
		body["ipv4addrs"] = list
	}
	return body, nil
}

func aPayload(attrs instance.Attributes, creating bool) (map[string]any, *resolver.Error) {
	in, addrs, err := bindRecord(attrs)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 1 {
		return nil, resolver.Validationf("invalid field(s): ipv4addr (an A record takes one address)")
	}
	body := map[string]any{"name": in.Name, "comment": in.Comment}
	if creating {
		body["view"] = in.View
	}
	if len(addrs) == 1 {
		body["ipv4addr"] = addrs[0]
	}
	return mapping.Compact(body), nil
}

type networkInput struct {
	Network     string `attr:"network" validate:"omitempty,cidrv4"`
	NetworkView string `attr:"network_view"`
	Comment     string `attr:"comment"`
}

func networkPayload(attrs instance.Attributes, creating bool) (map[string]any, *resolver.Error) {
	var in networkInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return nil, err
	}
	if !creating && in.Network != "" {
		return nil, resolver.Validationf("invalid field(s): network (the address block of a network cannot be changed)")
	}
	body := map[string]any{"network": in.Network, "comment": in.Comment}
	if creating {
		body["network_view"] = in.NetworkView
	}
	return mapping.Compact(body), nil
}
