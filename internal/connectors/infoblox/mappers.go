package infoblox

import (
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapHostRecord(o mapping.Object) instance.Attributes {
	var addrs []string
	for _, a := range mapping.Objects(o["ipv4addrs"]) {
		if s := mapping.Str(a, "ipv4addr"); s != "" {
			addrs = append(addrs, s)
		}
	}
	return instance.Attributes{
		"id":       mapping.Str(o, "_ref"),
		"name":     mapping.Str(o, "name"),
		"ipv4addr": strings.Join(addrs, ","),
		"view":     mapping.Str(o, "view"),
		"zone":     mapping.Str(o, "zone"),
		"comment":  mapping.Str(o, "comment"),
		"ttl":      mapping.Int(o, "ttl"),
	}
}

func mapARecord(o mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":       mapping.Str(o, "_ref"),
		"name":     mapping.Str(o, "name"),
		"ipv4addr": mapping.Str(o, "ipv4addr"),
		"view":     mapping.Str(o, "view"),
		"zone":     mapping.Str(o, "zone"),
		"comment":  mapping.Str(o, "comment"),
		"ttl":      mapping.Int(o, "ttl"),
	}
}

func mapNetwork(o mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":           mapping.Str(o, "_ref"),
		"network":      mapping.Str(o, "network"),
		"network_view": mapping.Str(o, "network_view"),
		"comment":      mapping.Str(o, "comment"),
	}
}
