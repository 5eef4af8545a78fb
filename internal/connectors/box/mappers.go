package box

import (
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

// mapItem maps files and folders alike; path is the slash-joined names of
// the ancestors, without the item itself.
func mapItem(item mapping.Object) instance.Attributes {
	var path []string
	for _, p := range mapping.Objects(mapping.Get(item, "path_collection", "entries")) {
		path = append(path, mapping.Str(p, "name"))
	}
	return instance.Attributes{
		"id":          mapping.Str(item, "id"),
		"type":        mapping.Str(item, "type"),
		"name":        mapping.Str(item, "name"),
		"description": mapping.Str(item, "description"),
		"size":        mapping.Int(item, "size"),
		"parent_id":   mapping.Str(item, "parent", "id"),
		"path":        strings.Join(path, "/"),
		"etag":        mapping.Str(item, "etag"),
		"sha1":        mapping.Str(item, "sha1"),
		"item_status": mapping.Str(item, "item_status"),
		"created_by":  mapping.Str(item, "created_by", "login"),
		"owned_by":    mapping.Str(item, "owned_by", "login"),
		"shared_link": mapping.Str(item, "shared_link", "url"),
		"created_at":  mapping.Str(item, "created_at"),
		"modified_at": mapping.Str(item, "modified_at"),
	}
}
