package googledrive

import (
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapFile(f mapping.Object) instance.Attributes {
	owners := make([]string, 0, 1)
	for _, o := range mapping.Objects(f["owners"]) {
		if email := mapping.Str(o, "emailAddress"); email != "" {
			owners = append(owners, email)
		}
	}
	return instance.Attributes{
		"id":            mapping.Str(f, "id"),
		"name":          mapping.Str(f, "name"),
		"mime_type":     mapping.Str(f, "mimeType"),
		"description":   mapping.Str(f, "description"),
		"parents":       mapping.Join(f, ",", "parents"),
		"size":          mapping.Int(f, "size"),
		"md5_checksum":  mapping.Str(f, "md5Checksum"),
		"web_view_link": mapping.Str(f, "webViewLink"),
		"trashed":       mapping.Bool(f, "trashed"),
		"starred":       mapping.Bool(f, "starred"),
		"owners":        strings.Join(owners, ","),
		"created_time":  mapping.Str(f, "createdTime"),
		"modified_time": mapping.Str(f, "modifiedTime"),
	}
}
