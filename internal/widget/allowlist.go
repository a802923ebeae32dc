package widget

import (
	"strings"

	"github.com/image-uploader/backend/internal/models"
)

// DefaultAllowedTypes are the MIME types accepted from a drop.
var DefaultAllowedTypes = AllowList{"image/png", "image/jpeg"}

// AllowList is a set of accepted MIME type strings.
type AllowList []string

// ParseAllowList splits a comma separated list, dropping empty entries.
func ParseAllowList(s string) AllowList {
	var list AllowList
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			list = append(list, strings.ToLower(t))
		}
	}
	return list
}

// Allows reports whether mimeType is on the list. Only the type string is
// compared; file content is never inspected.
func (a AllowList) Allows(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, t := range a {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Filter splits files into allowed and rejected, preserving order.
func (a AllowList) Filter(files []models.FileHandle) (kept, rejected []models.FileHandle) {
	for _, f := range files {
		if a.Allows(f.MIMEType) {
			kept = append(kept, f)
		} else {
			rejected = append(rejected, f)
		}
	}
	return kept, rejected
}
