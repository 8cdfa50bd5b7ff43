package util

import (
	"path"
	"strings"

	"github.com/gosimple/slug"
)

// ObjectPath builds "<kind>/<owner>/<slug>-<id><ext>" for blob storage keys.
func ObjectPath(kind, owner, filename, id string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))

	name := slug.Make(base)
	if name == "" {
		name = "file"
	}

	return path.Join(kind, owner, name+"-"+id+ext)
}
