// Package objectkey derives and parses the object store locations used for
// image uploads. Uploaded objects live under a dedicated prefix so that
// completion notifications for unrelated keys can be told apart, and the key
// stem is the owning record's identifier.
package objectkey

import (
	"path"
	"strings"
)

// UploadPrefix is where direct client uploads land.
const UploadPrefix = "uploaded-images/"

// ForUpload returns the upload location for a record: the upload prefix, the
// record id, and the original file's extension (lowercased). A filename
// without an extension yields a key without one.
func ForUpload(id, filename string) string {
	return UploadPrefix + id + strings.ToLower(path.Ext(filename))
}

// Parse extracts the record id from an upload key. ok is false when the key
// is not under the upload prefix or has no stem.
func Parse(key string) (id string, ok bool) {
	rest, found := strings.CutPrefix(key, UploadPrefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	id = strings.TrimSuffix(rest, path.Ext(rest))
	if id == "" {
		return "", false
	}
	return id, true
}
