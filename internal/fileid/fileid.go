// Package fileid derives deterministic document IDs for files ingested from
// watched course directories.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "watch:"

// WatchDocID returns a stable document ID for a watched file. The same
// course and path always yield the same ID, so rewrites of a file update its
// existing document instead of creating a new one.
func WatchDocID(courseID, absolutePath string) string {
	normalized := courseID + "\x00" + filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
