// Package docid derives stable document and chunk-record identifiers.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const pathPrefix = "file:"

// FromContent returns a document ID derived from the content hash. The same
// bytes always yield the same ID, so re-ingesting an unchanged file
// overwrites its previous vector records instead of duplicating them.
func FromContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromPath returns a stable document ID for the given absolute path.
// Same path always yields the same ID. Used by the watcher to update or
// delete a file's records without re-reading its content.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	sum := sha256.Sum256([]byte(pathPrefix + normalized))
	return hex.EncodeToString(sum[:])
}

// ChunkID returns the deterministic vector-record ID for one chunk of a
// document. The zero-padded index keeps chunk order recoverable by ID.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_c%04d", docID, index)
}
