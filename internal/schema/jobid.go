package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// JobID computes the stable id.job hash from a posting's identity triple.
// It is a plain content hash (not an identifier generator like common.NewJobID),
// so it is built on crypto/sha256 directly rather than a corpus library --
// nothing in the example pack hashes row identity this way.
func JobID(company, location, title string) string {
	key := strings.ToLower(strings.TrimSpace(company)) + "|" +
		strings.ToLower(strings.TrimSpace(location)) + "|" +
		strings.ToLower(strings.TrimSpace(title))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
