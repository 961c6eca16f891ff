package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ArtifactKey builds the cache key for one render unit. All inputs that
// influence the rendered bytes participate: slide content, template,
// branding, ratio, and backend. Two units with identical inputs share an
// artifact regardless of which carousel or batch they belong to.
func ArtifactKey(backendID string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("artifact:%s:%s", backendID, hex.EncodeToString(hash[:]))
}
