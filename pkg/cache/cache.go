// Package cache provides the rendered-artifact cache.
//
// Rendering a slide is expensive (browser navigation, external chart
// renderers), and identical (slide, template, branding, ratio, backend)
// inputs produce identical outputs. The batch runner consults this cache
// before dispatching a render; a hit skips the backend call but still goes
// through the output validator.
//
// Three implementations are provided: a file cache for CLI usage, a Redis
// cache for shared environments, and a null cache to disable caching.
package cache

import (
	"context"
	"time"
)

// TTLArtifact is how long cached artifacts stay valid. Rendered slides are
// content-addressed, so a long TTL is safe; the TTL mainly bounds disk use.
const TTLArtifact = 7 * 24 * time.Hour

// Cache is the storage interface shared by all implementations.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A TTL of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
