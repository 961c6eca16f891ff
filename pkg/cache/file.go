package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores artifacts under a directory for CLI usage. Payloads are
// kept as raw .png files so cached renders stay inspectable on disk and
// multi-megabyte artifacts are never re-encoded; expiry lives in a small
// sidecar next to each payload.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache in the given directory.
// The directory will be created if it doesn't exist.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Get retrieves an artifact from the cache.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, expires := c.paths(key)

	if raw, err := os.ReadFile(expires); err == nil {
		deadline, perr := time.Parse(time.RFC3339Nano, string(raw))
		if perr != nil || time.Now().After(deadline) {
			// Expired or unreadable sidecar takes the payload with it.
			_ = os.Remove(payload)
			_ = os.Remove(expires)
			return nil, false, nil
		}
	}

	data, err := os.ReadFile(payload)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores an artifact. A zero TTL writes no sidecar and the entry never
// expires.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	payload, expires := c.paths(key)
	if err := os.MkdirAll(filepath.Dir(payload), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(payload, data, 0644); err != nil {
		return err
	}
	if ttl > 0 {
		deadline := time.Now().Add(ttl).Format(time.RFC3339Nano)
		return os.WriteFile(expires, []byte(deadline), 0644)
	}
	// Overwriting an expiring entry with a non-expiring one drops the
	// stale sidecar.
	err := os.Remove(expires)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Delete removes an artifact and its sidecar.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	payload, expires := c.paths(key)
	_ = os.Remove(expires)
	err := os.Remove(payload)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// paths converts a cache key to the payload and expiry-sidecar locations.
// The first two hash characters fan entries out across subdirectories.
func (c *FileCache) paths(key string) (payload, expires string) {
	hash := Hash([]byte(key))
	base := filepath.Join(c.dir, hash[:2], hash[2:])
	return base + ".png", base + ".expires"
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
