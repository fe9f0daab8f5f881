package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache implements a file-based cache for CLI usage.
// Each entry is a pair of files: raw payload bytes plus a small metadata
// sidecar holding the expiry. Archives are stored as-is, so a cached
// package is the exact bytes a build would have produced.
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

// entryMeta is the sidecar metadata stored next to each payload.
type entryMeta struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves a value from the cache.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	dataPath, metaPath := c.paths(key)

	metaData, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var meta entryMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		// Corrupt sidecar - treat as miss
		c.remove(key)
		return nil, false, nil
	}

	// Check expiration
	if !meta.ExpiresAt.IsZero() && time.Now().After(meta.ExpiresAt) {
		c.remove(key)
		return nil, false, nil
	}

	data, err := os.ReadFile(dataPath)
	if os.IsNotExist(err) {
		// Sidecar without payload - treat as miss
		c.remove(key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

// Set stores a value in the cache. The payload lands before the sidecar, so
// a crash between the two writes leaves a payload Get never serves.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var meta entryMeta
	if ttl > 0 {
		meta.ExpiresAt = time.Now().Add(ttl)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	dataPath, metaPath := c.paths(key)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return err
	}

	if err := os.WriteFile(dataPath, data, 0644); err != nil {
		return err
	}
	return os.WriteFile(metaPath, metaData, 0644)
}

// Delete removes a value from the cache.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	c.remove(key)
	return nil
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// remove drops both entry files, ignoring missing ones.
func (c *FileCache) remove(key string) {
	dataPath, metaPath := c.paths(key)
	_ = os.Remove(metaPath)
	_ = os.Remove(dataPath)
}

// paths converts a cache key to its payload and sidecar file paths.
// Uses a hash-based directory split to avoid too many files in one dir.
func (c *FileCache) paths(key string) (dataPath, metaPath string) {
	hash := Hash([]byte(key))
	subdir := hash[:2]
	base := filepath.Join(c.dir, subdir, hash[2:])
	return base + ".data", base + ".meta"
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
