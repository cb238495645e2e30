// Package cache implements the PersistentCache of spec §4.I: a single
// context_cache.json file mirroring the in-memory context window so it
// survives a crash before the next commit. Writes go through the same
// temp-file-then-rename discipline as blobstore.Store.Put
// (kai-cli/internal/graph.WriteObject); unlike the original Python
// implementation's plain write_text, this is mandated by spec §4.I.
package cache

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

// Snapshot is the on-disk shape of §6.3: `{messages, timestamp, mode, branch}`.
type Snapshot struct {
	Messages         []model.Message `json:"messages"`
	TimestampSeconds float64         `json:"timestamp"`
	Mode             string          `json:"mode"`
	Branch           string          `json:"branch"`
}

// Cache manages the single context_cache.json file at path.
type Cache struct {
	path string
	log  *slog.Logger
}

// New returns a Cache bound to path (typically repo_root/.cvc/context_cache.json).
func New(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{path: path, log: logger.With("component", "cache")}
}

// Write atomically replaces the cache file with snap's contents.
func (c *Cache) Write(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", cvcerr.ErrEncodingError)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", dir, cvcerr.ErrIoError)
	}

	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return fmt.Errorf("cache: rand: %w", cvcerr.ErrIoError)
	}
	tmp := filepath.Join(dir, "tmp-cache-"+hex.EncodeToString(suffix[:]))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("cache: create tmp: %w", cvcerr.ErrIoError)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: write tmp: %w", cvcerr.ErrIoError)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: fsync: %w", cvcerr.ErrIoError)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: close tmp: %w", cvcerr.ErrIoError)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename into place: %w", cvcerr.ErrIoError)
	}
	return nil
}

// Read loads the cache file. A missing file returns a zero Snapshot and
// ok=false with no error. A present-but-corrupt/truncated file is treated
// as "no cache" per spec §7 (*CacheCorrupt* is logged, not returned):
// Read logs at Warn and returns ok=false.
func (c *Cache) Read() (Snapshot, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Warn("persistent cache corrupt, treating as absent", "path", c.path, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Clear removes the cache file. A missing file is not an error (the cache
// is already "empty").
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove %s: %w", c.path, cvcerr.ErrIoError)
	}
	return nil
}

// ModTimeUnix returns the cache file's modification time in Unix seconds, or
// 0 and false if the file does not exist.
func (c *Cache) ModTimeUnix() (float64, bool) {
	info, err := os.Stat(c.path)
	if err != nil {
		return 0, false
	}
	return float64(info.ModTime().UnixNano()) / 1e9, true
}
