package licensing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const cacheFileExt = ".license-cache.json"

// cacheEntry is the durable form of a validation outcome.
type cacheEntry struct {
	Result   Result    `json:"validation_result"`
	CachedAt time.Time `json:"cached_at"`
}

// FileStore is the durable cache of validation outcomes and the engine's
// resilience boundary: within its TTL a previously validated token stays
// trusted without network access.
//
// Keys are the hex SHA-256 of the raw token so the token itself never appears
// in a filename. Concurrent writers from multiple processes are not
// coordinated; entries for the same token are deterministic, so last-write-wins
// is acceptable.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("error creating cache directory %s: %w", dir, err)
	}

	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func tokenDigest(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

func (s *FileStore) path(token string) string {
	return filepath.Join(s.dir, tokenDigest(token)+cacheFileExt)
}

// Get returns the cached result for a token if one exists and is within the
// offline window. Entries past the window, and entries that fail to parse,
// are removed as a side effect of the read and reported as misses.
func (s *FileStore) Get(token string) (*Result, bool) {
	path := s.path(token)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("error reading license cache entry", "error", err)
		}
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("removing corrupt license cache entry", "path", path, "error", err)
		s.remove(path)
		return nil, false
	}

	// Well-formed JSON can still describe an impossible result (valid with no
	// claims, invalid with no recognized reason). Trusting it would hand the
	// rest of the pipeline a result it cannot act on.
	if !entry.Result.consistent() {
		slog.Warn("removing inconsistent license cache entry", "path", path)
		s.remove(path)
		return nil, false
	}

	if s.now().Sub(entry.CachedAt) > s.ttl {
		slog.Info("discarding license cache entry", "error", ErrOfflineCacheExpired, "cached_at", entry.CachedAt)
		s.remove(path)
		return nil, false
	}

	return &entry.Result, true
}

func (s *FileStore) Put(token string, result Result) error {
	entry := cacheEntry{Result: result, CachedAt: s.now()}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error encoding license cache entry: %w", err)
	}

	if err := os.WriteFile(s.path(token), data, 0o600); err != nil {
		return fmt.Errorf("error writing license cache entry: %w", err)
	}

	return nil
}

func (s *FileStore) Clear(token string) error {
	if err := os.Remove(s.path(token)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing license cache entry: %w", err)
	}
	return nil
}

func (s *FileStore) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+cacheFileExt))
	if err != nil {
		return fmt.Errorf("error listing license cache entries: %w", err)
	}

	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing license cache entry %s: %w", path, err)
		}
	}

	return nil
}

func (s *FileStore) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("error removing license cache entry", "path", path, "error", err)
	}
}
