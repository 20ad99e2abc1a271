// Package cache is the local response cache. Values are stored with a
// version and save time; a Get with a TTL treats missing, version-mismatched
// and expired entries the same way.
package cache

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Version is bumped whenever the cached payload shape changes.
const Version = 1

// Store is a get/set-with-TTL key-value cache.
type Store interface {
	// Get decodes the entry for key into dst. It reports false when the entry
	// is missing, from another Version, older than ttl, or undecodable.
	Get(key string, ttl time.Duration, dst any) bool
	// Set stores v under key.
	Set(key string, v any) error
	Close() error
}

type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

func encode(v any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: Version, SavedAt: now, Data: data})
}

func decode(raw []byte, ttl time.Duration, now time.Time, dst any) bool {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if env.Version != Version {
		return false
	}
	if ttl > 0 && now.Sub(env.SavedAt) > ttl {
		return false
	}
	return json.Unmarshal(env.Data, dst) == nil
}

// Dir returns the cache directory path.
func Dir() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, "trustmap")
}

// Open returns the store for a backend name: "file", "badger" or "none".
func Open(backend string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch backend {
	case "", "file":
		return NewFileStore(filepath.Join(Dir(), "responses"))
	case "badger":
		return NewBadgerStore(filepath.Join(Dir(), "badger"), logger)
	case "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend: %q (use file, badger or none)", backend)
}

// Clear removes every cached entry for all backends.
func Clear() error {
	return os.RemoveAll(Dir())
}

// Bundle creates a tar.gz archive of the entire cache directory.
func Bundle(output string) error {
	cacheDir := Dir()
	if _, err := os.Stat(cacheDir); err != nil {
		return fmt.Errorf("cache is empty, run `trustmap graph` first")
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(cacheDir, path)
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(string, time.Duration, any) bool { return false }
func (Nop) Set(string, any) error              { return nil }
func (Nop) Close() error                        { return nil }

func sanitize(s string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "@", "_", ",", "-", " ", "_")
	return r.Replace(s)
}
