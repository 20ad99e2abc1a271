package cache

import (
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps one JSON file per key.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+".json")
}

func (s *FileStore) Get(key string, ttl time.Duration, dst any) bool {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return false
	}
	return decode(raw, ttl, s.now(), dst)
}

// Set writes through a temp file so readers never see a partial entry.
func (s *FileStore) Set(key string, v any) error {
	raw, err := encode(v, s.now())
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".set-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) Close() error { return nil }
