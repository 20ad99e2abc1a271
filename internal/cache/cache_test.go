package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/test-cache")
	if Dir() != "/tmp/test-cache/trustmap" {
		t.Errorf("expected /tmp/test-cache/trustmap, got %q", Dir())
	}

	t.Setenv("XDG_CACHE_HOME", "")
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", "trustmap")
	if Dir() != expected {
		t.Errorf("expected %q, got %q", expected, Dir())
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"vouches:author:1,2", "vouches_author_1-2"},
		{"@scope/pkg", "_scope_pkg"},
		{"a b", "a_b"},
	}

	for _, tt := range tests {
		result := sanitize(tt.input)
		if result != tt.expected {
			t.Errorf("sanitize(%q): expected %q, got %q", tt.input, tt.expected, result)
		}
	}
}

// storeContract runs the shared Store behaviour against a backend whose
// clock can be moved forward by advance.
func storeContract(t *testing.T, s Store, advance func(time.Duration)) {
	t.Helper()

	var got payload
	assert.False(t, s.Get("missing", time.Minute, &got))

	require.NoError(t, s.Set("vouches:1", payload{Name: "alice", Count: 3}))
	require.True(t, s.Get("vouches:1", time.Minute, &got))
	assert.Equal(t, payload{Name: "alice", Count: 3}, got)

	advance(2 * time.Minute)
	assert.False(t, s.Get("vouches:1", time.Minute, &got), "expired entry must miss")
	assert.True(t, s.Get("vouches:1", 0, &got), "zero ttl never expires")

	require.NoError(t, s.Set("vouches:1", payload{Name: "bob"}))
	require.True(t, s.Get("vouches:1", time.Minute, &got))
	assert.Equal(t, "bob", got.Name)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	storeContract(t, s, func(d time.Duration) { now = now.Add(d) })
}

func TestFileStore_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	raw := []byte(`{"version":0,"savedAt":"2099-01-01T00:00:00Z","data":{"name":"old"}}`)
	require.NoError(t, os.WriteFile(s.path("k"), raw, 0o644))

	var got payload
	assert.False(t, s.Get("k", 0, &got))
}

func TestFileStore_Corrupt(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path("k"), []byte("{"), 0o644))

	var got payload
	assert.False(t, s.Get("k", 0, &got))
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Now()
	s.now = func() time.Time { return now }
	storeContract(t, s, func(d time.Duration) { now = now.Add(d) })

	require.NoError(t, s.Delete("vouches:1"))
	require.NoError(t, s.Delete("vouches:1"))
	var got payload
	assert.False(t, s.Get("vouches:1", 0, &got))
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	require.NoError(t, s.Set("k", payload{}))
	var got payload
	assert.False(t, s.Get("k", 0, &got))
}

func TestOpen(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	s, err := Open("file", nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open("none", nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)

	_, err = Open("redis", nil)
	assert.Error(t, err)
}

func TestClearAndBundle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmp)

	out := filepath.Join(t.TempDir(), "cache.tar.gz")
	assert.Error(t, Bundle(out), "bundling an empty cache fails")

	s, err := Open("file", nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("reviews:9", payload{Name: "x"}))

	require.NoError(t, Bundle(out))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NoError(t, Clear())
	_, err = os.Stat(Dir())
	assert.True(t, os.IsNotExist(err))
}
