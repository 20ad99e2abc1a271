package update

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewer(t *testing.T) {
	assert.True(t, newer("0.1.0", "v0.2.0"))
	assert.False(t, newer("0.2.0", "v0.2.0"))
	assert.False(t, newer("v0.2.0", "0.2.0"))
	assert.False(t, newer("0.2.0", ""))
}

func TestRefresh(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(releaseInfo{TagName: "v9.9.9"})
	}))
	defer srv.Close()
	old := releaseURL
	releaseURL = srv.URL
	defer func() { releaseURL = old }()

	latest, err := refresh()
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9", latest)

	data, err := os.ReadFile(cachePath())
	require.NoError(t, err)
	var cache checkCache
	require.NoError(t, json.Unmarshal(data, &cache))
	assert.Equal(t, "v9.9.9", cache.Latest)
	assert.WithinDuration(t, time.Now(), cache.LastCheck, time.Minute)
}

func TestFetchLatest_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	old := releaseURL
	releaseURL = srv.URL
	defer func() { releaseURL = old }()

	_, err := fetchLatest()
	assert.ErrorContains(t, err, "403")
}
