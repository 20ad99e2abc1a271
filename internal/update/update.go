// Package update checks GitHub for newer trustmap releases.
package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/logging"
	"github.com/msalah0e/trustmap/internal/ui"
)

const (
	repo       = "msalah0e/trustmap"
	checkEvery = 24 * time.Hour
)

// releaseURL is a variable so tests can point it at a local server.
var releaseURL = fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", repo)

type releaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type checkCache struct {
	LastCheck time.Time `json:"last_check"`
	Latest    string    `json:"latest"`
}

func cachePath() string {
	return filepath.Join(config.ConfigDir(), "update-check.json")
}

// CheckForUpdate prints a notice when the cached latest release differs from
// currentVersion. The cache is refreshed at most once a day, in the
// background.
func CheckForUpdate(currentVersion string) {
	path := cachePath()

	var cache checkCache
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cache)
		if time.Since(cache.LastCheck) < checkEvery {
			if newer(currentVersion, cache.Latest) {
				printUpdateMessage(currentVersion, cache.Latest)
			}
			return
		}
	}

	go func() {
		if _, err := refresh(); err != nil {
			logging.L().Debug("update check failed", zap.Error(err))
		}
	}()
}

// CheckNow forces an immediate version check and prints the result.
func CheckNow(currentVersion string) {
	latest, err := refresh()
	if err != nil {
		ui.Subtle.Printf("  Could not check for updates: %v\n", err)
		return
	}
	if newer(currentVersion, latest) {
		printUpdateMessage(currentVersion, latest)
		return
	}
	ui.Good.Printf("  %s trustmap is up to date (%s)\n", ui.StatusIcon(true), currentVersion)
}

// refresh fetches the latest tag and records it in the check cache.
func refresh() (string, error) {
	latest, err := fetchLatest()
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(checkCache{LastCheck: time.Now(), Latest: latest})
	_ = os.MkdirAll(filepath.Dir(cachePath()), 0o755)
	_ = os.WriteFile(cachePath(), data, 0o644)
	return latest, nil
}

func fetchLatest() (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(releaseURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	return release.TagName, nil
}

// newer reports whether latest names a different release than current.
func newer(current, latest string) bool {
	latest = strings.TrimPrefix(latest, "v")
	return latest != "" && latest != strings.TrimPrefix(current, "v")
}

func printUpdateMessage(current, latest string) {
	fmt.Println()
	ui.Warn.Printf("  Update available: %s → %s\n", current, latest)
	fmt.Printf("  Run: go install github.com/%s@latest\n", repo)
}
