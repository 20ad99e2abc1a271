// Package stats keeps a local history of explored identities.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/msalah0e/trustmap/internal/config"
)

// Entry represents a single exploration.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Command   string    `json:"cmd"`
	Kind      string    `json:"kind,omitempty"`
	Handle    string    `json:"handle"`
	Outcome   string    `json:"outcome"`
	Nodes     int       `json:"nodes,omitempty"`
}

// OK reports whether the exploration produced a result.
func (e Entry) OK() bool {
	return e.Outcome == "ok"
}

// HandleCount is how often a handle was explored.
type HandleCount struct {
	Handle string
	Count  int
}

// Summary holds aggregated stats.
type Summary struct {
	Total    int
	Failed   int
	ByKind   map[string]int
	Handles  []HandleCount
	LastUsed time.Time
}

func historyPath() string {
	return filepath.Join(config.ConfigDir(), "history.jsonl")
}

// Record appends an entry to the history file.
func Record(e Entry) error {
	path := historyPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return json.NewEncoder(f).Encode(e)
}

func readAll() ([]Entry, error) {
	f, err := os.Open(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []Entry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			break
		}
		all = append(all, e)
	}
	return all, nil
}

// Recent returns the last n entries, oldest first.
func Recent(n int) ([]Entry, error) {
	all, err := readAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// Summarize reads history and returns aggregated stats.
func Summarize() (*Summary, error) {
	all, err := readAll()
	if err != nil {
		return nil, err
	}

	s := &Summary{ByKind: make(map[string]int)}
	counts := make(map[string]int)
	for _, e := range all {
		s.Total++
		if !e.OK() {
			s.Failed++
		}
		if e.Timestamp.After(s.LastUsed) {
			s.LastUsed = e.Timestamp
		}
		if e.Kind != "" {
			s.ByKind[e.Kind]++
		}
		counts[e.Handle]++
	}
	for h, c := range counts {
		s.Handles = append(s.Handles, HandleCount{Handle: h, Count: c})
	}
	sort.Slice(s.Handles, func(i, j int) bool {
		if s.Handles[i].Count != s.Handles[j].Count {
			return s.Handles[i].Count > s.Handles[j].Count
		}
		return s.Handles[i].Handle < s.Handles[j].Handle
	})
	return s, nil
}

// Clear removes the history file.
func Clear() error {
	err := os.Remove(historyPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
