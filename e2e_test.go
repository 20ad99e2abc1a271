//go:build e2e

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var trustmapBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "trustmap-e2e-*")
	if err != nil {
		panic("failed to create temp dir: " + err.Error())
	}
	defer os.RemoveAll(tmp)

	trustmapBin = filepath.Join(tmp, "trustmap")
	build := exec.Command("go", "build", "-ldflags", "-X github.com/msalah0e/trustmap/cmd.version=1.5.0-test", "-o", trustmapBin, ".")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		panic("failed to build trustmap: " + err.Error())
	}

	os.Exit(m.Run())
}

// fakeAPI serves a three-person network: alice vouches for bob, carol
// vouches for alice, bob vouches for dave.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	person := func(id int, name string) map[string]any {
		return map[string]any{"id": id * 10, "profileId": id, "displayName": strings.ToUpper(name[:1]) + name[1:], "username": name, "score": 1000 + id}
	}
	people := map[string]map[string]any{
		"alice": person(1, "alice"), "bob": person(2, "bob"), "carol": person(3, "carol"), "dave": person(4, "dave"),
	}
	type edge struct{ id, from, to string }
	edges := []edge{{"11", "alice", "bob"}, {"12", "carol", "alice"}, {"13", "bob", "dave"}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/user/by/username/{name}", func(w http.ResponseWriter, r *http.Request) {
		p, ok := people[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("POST /api/v2/{kind}", func(w http.ResponseWriter, r *http.Request) {
		var q struct {
			Authors  []int64 `json:"authorProfileIds"`
			Subjects []int64 `json:"subjectProfileIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&q)
		matches := func(ids []int64, p map[string]any) bool {
			for _, id := range ids {
				if int(id) == p["profileId"].(int) {
					return true
				}
			}
			return false
		}
		var values []map[string]any
		for _, e := range edges {
			from, to := people[e.from], people[e.to]
			if matches(q.Authors, from) || matches(q.Subjects, to) {
				values = append(values, map[string]any{
					"id": e.id, "author": from, "subject": to,
					"balance": "0.5", "score": "positive", "createdAt": 1700000000,
				})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": values, "total": len(values)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runTrustmap executes the trustmap binary with an isolated HOME directory.
func runTrustmap(t *testing.T, apiURL string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(trustmapBin, append([]string{"--offline"}, args...)...)
	home := t.TempDir()
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"XDG_CACHE_HOME="+filepath.Join(home, ".cache"),
		"TRUSTMAP_API_URL="+apiURL,
		"NO_COLOR=1",
	)

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode = 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("failed to run trustmap %v: %v", args, err)
		}
	}
	return outBuf.String(), errBuf.String(), exitCode
}

func TestE2E_Version(t *testing.T) {
	out, _, code := runTrustmap(t, "", "--version")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "1.5.0") {
		t.Errorf("expected version output to contain '1.5.0', got %q", out)
	}
}

func TestE2E_Help(t *testing.T) {
	out, _, code := runTrustmap(t, "", "--help")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, want := range []string{"Available Commands", "graph", "serve", "lookup"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to contain %q, got %q", want, out)
		}
	}
}

func TestE2E_ConfigInit(t *testing.T) {
	out, _, code := runTrustmap(t, "", "config", "init")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "config.toml") {
		t.Errorf("expected config path in output, got %q", out)
	}
}

func TestE2E_ConfigShow(t *testing.T) {
	out, _, code := runTrustmap(t, "http://example.invalid", "config", "show")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "http://example.invalid") || !strings.Contains(out, "[layout]") {
		t.Errorf("expected effective TOML, got %q", out)
	}
}

func TestE2E_Lookup(t *testing.T) {
	api := fakeAPI(t)
	out, _, code := runTrustmap(t, api.URL, "lookup", "@alice", "--json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, `"profileId": 1`) {
		t.Errorf("expected identity JSON, got %q", out)
	}
}

func TestE2E_LookupUnknown(t *testing.T) {
	api := fakeAPI(t)
	_, errOut, code := runTrustmap(t, api.URL, "lookup", "nobody")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown handle")
	}
	if !strings.Contains(errOut, "nothing here") {
		t.Errorf("expected no-data message, got %q", errOut)
	}
}

func TestE2E_GraphRings(t *testing.T) {
	api := fakeAPI(t)
	out, _, code := runTrustmap(t, api.URL, "graph", "vouches", "alice")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, want := range []string{"ring 1", "ring 2", "Bob", "Carol", "Dave"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in ring output, got %q", want, out)
		}
	}
}

func TestE2E_GraphRingOneOnly(t *testing.T) {
	api := fakeAPI(t)
	out, _, code := runTrustmap(t, api.URL, "graph", "vouches", "alice", "--rings", "", "--format", "table")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.Contains(out, "Dave") {
		t.Errorf("ring 2 should be hidden, got %q", out)
	}
}

func TestE2E_GraphJSON(t *testing.T) {
	api := fakeAPI(t)
	out, _, code := runTrustmap(t, api.URL, "graph", "reviews", "alice", "-f", "json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var sub struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal([]byte(out), &sub); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(sub.Nodes) != 4 || len(sub.Edges) != 3 {
		t.Errorf("expected 4 nodes and 3 edges, got %d and %d", len(sub.Nodes), len(sub.Edges))
	}
}

func TestE2E_GraphDOT(t *testing.T) {
	api := fakeAPI(t)
	out, _, code := runTrustmap(t, api.URL, "graph", "invitations", "alice", "-f", "dot")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out, "digraph trustmap_invitations") {
		t.Errorf("expected DOT output, got %q", out)
	}
}

func TestE2E_GraphHTML(t *testing.T) {
	api := fakeAPI(t)
	path := filepath.Join(t.TempDir(), "alice.html")
	_, _, code := runTrustmap(t, api.URL, "graph", "vouches", "alice", "-f", "html", "-o", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected html file: %v", err)
	}
	if !strings.Contains(string(data), "<canvas") {
		t.Error("expected a canvas in the page")
	}
}

func TestE2E_GraphBadKind(t *testing.T) {
	_, errOut, code := runTrustmap(t, "", "graph", "likes", "alice")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown kind")
	}
	if !strings.Contains(errOut, "likes") {
		t.Errorf("expected error to name the kind, got %q", errOut)
	}
}

func TestE2E_CacheDir(t *testing.T) {
	out, _, code := runTrustmap(t, "", "cache", "dir")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, filepath.Join(".cache", "trustmap")) {
		t.Errorf("expected cache dir, got %q", out)
	}
}

func TestE2E_ServeStatus(t *testing.T) {
	out, _, code := runTrustmap(t, "", "serve", "status")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("expected not running, got %q", out)
	}
}

func TestE2E_CompletionZsh(t *testing.T) {
	out, _, code := runTrustmap(t, "", "completion", "zsh")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "trustmap") {
		t.Error("expected zsh completion script to reference trustmap")
	}
}

func TestE2E_HistoryEmpty(t *testing.T) {
	out, _, code := runTrustmap(t, "http://example.invalid", "history")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "Nothing explored yet") {
		t.Errorf("expected empty history hint, got %q", out)
	}
}
