// Package serve is the embedded web server: it serves the live explorer
// page, a JSON API over the graph pipeline, Prometheus metrics and one
// WebSocket session per open page.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/explorer"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
	"github.com/msalah0e/trustmap/internal/render"
	"github.com/msalah0e/trustmap/internal/view"
)

// Config holds server configuration.
type Config struct {
	Port    int
	LogFile string
	Verbose bool
	Version string
}

// RequestLog represents a logged HTTP request.
type RequestLog struct {
	Timestamp time.Time `json:"ts"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Duration  float64   `json:"duration_ms"`
	Session   string    `json:"session,omitempty"`
}

// Stats tracks live server statistics.
type Stats struct {
	TotalRequests  int64     `json:"totalRequests"`
	TotalSessions  int64     `json:"totalSessions"`
	ActiveSessions int       `json:"activeSessions"`
	StartedAt      time.Time `json:"startedAt"`
}

// Server is the trustmap web server.
type Server struct {
	cfg      Config
	explorer explorer.Config
	source   graph.Source
	resolver explorer.Resolver
	logger   *zap.Logger
	metrics  *metrics.Metrics
	logFile  *os.File
	mu       sync.Mutex
	stats    Stats
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l.Named("serve") }
}

// WithMetrics exposes m on /metrics and records sessions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server that explores src, resolving handles with resolver.
func New(cfg Config, ecfg explorer.Config, src graph.Source, resolver explorer.Resolver, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		explorer: ecfg,
		source:   src,
		resolver: resolver,
		logger:   zap.NewNop(),
		stats:    Stats{StartedAt: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/lookup", s.handleLookup)
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /ws", s.handleSession)
	mux.HandleFunc("GET /trustmap/status", s.handleStatus)
	mux.HandleFunc("GET /trustmap/stats", s.handleStats)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.logRequests(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logPath := s.cfg.LogFile
	if logPath == "" {
		logPath = LogPath()
	}
	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)

	var err error
	s.logFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer s.logFile.Close()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("url", "http://localhost"+addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := graph.KindVouches
	if k := q.Get("kind"); k != "" {
		parsed, err := graph.ParseKind(k)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kind = parsed
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, render.LivePage(s.explorer.Theme, kind, q.Get("handle"), s.explorer.View))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	id, err := s.resolver.Lookup(r.Context(), query)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// graphResponse is the /api/graph body.
type graphResponse struct {
	Kind    graph.Kind      `json:"kind"`
	Root    graph.Identity  `json:"root"`
	Status  explorer.Status `json:"status"`
	Stats   *graph.Stats    `json:"stats,omitempty"`
	Graph   *graph.Graph    `json:"graph,omitempty"`
	Visible graph.Subgraph  `json:"visible"`
	Scene   *render.Scene   `json:"scene,omitempty"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	req, format, err := parseGraphRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := explorer.Run(r.Context(), s.source, s.resolver, s.explorer, req,
		explorer.WithLogger(s.logger), explorer.WithMetrics(s.metrics))
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}

	switch format {
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		fmt.Fprint(w, graph.ExportDOT(req.Kind, res.Visible.Nodes, res.Visible.Edges))
		return
	case "html":
		if res.Graph == nil {
			writeError(w, httpStatus(res.Status.Err), res.Status.Message)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, render.StaticPage(res.Scene, s.explorer.View))
		return
	}

	body := graphResponse{Kind: req.Kind, Root: res.Root, Status: res.Status, Graph: res.Graph, Visible: res.Visible}
	if res.Graph != nil {
		stats := res.Graph.GetStats()
		body.Stats = &stats
	}
	if req.Layout {
		body.Scene = &res.Scene
	}
	status := http.StatusOK
	if res.Status.Phase == explorer.PhaseNoData {
		status = http.StatusNotFound
	}
	writeJSON(w, status, body)
}

func parseGraphRequest(r *http.Request) (explorer.Request, string, error) {
	q := r.URL.Query()
	kind, err := graph.ParseKind(q.Get("kind"))
	if err != nil {
		return explorer.Request{}, "", err
	}
	handle := strings.TrimSpace(q.Get("handle"))
	if handle == "" {
		return explorer.Request{}, "", errors.New("missing handle")
	}
	req := explorer.Request{Kind: kind, Handle: handle}
	if v := q.Get("rings"); v != "" {
		if req.Rings, err = graph.ParseRings(v); err != nil {
			return explorer.Request{}, "", err
		}
	}
	if q.Has("rings") && req.Rings == nil {
		req.Rings = []int{}
	}
	if v := q.Get("sentiment"); v != "" {
		for _, part := range strings.Split(v, ",") {
			sent, err := graph.ParseSentiment(part)
			if err != nil {
				return explorer.Request{}, "", err
			}
			req.Sentiments = append(req.Sentiments, sent)
		}
	}
	if v := q.Get("width"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil || width <= 0 {
			return explorer.Request{}, "", fmt.Errorf("invalid width %q", v)
		}
		req.Size = view.Size{Width: width, Height: width}
	}

	format := q.Get("format")
	switch format {
	case "", "json":
		format = "json"
		req.Layout = q.Get("layout") == "true" || q.Get("layout") == "1"
	case "html":
		req.Layout = true
	case "dot":
	default:
		return explorer.Request{}, "", fmt.Errorf("unknown format %q (use json, dot or html)", format)
	}
	return req, format, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.stats.StartedAt
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"version": s.cfg.Version,
		"port":    s.cfg.Port,
		"uptime":  time.Since(started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.mu.Lock()
		s.stats.TotalRequests++
		s.mu.Unlock()

		entry := RequestLog{
			Timestamp: start,
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    rec.status(),
			Duration:  float64(elapsed.Milliseconds()),
		}
		s.writeLog(entry)
		if s.cfg.Verbose {
			s.logger.Info("request",
				zap.String("method", entry.Method), zap.String("path", entry.Path),
				zap.Int("status", entry.Status), zap.Duration("elapsed", elapsed))
		}
	})
}

func (s *Server) writeLog(entry RequestLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logFile == nil {
		return
	}
	_ = json.NewEncoder(s.logFile).Encode(entry)
}

func (s *Server) sessionOpened() func() {
	s.mu.Lock()
	s.stats.TotalSessions++
	s.stats.ActiveSessions++
	s.mu.Unlock()
	done := s.metrics.SessionOpened()
	return func() {
		done()
		s.mu.Lock()
		s.stats.ActiveSessions--
		s.mu.Unlock()
	}
}

// httpStatus maps a pipeline error onto a response code.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, graph.ErrNoDataFound), errors.Is(err, graph.ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrMissingIdentifier):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, new(*graph.FetchError)):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// responseRecorder captures the HTTP status code.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot hijack")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *responseRecorder) status() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}

// LogPath returns the request log location.
func LogPath() string {
	return filepath.Join(config.ConfigDir(), "serve.jsonl")
}

// ReadLogs returns the most recent n log entries.
func ReadLogs(n int) ([]RequestLog, error) {
	f, err := os.Open(LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []RequestLog
	dec := json.NewDecoder(f)
	for dec.More() {
		var entry RequestLog
		if err := dec.Decode(&entry); err != nil {
			break
		}
		all = append(all, entry)
	}

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// PidFile returns the path to the server PID file.
func PidFile() string {
	return filepath.Join(config.ConfigDir(), "serve.pid")
}

// IsRunning checks if a background server is running.
func IsRunning() (bool, int) {
	data, err := os.ReadFile(PidFile())
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check.
	if err := proc.Signal(syscall.Signal(0)); err == nil {
		return true, pid
	}
	// Stale PID file
	_ = os.Remove(PidFile())
	return false, 0
}

// WritePid writes pid to the PID file.
func WritePid(pid int) error {
	_ = os.MkdirAll(filepath.Dir(PidFile()), 0o755)
	return os.WriteFile(PidFile(), []byte(strconv.Itoa(pid)), 0o644)
}
