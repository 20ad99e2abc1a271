// Package ethos is the HTTP client for the remote trust network API. It
// implements graph.Source for relationship queries and resolves handles or
// wallet addresses to identities.
package ethos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

const clientHeader = "X-Ethos-Client"

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("ethos") }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client from the [api] config section. version is appended to
// the client header value.
func New(cfg config.APIConfig, version string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client + "@" + version,
		http:    &http.Client{Timeout: cfg.Timeout.Duration},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves a handle ("alice", "@alice") or a 0x wallet address.
// A 404 returns graph.ErrNoDataFound.
func (c *Client) Lookup(ctx context.Context, query string) (graph.Identity, error) {
	q := strings.TrimPrefix(strings.TrimSpace(query), "@")
	if q == "" {
		return graph.Identity{}, errors.New("empty handle or address")
	}

	path := "/api/v2/user/by/username/" + url.PathEscape(q)
	if strings.HasPrefix(strings.ToLower(q), "0x") {
		path = "/api/v2/user/by/address/" + url.PathEscape(q)
	}

	var w wireIdentity
	if err := c.do(ctx, http.MethodGet, path, nil, &w, "lookup"); err != nil {
		return graph.Identity{}, err
	}
	return w.identity(), nil
}

// Relationships runs one page of a relationship query.
func (c *Client) Relationships(ctx context.Context, kind graph.Kind, q graph.Query) ([]graph.Record, error) {
	var page wirePage
	if err := c.do(ctx, http.MethodPost, "/api/v2/"+string(kind), q, &page, string(kind)); err != nil {
		return nil, err
	}

	records := make([]graph.Record, 0, len(page.Values))
	for _, v := range page.Values {
		records = append(records, v.record(kind))
	}
	c.logger.Debug("relationships",
		zap.String("kind", string(kind)),
		zap.Int64s("authors", q.AuthorProfileIDs),
		zap.Int64s("subjects", q.SubjectProfileIDs),
		zap.Int("limit", q.Limit),
		zap.Int("returned", len(records)),
		zap.Int("total", page.Total),
	)
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, label string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &graph.FetchError{Message: err.Error()}
	}
	req.Header.Set(clientHeader, c.client)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(label, "error", time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &graph.FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(label, strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return graph.ErrNoDataFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &graph.FetchError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &graph.FetchError{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// errorMessage extracts {"message": "..."} from an error body, if present.
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		return body.Message
	}
	return ""
}
