package ethos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default().API
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 0
	return New(cfg, "test", opts...)
}

func TestLookup_Username(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/user/by/username/alice", r.URL.Path)
		assert.Equal(t, "trustmap@test", r.Header.Get(clientHeader))
		w.Write([]byte(`{"id":7,"profileId":42,"displayName":"Alice","username":"alice","avatarUrl":"https://a/x.png","score":1800}`))
	}))

	id, err := c.Lookup(context.Background(), "@alice")
	require.NoError(t, err)
	require.NotNil(t, id.ProfileID)
	assert.Equal(t, int64(42), *id.ProfileID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, 1800, id.Score)
	assert.Equal(t, "42", id.Key())
}

func TestLookup_AddressWithoutProfile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/user/by/address/0xAbC", r.URL.Path)
		w.Write([]byte(`{"id":9,"profileId":null,"displayName":"0xAbC","username":null,"score":0}`))
	}))

	id, err := c.Lookup(context.Background(), "0xAbC")
	require.NoError(t, err)
	assert.False(t, id.HasProfile())
	assert.Equal(t, "user-9", id.Key())
}

func TestLookup_Empty(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Lookup(context.Background(), "  ")
	assert.Error(t, err)
}

func TestLookup_NotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, graph.ErrNoDataFound)
}

func TestRelationships_Vouches(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/vouches", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var q graph.Query
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, []int64{1}, q.AuthorProfileIDs)
		assert.Equal(t, 100, q.Limit)

		w.Write([]byte(`{"values":[
			{"id":11,"authorProfileId":1,"subjectProfileId":2,
			 "author":{"id":100,"profileId":1,"displayName":"Root"},
			 "subject":{"id":200,"displayName":"Bob"},
			 "createdAt":1700000000,"balance":"0.25","archived":false}
		],"total":1,"limit":100,"offset":0}`))
	}))

	records, err := c.Relationships(context.Background(), graph.KindVouches, graph.Query{AuthorProfileIDs: []int64{1}, Limit: 100})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "11", r.ID)
	assert.Equal(t, graph.KindVouches, r.Kind)
	assert.Equal(t, "1", r.Origin.Key())
	assert.Equal(t, "2", r.Target.Key(), "subjectProfileId fills a missing subject profile")
	assert.InDelta(t, 0.25, r.Magnitude, 1e-9)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), r.CreatedAt)
}

func TestRelationships_ReviewSentiment(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[
			{"id":"r1","author":{"id":1,"profileId":1},"subject":{"id":2,"profileId":2},"score":"negative","archived":true},
			{"id":"r2","author":{"id":1,"profileId":1},"subject":{"id":3,"profileId":3},"score":"bogus"}
		]}`))
	}))

	records, err := c.Relationships(context.Background(), graph.KindReviews, graph.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, graph.SentimentNegative, records[0].Sentiment)
	assert.True(t, records[0].Archived)
	assert.Empty(t, records[1].Sentiment)
	assert.True(t, records[1].CreatedAt.IsZero())
}

func TestRelationships_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", 500, ``, "fetch failed: 500 Internal Server Error"},
		{"with message", 429, `{"message":"slow down"}`, "fetch failed: 429 slow down"},
		{"bad request", 400, `not json`, "fetch failed: 400 Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			_, err := c.Relationships(context.Background(), graph.KindInvitations, graph.Query{Limit: 1})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.status, graph.StatusOf(err))
		})
	}
}

func TestRelationships_TransportError(t *testing.T) {
	cfg := config.Default().API
	cfg.BaseURL = "http://127.0.0.1:1"
	c := New(cfg, "test")

	_, err := c.Relationships(context.Background(), graph.KindVouches, graph.Query{})
	var fe *graph.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
}

func TestRelationships_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Relationships(ctx, graph.KindVouches, graph.Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelationships_Metrics(t *testing.T) {
	m := metrics.New()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[]}`))
	}), WithMetrics(m))

	_, err := c.Relationships(context.Background(), graph.KindReviews, graph.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("reviews", "200")))
}
