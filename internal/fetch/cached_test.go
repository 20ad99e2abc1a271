package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msalah0e/trustmap/internal/cache"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

func TestCachedSource(t *testing.T) {
	src := newFakeSource()
	src.authored[1] = []graph.Record{rec("v1", root, alice)}

	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()
	cs := NewCachedSource(src, store, time.Minute, m, nil)

	q := graph.Query{AuthorProfileIDs: []int64{1}, Limit: 100}
	first, err := cs.Relationships(context.Background(), graph.KindVouches, q)
	require.NoError(t, err)
	second, err := cs.Relationships(context.Background(), graph.KindVouches, q)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Target.Key(), second[0].Target.Key())
	assert.Len(t, src.calls, 1, "second query is served from cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheTotal.WithLabelValues("miss")))

	_, err = cs.Relationships(context.Background(), graph.KindReviews, q)
	require.NoError(t, err)
	assert.Len(t, src.calls, 2, "kind is part of the key")
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	src := newFakeSource()
	src.errs["author:1"] = graph.ErrNoDataFound
	cs := NewCachedSource(src, cache.Nop{}, time.Minute, nil, nil)

	q := graph.Query{AuthorProfileIDs: []int64{1}}
	_, err := cs.Relationships(context.Background(), graph.KindVouches, q)
	assert.ErrorIs(t, err, graph.ErrNoDataFound)
	_, err = cs.Relationships(context.Background(), graph.KindVouches, q)
	assert.ErrorIs(t, err, graph.ErrNoDataFound)
	assert.Len(t, src.calls, 2)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "vouches:author=1,2:subject=:limit=50:offset=0",
		cacheKey(graph.KindVouches, graph.Query{AuthorProfileIDs: []int64{1, 2}, Limit: 50}))
	assert.NotEqual(t,
		cacheKey(graph.KindVouches, graph.Query{AuthorProfileIDs: []int64{1}}),
		cacheKey(graph.KindVouches, graph.Query{SubjectProfileIDs: []int64{1}}))
}
