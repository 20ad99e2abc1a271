// Package fetch retrieves a bounded multi-hop neighbourhood around a root
// profile. Ring 1 is fetched first and published immediately; inter-ring
// and ring-2 stages follow as parallel batches whose individual failures
// are swallowed.
package fetch

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
	"github.com/msalah0e/trustmap/internal/parallel"
)

// Stage names a step of the fetch.
type Stage string

const (
	StageRingOne      Stage = "ring-1"
	StageInterRing    Stage = "inter-ring"
	StageRingTwo      Stage = "ring-2"
	StageInterRingTwo Stage = "inter-ring-2"
)

// Snapshot is the accumulated record list after a stage completes.
type Snapshot struct {
	Stage   Stage
	Records []graph.Record
}

// Limits are the fetch budgets.
type Limits struct {
	PageSize          int
	NodeBudget        int
	RecordBudget      int
	RingTwoProfiles   int
	InterRingProfiles int
	MinFreeSlots      int
	Concurrency       int
}

// DefaultLimits returns the limits of the default configuration.
func DefaultLimits() Limits {
	return LimitsFrom(config.Default().Fetch)
}

// LimitsFrom maps the [fetch] config section.
func LimitsFrom(c config.FetchConfig) Limits {
	return Limits{
		PageSize:          c.PageSize,
		NodeBudget:        c.NodeBudget,
		RecordBudget:      c.RecordBudget,
		RingTwoProfiles:   c.RingTwoProfiles,
		InterRingProfiles: c.InterRingProfiles,
		MinFreeSlots:      c.MinFreeSlots,
		Concurrency:       c.Concurrency,
	}
}

// Fetcher runs the staged neighbourhood fetch for one graph kind.
type Fetcher struct {
	source   graph.Source
	strategy graph.Strategy
	limits   Limits
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the fetcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l.Named("fetch") }
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// New returns a fetcher reading from src.
func New(src graph.Source, s graph.Strategy, limits Limits, opts ...Option) *Fetcher {
	f := &Fetcher{source: src, strategy: s, limits: limits, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Strategy returns the strategy the fetcher was built with.
func (f *Fetcher) Strategy() graph.Strategy {
	return f.strategy
}

// Fetch retrieves the neighbourhood of root. publish, when non-nil, is called
// synchronously after every stage that added records, ring 1 first.
//
// Only ring 1 can fail the operation: a 404 returns graph.ErrNoDataFound and
// other failures return the *graph.FetchError. An empty ring 1 returns
// graph.ErrEmptyResult. Failures in later stages leave those stages' data out.
func (f *Fetcher) Fetch(ctx context.Context, root graph.Identity, publish func(Snapshot)) ([]graph.Record, error) {
	records, err := f.fetch(ctx, root, publish)
	f.metrics.ObserveFetch(string(f.strategy.Kind), outcome(err), countNodes(root, records))
	return records, err
}

func (f *Fetcher) fetch(ctx context.Context, root graph.Identity, publish func(Snapshot)) ([]graph.Record, error) {
	if root.ProfileID == nil {
		return nil, graph.ErrMissingIdentifier
	}
	if publish == nil {
		publish = func(Snapshot) {}
	}
	log := f.logger.With(zap.String("kind", string(f.strategy.Kind)), zap.String("root", root.Key()))
	acc := newAccumulator(root.Key(), f.limits.NodeBudget, f.limits.RecordBudget)

	// Ring 1: both directions, fail-fast.
	given, received, err := f.ringOne(ctx, *root.ProfileID)
	if err != nil {
		log.Debug("ring 1 failed", zap.Error(err))
		return nil, err
	}
	for _, r := range append(given, received...) {
		r.Level = 1
		acc.add(r)
	}
	if len(acc.records) == 0 {
		return nil, graph.ErrEmptyResult
	}
	ringOne := acc.identities(1)
	log.Debug("ring 1", zap.Int("records", len(acc.records)), zap.Int("identities", len(ringOne)))
	publish(acc.snapshot(StageRingOne))

	if f.strategy.InterRing && !acc.full() {
		added := f.among(ctx, acc, StageInterRing, ringOne, keySet(ringOne), 1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if added > 0 {
			publish(acc.snapshot(StageInterRing))
		}
	}

	if acc.full() || acc.freeSlots() < f.limits.MinFreeSlots {
		log.Debug("budget exhausted after ring 1", zap.Int("free", acc.freeSlots()), zap.Int("records", len(acc.records)))
		return acc.records, nil
	}

	// Ring 2: outgoing records of ring-1 profiles that reach new identities.
	exclude := keySet(ringOne)
	exclude[root.Key()] = true
	profiles := limit(ringOne, f.limits.RingTwoProfiles)
	batches := f.outgoing(ctx, StageRingTwo, profiles, f.strategy.RingTwoLimit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	added := 0
	for _, batch := range batches {
		for _, r := range batch {
			if exclude[r.Target.Key()] {
				continue
			}
			r.Level = 2
			if acc.add(r) {
				added++
			}
		}
	}
	log.Debug("ring 2", zap.Int("profiles", len(profiles)), zap.Int("added", added), zap.Int("records", len(acc.records)))
	if added == 0 {
		return acc.records, nil
	}
	publish(acc.snapshot(StageRingTwo))

	if f.strategy.InterRingTwo && !acc.full() {
		ringTwo := acc.identities(2)
		added := f.among(ctx, acc, StageInterRingTwo, ringTwo, keySet(ringTwo), 2)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if added > 0 {
			publish(acc.snapshot(StageInterRingTwo))
		}
	}
	return acc.records, nil
}

func (f *Fetcher) ringOne(ctx context.Context, profileID int64) (given, received []graph.Record, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		given, err = f.strategy.Fetch(gctx, f.source, graph.Query{
			AuthorProfileIDs: []int64{profileID},
			Limit:            f.limits.PageSize,
		})
		return err
	})
	g.Go(func() error {
		var err error
		received, err = f.strategy.Fetch(gctx, f.source, graph.Query{
			SubjectProfileIDs: []int64{profileID},
			Limit:             f.limits.PageSize,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return given, received, nil
}

// among adds records between members of one ring, tagged with level.
func (f *Fetcher) among(ctx context.Context, acc *accumulator, stage Stage, ring []graph.Identity, members map[string]bool, level int) int {
	profiles := limit(ring, f.limits.InterRingProfiles)
	added := 0
	for _, batch := range f.outgoing(ctx, stage, profiles, f.limits.PageSize) {
		for _, r := range batch {
			if !members[r.Target.Key()] || !members[r.Origin.Key()] {
				continue
			}
			r.Level = level
			if acc.add(r) {
				added++
			}
		}
	}
	f.logger.Debug("connections within ring",
		zap.String("stage", string(stage)), zap.Int("profiles", len(profiles)), zap.Int("added", added))
	return added
}

// outgoing fetches records authored by each profile in parallel. A failed
// profile contributes an empty batch.
func (f *Fetcher) outgoing(ctx context.Context, stage Stage, profiles []graph.Identity, pageSize int) [][]graph.Record {
	tasks := make([]parallel.Task[[]graph.Record], 0, len(profiles))
	for _, p := range profiles {
		pid := *p.ProfileID
		tasks = append(tasks, parallel.Task[[]graph.Record]{
			Name: string(stage) + "/" + strconv.FormatInt(pid, 10),
			Fn: func(ctx context.Context) ([]graph.Record, error) {
				return f.strategy.Fetch(ctx, f.source, graph.Query{
					AuthorProfileIDs: []int64{pid},
					Limit:            pageSize,
				})
			},
		})
	}

	start := time.Now()
	results := parallel.Run(ctx, tasks, f.limits.Concurrency, f.logger)
	if failed := parallel.Failed(results); failed > 0 {
		f.logger.Debug("swallowed failures",
			zap.String("stage", string(stage)), zap.Int("failed", failed), zap.Int("tasks", len(tasks)))
	}
	f.logger.Debug("batch done", zap.String("stage", string(stage)), zap.Duration("elapsed", time.Since(start)))
	return parallel.Values(results)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, graph.ErrNoDataFound):
		return "no_data"
	case errors.Is(err, graph.ErrEmptyResult):
		return "empty"
	case errors.Is(err, graph.ErrMissingIdentifier):
		return "missing_identifier"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}

func countNodes(root graph.Identity, records []graph.Record) int {
	seen := map[string]bool{root.Key(): true}
	for _, r := range records {
		seen[r.Origin.Key()] = true
		seen[r.Target.Key()] = true
	}
	return len(seen)
}

func keySet(ids []graph.Identity) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id.Key()] = true
	}
	return set
}

func limit(ids []graph.Identity, n int) []graph.Identity {
	if n >= 0 && len(ids) > n {
		return ids[:n]
	}
	return ids
}
