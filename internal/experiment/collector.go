// Package experiment aggregates per-strategy outcomes for the A/B strategy
// experiment. Nothing in the generation path reads these statistics.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// ErrUnknownResult is returned when marking a result the collector never saw.
var ErrUnknownResult = errors.New("unknown experiment result")

// Sink persists experiment records. Implementations must be safe for
// concurrent use.
type Sink interface {
	SaveResult(ctx context.Context, r types.ExperimentResult) error
	MarkSelected(ctx context.Context, id uuid.UUID) error
	// Lookup returns a stored result. ok is false when no row has id.
	Lookup(ctx context.Context, id uuid.UUID) (r types.ExperimentResult, ok bool, err error)
}

// Default retention for results held in memory. Older results are still
// reachable through the sink.
const (
	DefaultMaxResults = 10000
	DefaultResultTTL  = 24 * time.Hour
)

// Stats summarizes one strategy.
type Stats struct {
	Strategy      types.StrategyName `json:"strategy"`
	Count         int                `json:"count"`
	MeanScore     float64            `json:"mean_score"`
	StdDevScore   float64            `json:"stddev_score"`
	Selected      int                `json:"selected"`
	SelectionRate float64            `json:"selection_rate"`
	MeanLatency   time.Duration      `json:"mean_latency"`
}

// running holds Welford accumulators for one strategy.
type running struct {
	count    int
	mean     float64
	m2       float64
	selected int
	latency  time.Duration
}

func (r *running) add(score float64, latency time.Duration) {
	r.count++
	delta := score - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (score - r.mean)
	r.latency += latency
}

// heldResult is a result kept in memory with the time it was recorded.
type heldResult struct {
	result     types.ExperimentResult
	recordedAt time.Time
}

// Collector records experiment results in memory and forwards them to an
// optional sink. It is injected, never global.
type Collector struct {
	mu      sync.Mutex
	stats   map[types.StrategyName]*running
	results map[uuid.UUID]*heldResult
	order   []uuid.UUID // recording order, oldest first
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time

	maxResults int
	resultTTL  time.Duration
}

// Option configures a Collector.
type Option func(*Collector)

// WithRetention bounds the results held in memory to at most maxResults,
// each kept no longer than ttl. Non-positive values keep the defaults.
func WithRetention(maxResults int, ttl time.Duration) Option {
	return func(c *Collector) {
		if maxResults > 0 {
			c.maxResults = maxResults
		}
		if ttl > 0 {
			c.resultTTL = ttl
		}
	}
}

// NewCollector creates a collector. sink and logger may be nil.
func NewCollector(sink Sink, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		stats:      make(map[types.StrategyName]*running),
		results:    make(map[uuid.UUID]*heldResult),
		sink:       sink,
		logger:     logger,
		now:        time.Now,
		maxResults: DefaultMaxResults,
		resultTTL:  DefaultResultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record stores r, filling in ID and CreatedAt when unset, and returns the
// stored copy. Sink failures are logged and do not fail the caller.
func (c *Collector) Record(ctx context.Context, r types.ExperimentResult) types.ExperimentResult {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = c.now().UTC()
	}
	r.Selected = false

	c.mu.Lock()
	acc, ok := c.stats[r.Strategy]
	if !ok {
		acc = &running{}
		c.stats[r.Strategy] = acc
	}
	acc.add(r.QualityScore, r.Latency)
	now := c.now()
	if _, dup := c.results[r.ID]; !dup {
		c.order = append(c.order, r.ID)
	}
	c.results[r.ID] = &heldResult{result: r, recordedAt: now}
	c.evictLocked(now)
	c.mu.Unlock()

	metrics.QualityScore.WithLabelValues(string(r.Strategy)).Observe(r.QualityScore)

	if c.sink != nil {
		if err := c.sink.SaveResult(ctx, r); err != nil {
			c.logger.Warn("failed to persist experiment result",
				zap.String("id", r.ID.String()),
				zap.Error(err))
		}
	}
	return r
}

// evictLocked drops expired results and then the oldest ones until the
// map fits maxResults. c.mu must be held.
func (c *Collector) evictLocked(now time.Time) {
	cutoff := now.Add(-c.resultTTL)
	for len(c.order) > 0 {
		id := c.order[0]
		h, ok := c.results[id]
		if ok && len(c.results) <= c.maxResults && h.recordedAt.After(cutoff) {
			return
		}
		delete(c.results, id)
		c.order = c.order[1:]
	}
}

// MarkSelected records that a human picked the result with id. Marking the
// same result twice counts once. Results no longer held in memory are
// looked up in the sink; those do not move the in-process statistics.
func (c *Collector) MarkSelected(ctx context.Context, id uuid.UUID) (types.ExperimentResult, error) {
	c.mu.Lock()
	h, ok := c.results[id]
	if !ok {
		c.mu.Unlock()
		r, found, err := c.lookup(ctx, id)
		if err != nil {
			return types.ExperimentResult{}, err
		}
		if !found {
			return types.ExperimentResult{}, ErrUnknownResult
		}
		if !r.Selected {
			if err := c.sink.MarkSelected(ctx, id); err != nil {
				return types.ExperimentResult{}, fmt.Errorf("failed to mark stored result: %w", err)
			}
			r.Selected = true
		}
		return r, nil
	}
	if !h.result.Selected {
		h.result.Selected = true
		c.stats[h.result.Strategy].selected++
	}
	out := h.result
	c.mu.Unlock()

	if c.sink != nil {
		if err := c.sink.MarkSelected(ctx, id); err != nil {
			c.logger.Warn("failed to persist experiment selection",
				zap.String("id", id.String()),
				zap.Error(err))
		}
	}
	return out, nil
}

// Result returns a recorded result by id, falling back to the sink for
// results recorded before a restart or already evicted from memory.
func (c *Collector) Result(ctx context.Context, id uuid.UUID) (types.ExperimentResult, bool, error) {
	c.mu.Lock()
	h, ok := c.results[id]
	if ok {
		out := h.result
		c.mu.Unlock()
		return out, true, nil
	}
	c.mu.Unlock()
	return c.lookup(ctx, id)
}

func (c *Collector) lookup(ctx context.Context, id uuid.UUID) (types.ExperimentResult, bool, error) {
	if c.sink == nil {
		return types.ExperimentResult{}, false, nil
	}
	r, ok, err := c.sink.Lookup(ctx, id)
	if err != nil {
		return types.ExperimentResult{}, false, fmt.Errorf("failed to look up experiment result: %w", err)
	}
	return r, ok, nil
}

func (c *Collector) heldCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Snapshot returns the current statistics per strategy.
func (c *Collector) Snapshot() map[types.StrategyName]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[types.StrategyName]Stats, len(c.stats))
	for name, acc := range c.stats {
		s := Stats{Strategy: name, Count: acc.count, Selected: acc.selected}
		if acc.count > 0 {
			s.MeanScore = acc.mean
			s.StdDevScore = math.Sqrt(acc.m2 / float64(acc.count))
			s.SelectionRate = float64(acc.selected) / float64(acc.count)
			s.MeanLatency = acc.latency / time.Duration(acc.count)
		}
		out[name] = s
	}
	return out
}

// Sorted returns the snapshot ordered by strategy name.
func Sorted(snapshot map[types.StrategyName]Stats) []Stats {
	out := make([]Stats, 0, len(snapshot))
	for _, s := range snapshot {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}
