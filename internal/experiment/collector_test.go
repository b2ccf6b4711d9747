package experiment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/recommendation-writer/internal/types"
)

type recordingSink struct {
	mu       sync.Mutex
	saved    []types.ExperimentResult
	selected []uuid.UUID
	err      error
}

func (s *recordingSink) SaveResult(_ context.Context, r types.ExperimentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return s.err
}

func (s *recordingSink) MarkSelected(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append(s.selected, id)
	return s.err
}

func (s *recordingSink) Lookup(_ context.Context, id uuid.UUID) (types.ExperimentResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return types.ExperimentResult{}, false, s.err
	}
	for _, r := range s.saved {
		if r.ID == id {
			return r, true, nil
		}
	}
	return types.ExperimentResult{}, false, nil
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(nil, nil)
	ctx := t.Context()

	a := c.Record(ctx, types.ExperimentResult{SubjectID: "alice", Strategy: types.StrategyBaseline, QualityScore: 60, Latency: 2 * time.Second})
	c.Record(ctx, types.ExperimentResult{SubjectID: "bob", Strategy: types.StrategyBaseline, QualityScore: 80, Latency: 4 * time.Second})
	c.Record(ctx, types.ExperimentResult{SubjectID: "carol", Strategy: types.StrategyConcise, QualityScore: 70, Latency: time.Second})

	_, err := c.MarkSelected(ctx, a.ID)
	require.NoError(t, err)

	snap := c.Snapshot()
	require.Len(t, snap, 2)

	base := snap[types.StrategyBaseline]
	assert.Equal(t, 2, base.Count)
	assert.InDelta(t, 70.0, base.MeanScore, 1e-9)
	assert.InDelta(t, 10.0, base.StdDevScore, 1e-9)
	assert.Equal(t, 1, base.Selected)
	assert.InDelta(t, 0.5, base.SelectionRate, 1e-9)
	assert.Equal(t, 3*time.Second, base.MeanLatency)

	concise := snap[types.StrategyConcise]
	assert.Equal(t, 1, concise.Count)
	assert.Zero(t, concise.StdDevScore)
	assert.Zero(t, concise.SelectionRate)

	sorted := Sorted(snap)
	assert.Equal(t, types.StrategyBaseline, sorted[0].Strategy)
	assert.Equal(t, types.StrategyConcise, sorted[1].Strategy)
}

func TestCollector_RecordFillsIdentity(t *testing.T) {
	c := NewCollector(nil, nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	r := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyStoryFirst, Selected: true})
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, fixed, r.CreatedAt)
	assert.False(t, r.Selected)

	got, ok, err := c.Result(t.Context(), r.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestCollector_RetentionCap(t *testing.T) {
	c := NewCollector(nil, nil, WithRetention(3, time.Hour))

	var ids []uuid.UUID
	for range 5 {
		ids = append(ids, c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyBaseline, QualityScore: 50}).ID)
	}

	assert.Equal(t, 3, c.heldCount())
	_, ok, err := c.Result(t.Context(), ids[0])
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = c.Result(t.Context(), ids[4])
	assert.True(t, ok)
	assert.Equal(t, 5, c.Snapshot()[types.StrategyBaseline].Count)
}

func TestCollector_RetentionTTL(t *testing.T) {
	c := NewCollector(nil, nil, WithRetention(100, time.Hour))
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	old := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyBaseline})
	now = now.Add(2 * time.Hour)
	fresh := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyBaseline})

	assert.Equal(t, 1, c.heldCount())
	_, ok, _ := c.Result(t.Context(), old.ID)
	assert.False(t, ok)
	_, ok, _ = c.Result(t.Context(), fresh.ID)
	assert.True(t, ok)
}

func TestCollector_FallsBackToSink(t *testing.T) {
	sink := &recordingSink{}
	stored := types.ExperimentResult{ID: uuid.New(), SubjectID: "alice", Strategy: types.StrategyConcise, QualityScore: 77}
	sink.saved = append(sink.saved, stored)
	c := NewCollector(sink, nil)

	got, ok, err := c.Result(t.Context(), stored.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, got)

	marked, err := c.MarkSelected(t.Context(), stored.ID)
	require.NoError(t, err)
	assert.True(t, marked.Selected)
	assert.Equal(t, []uuid.UUID{stored.ID}, sink.selected)
	assert.Empty(t, c.Snapshot())

	_, err = c.MarkSelected(t.Context(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownResult)
}

func TestCollector_SinkLookupFailure(t *testing.T) {
	c := NewCollector(&recordingSink{err: errors.New("connection refused")}, nil)

	_, ok, err := c.Result(t.Context(), uuid.New())
	require.Error(t, err)
	assert.False(t, ok)

	_, err = c.MarkSelected(t.Context(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownResult)
}

func TestCollector_MarkSelectedIdempotent(t *testing.T) {
	c := NewCollector(nil, nil)
	r := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyBaseline, QualityScore: 50})

	for range 3 {
		got, err := c.MarkSelected(t.Context(), r.ID)
		require.NoError(t, err)
		assert.True(t, got.Selected)
	}
	assert.Equal(t, 1, c.Snapshot()[types.StrategyBaseline].Selected)
}

func TestCollector_MarkSelectedUnknown(t *testing.T) {
	c := NewCollector(nil, nil)
	_, err := c.MarkSelected(t.Context(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownResult)
}

func TestCollector_ForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, nil)

	r := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyEvidenceHeavy, QualityScore: 90})
	_, err := c.MarkSelected(t.Context(), r.ID)
	require.NoError(t, err)

	require.Len(t, sink.saved, 1)
	assert.Equal(t, r.ID, sink.saved[0].ID)
	assert.Equal(t, []uuid.UUID{r.ID}, sink.selected)
}

func TestCollector_SinkFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &recordingSink{err: errors.New("connection refused")}
	c := NewCollector(sink, zap.New(core))

	r := c.Record(t.Context(), types.ExperimentResult{Strategy: types.StrategyBaseline, QualityScore: 40})
	_, err := c.MarkSelected(t.Context(), r.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, 1, c.Snapshot()[types.StrategyBaseline].Count)
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(nil, nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(score float64) {
			defer wg.Done()
			c.Record(context.Background(), types.ExperimentResult{Strategy: types.StrategyBaseline, QualityScore: score})
		}(float64(i))
	}
	wg.Wait()

	s := c.Snapshot()[types.StrategyBaseline]
	assert.Equal(t, 50, s.Count)
	assert.InDelta(t, 24.5, s.MeanScore, 1e-9)
}
