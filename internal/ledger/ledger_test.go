package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/recommendation-writer/internal/types"
)

func artifact(text string, include ...string) types.Artifact {
	opts := types.DefaultGenerationOptions()
	opts.IncludeKeywords = include
	return types.Artifact{Text: text, Options: opts, Mode: types.ModeProfile, ConfidenceScore: 70}
}

func TestLedger_AppendNumbersFromOne(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	ctx := t.Context()

	v1, err := l.Append(ctx, "alice", artifact("First."), types.ChangeGenerate, "")
	require.NoError(t, err)
	v2, err := l.Append(ctx, "alice", artifact("Second."), types.ChangeRefine, "tighten")
	require.NoError(t, err)
	other, err := l.Append(ctx, "bob", artifact("Other."), types.ChangeGenerate, "")
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, 1, other.Number)
	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, "tighten", v2.ChangeDescription)

	history, err := l.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "First.", history[0].Artifact.Text)
	assert.Equal(t, types.ChangeRefine, history[1].ChangeType)
}

func TestLedger_AppendRequiresSubject(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	_, err := l.Append(t.Context(), "", artifact("x"), types.ChangeGenerate, "")
	require.Error(t, err)
}

func TestLedger_ConcurrentAppendsHaveNoGaps(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(context.Background(), "alice", artifact(fmt.Sprintf("Text %d.", i)), types.ChangeGenerate, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := l.History(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, v := range history {
		assert.Equal(t, i+1, v.Number)
	}
	assert.Empty(t, l.locks)
}

func TestLedger_Revert(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	ctx := t.Context()

	_, err := l.Append(ctx, "alice", artifact("Original text.", "mentorship"), types.ChangeGenerate, "")
	require.NoError(t, err)
	_, err = l.Append(ctx, "alice", artifact("Refined text."), types.ChangeRefine, "")
	require.NoError(t, err)

	v3, err := l.Revert(ctx, "alice", 1, "")
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Number)
	assert.Equal(t, types.ChangeRevert, v3.ChangeType)
	require.NotNil(t, v3.RevertedFrom)
	assert.Equal(t, 1, *v3.RevertedFrom)
	assert.Equal(t, "Original text.", v3.Artifact.Text)
	assert.Equal(t, []string{"mentorship"}, v3.Artifact.Options.IncludeKeywords)
	assert.Equal(t, "Reverted to version 1", v3.ChangeDescription)

	v4, err := l.Revert(ctx, "alice", 2, "client preferred the refined text")
	require.NoError(t, err)
	assert.Equal(t, 4, v4.Number)
	assert.Equal(t, "client preferred the refined text", v4.ChangeDescription)

	// History keeps every version.
	history, err := l.History(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestLedger_RevertUnknownVersion(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	_, err := l.Append(t.Context(), "alice", artifact("Only."), types.ChangeGenerate, "")
	require.NoError(t, err)

	_, err = l.Revert(t.Context(), "alice", 7, "undo")
	var nf *VersionNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 7, nf.Number)

	history, err := l.History(t.Context(), "alice")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_Compare(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	ctx := t.Context()

	a := artifact("One two three.\n\nFour five.", "Go", "mentorship")
	a.Options.ExcludeKeywords = []string{"salary"}
	b := artifact("One two three four.\n\nFive six.\n\nSeven.", "go", "Kubernetes")
	b.Options.Tone = "friendly"
	b.Options.Length = types.TierLong
	b.ConfidenceScore = 82.5

	_, err := l.Append(ctx, "alice", a, types.ChangeGenerate, "")
	require.NoError(t, err)
	_, err = l.Append(ctx, "alice", b, types.ChangeRefine, "")
	require.NoError(t, err)

	diff, err := l.Compare(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, diff.From)
	assert.Equal(t, 2, diff.To)
	assert.Equal(t, 2, diff.WordCountDelta)
	assert.Equal(t, 1, diff.ParagraphDelta)
	assert.Equal(t, []string{"Kubernetes"}, diff.KeywordsAdded)
	assert.Equal(t, []string{"mentorship"}, diff.KeywordsRemoved)
	assert.Nil(t, diff.ExcludedAdded)
	assert.Equal(t, []string{"salary"}, diff.ExcludedRemoved)
	assert.True(t, diff.ToneChanged)
	assert.True(t, diff.LengthChanged)
	assert.InDelta(t, 12.5, diff.ScoreDelta, 1e-9)

	same, err := l.Compare(ctx, "alice", 2, 2)
	require.NoError(t, err)
	assert.Zero(t, same.WordCountDelta)
	assert.False(t, same.ToneChanged)

	_, err = l.Compare(ctx, "alice", 1, 9)
	var nf *VersionNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()
	require.NoError(t, s.Insert(ctx, types.Version{SubjectID: "alice", Number: 1, Artifact: artifact("Text.", "Go")}))

	got, err := s.Get(ctx, "alice", 1)
	require.NoError(t, err)
	got.Artifact.Options.IncludeKeywords[0] = "changed"

	again, err := s.Get(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "Go", again.Artifact.Options.IncludeKeywords[0])
}

func TestMemoryStore_RejectsGaps(t *testing.T) {
	s := NewMemoryStore()
	err := s.Insert(t.Context(), types.Version{SubjectID: "alice", Number: 2})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestLedger_Latest(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	_, err := l.Latest(t.Context(), "alice")
	var nf *VersionNotFoundError
	require.True(t, errors.As(err, &nf))

	_, err = l.Append(t.Context(), "alice", artifact("One."), types.ChangeGenerate, "")
	require.NoError(t, err)
	_, err = l.Append(t.Context(), "alice", artifact("Two."), types.ChangeRefine, "")
	require.NoError(t, err)

	v, err := l.Latest(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)
	assert.Equal(t, "Two.", v.Artifact.Text)
}

// racingStore lets another writer claim the next number before the first
// `races` inserts land.
type racingStore struct {
	*MemoryStore
	races   int
	inserts int
}

func (s *racingStore) Insert(ctx context.Context, v types.Version) error {
	s.inserts++
	if s.races > 0 {
		s.races--
		rival := v
		rival.ID = uuid.New()
		rival.Artifact = artifact("Written elsewhere.")
		if err := s.MemoryStore.Insert(ctx, rival); err != nil {
			return err
		}
	}
	return s.MemoryStore.Insert(ctx, v)
}

func TestLedger_AppendRetriesAfterConflict(t *testing.T) {
	store := &racingStore{MemoryStore: NewMemoryStore(), races: 1}
	l := New(store, nil)

	v, err := l.Append(t.Context(), "alice", artifact("Mine."), types.ChangeGenerate, "")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)
	assert.Equal(t, 2, store.inserts)

	history, err := l.History(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Written elsewhere.", history[0].Artifact.Text)
	assert.Equal(t, "Mine.", history[1].Artifact.Text)
}

func TestLedger_AppendGivesUpAfterSecondConflict(t *testing.T) {
	store := &racingStore{MemoryStore: NewMemoryStore(), races: 2}
	l := New(store, nil)

	_, err := l.Append(t.Context(), "alice", artifact("Mine."), types.ChangeGenerate, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 2, store.inserts)
}
