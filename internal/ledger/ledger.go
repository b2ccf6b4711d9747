package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// Ledger appends, lists, compares and reverts versions. Appends for one
// subject are serialized so numbers run 1..N without gaps.
type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Ledger over store.
func New(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*subjectLock),
	}
}

func (l *Ledger) lock(subjectID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[subjectID]
	if !ok {
		sl = &subjectLock{}
		l.locks[subjectID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, subjectID)
		}
		l.mu.Unlock()
	}
}

// Append records artifact as the subject's next version.
func (l *Ledger) Append(ctx context.Context, subjectID string, artifact types.Artifact, change types.ChangeType, description string) (*types.Version, error) {
	if subjectID == "" {
		return nil, &Error{Message: "subject id is required"}
	}
	unlock := l.lock(subjectID)
	defer unlock()
	return l.appendLocked(ctx, subjectID, artifact, change, description, nil)
}

// appendLocked inserts the next version. Another process writing the same
// subject can still take the number first; the number is re-read and the
// insert retried once before the conflict is reported.
func (l *Ledger) appendLocked(ctx context.Context, subjectID string, artifact types.Artifact, change types.ChangeType, description string, revertedFrom *int) (*types.Version, error) {
	v := types.Version{
		SubjectID:         subjectID,
		Artifact:          cloneArtifact(artifact),
		ChangeType:        change,
		ChangeDescription: description,
		RevertedFrom:      revertedFrom,
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		latest, lerr := l.store.Latest(ctx, subjectID)
		if lerr != nil {
			return nil, &Error{Message: "failed to read latest version", Cause: lerr}
		}
		v.ID = uuid.New()
		v.Number = latest + 1
		v.CreatedAt = l.now().UTC()

		err = l.store.Insert(ctx, v)
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			break
		}
		l.logger.Warn("version number taken concurrently, retrying",
			zap.String("subject", subjectID),
			zap.Int("version", v.Number))
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, &Error{Message: fmt.Sprintf("version %d for %q was written concurrently", v.Number, subjectID), Cause: err}
		}
		return nil, &Error{Message: "failed to store version", Cause: err}
	}

	metrics.VersionsAppended.WithLabelValues(string(change)).Inc()
	l.logger.Debug("version appended",
		zap.String("subject", subjectID),
		zap.Int("version", v.Number),
		zap.String("change_type", string(change)))
	return &v, nil
}

// History returns every version for the subject in ascending order.
func (l *Ledger) History(ctx context.Context, subjectID string) ([]types.Version, error) {
	versions, err := l.store.List(ctx, subjectID)
	if err != nil {
		return nil, &Error{Message: "failed to list versions", Cause: err}
	}
	return versions, nil
}

// Get returns one version.
func (l *Ledger) Get(ctx context.Context, subjectID string, number int) (*types.Version, error) {
	v, err := l.store.Get(ctx, subjectID, number)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Latest returns the subject's newest version.
func (l *Ledger) Latest(ctx context.Context, subjectID string) (*types.Version, error) {
	n, err := l.store.Latest(ctx, subjectID)
	if err != nil {
		return nil, &Error{Message: "failed to read latest version", Cause: err}
	}
	if n == 0 {
		return nil, &VersionNotFoundError{SubjectID: subjectID}
	}
	return l.Get(ctx, subjectID, n)
}

// Revert appends a copy of version target as a new version. reason becomes
// the change description when set.
func (l *Ledger) Revert(ctx context.Context, subjectID string, target int, reason string) (*types.Version, error) {
	if subjectID == "" {
		return nil, &Error{Message: "subject id is required"}
	}
	unlock := l.lock(subjectID)
	defer unlock()

	v, err := l.store.Get(ctx, subjectID, target)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = fmt.Sprintf("Reverted to version %d", target)
	}
	from := target
	return l.appendLocked(ctx, subjectID, v.Artifact, types.ChangeRevert, reason, &from)
}

// Compare describes how version b differs from version a.
func (l *Ledger) Compare(ctx context.Context, subjectID string, a, b int) (*types.VersionDiff, error) {
	va, err := l.store.Get(ctx, subjectID, a)
	if err != nil {
		return nil, err
	}
	vb, err := l.store.Get(ctx, subjectID, b)
	if err != nil {
		return nil, err
	}
	diff := Diff(va, vb)
	return &diff, nil
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

func paragraphCount(text string) int {
	n := 0
	for _, p := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

// Diff compares two versions structurally.
func Diff(a, b types.Version) types.VersionDiff {
	oa, ob := a.Artifact.Options, b.Artifact.Options
	return types.VersionDiff{
		SubjectID:       b.SubjectID,
		From:            a.Number,
		To:              b.Number,
		WordCountDelta:  b.Artifact.WordCount() - a.Artifact.WordCount(),
		ParagraphDelta:  paragraphCount(b.Artifact.Text) - paragraphCount(a.Artifact.Text),
		KeywordsAdded:   difference(ob.IncludeKeywords, oa.IncludeKeywords),
		KeywordsRemoved: difference(oa.IncludeKeywords, ob.IncludeKeywords),
		ExcludedAdded:   difference(ob.ExcludeKeywords, oa.ExcludeKeywords),
		ExcludedRemoved: difference(oa.ExcludeKeywords, ob.ExcludeKeywords),
		ToneChanged:     !strings.EqualFold(oa.Tone, ob.Tone),
		LengthChanged:   oa.Length != ob.Length,
		ScoreDelta:      b.Artifact.ConfidenceScore - a.Artifact.ConfidenceScore,
	}
}

// difference returns the entries of a absent from b, case-insensitively.
func difference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[strings.ToLower(s)] = true
	}
	var out []string
	for _, s := range a {
		if !seen[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}
