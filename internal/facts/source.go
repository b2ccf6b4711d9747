package facts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// Source supplies raw facts for a subject. The fence only reads them.
type Source interface {
	Load(ctx context.Context, subjectID string) (*types.RawFacts, error)
}

// NotFoundError is returned when a source has no facts for a subject.
type NotFoundError struct {
	SubjectID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no facts for subject %q", e.SubjectID)
}

var subjectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

// ValidSubjectID reports whether id is safe to use as a file name and key.
func ValidSubjectID(id string) bool {
	return subjectPattern.MatchString(id) && id != "." && id != ".."
}

// FileSource reads <dir>/<subject>.json.
type FileSource struct {
	dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context, subjectID string) (*types.RawFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSubjectID(subjectID) {
		return nil, fmt.Errorf("invalid subject id %q", subjectID)
	}

	path := filepath.Join(s.dir, subjectID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{SubjectID: subjectID}
		}
		return nil, fmt.Errorf("failed to read facts file %s: %w", path, err)
	}

	raw, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("facts file %s: %w", path, err)
	}
	if raw.SubjectID != subjectID {
		return nil, fmt.Errorf("facts file %s describes subject %q, not %q", path, raw.SubjectID, subjectID)
	}
	return raw, nil
}

// StaticSource serves facts from memory. It is used by tests and for
// facts supplied inline with a request.
type StaticSource struct {
	mu    sync.RWMutex
	facts map[string]*types.RawFacts
}

// NewStaticSource creates a source holding the given fact sets, keyed by
// their subject id.
func NewStaticSource(sets ...*types.RawFacts) *StaticSource {
	s := &StaticSource{facts: make(map[string]*types.RawFacts, len(sets))}
	for _, raw := range sets {
		s.Put(raw)
	}
	return s
}

// Put adds or replaces a fact set.
func (s *StaticSource) Put(raw *types.RawFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[raw.SubjectID] = raw
}

// Load implements Source.
func (s *StaticSource) Load(ctx context.Context, subjectID string) (*types.RawFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.facts[subjectID]
	if !ok {
		return nil, &NotFoundError{SubjectID: subjectID}
	}
	return raw, nil
}
