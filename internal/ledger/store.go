package ledger

import (
	"context"
	"slices"
	"sync"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// Store persists versions. Implementations need not serialize appends; the
// Ledger does that per subject.
type Store interface {
	// Latest returns the highest version number for subjectID, or 0.
	Latest(ctx context.Context, subjectID string) (int, error)
	// Insert stores v. It returns ErrVersionConflict if v.Number is taken.
	Insert(ctx context.Context, v types.Version) error
	// Get returns one version or a *VersionNotFoundError.
	Get(ctx context.Context, subjectID string, number int) (types.Version, error)
	// List returns every version for subjectID in ascending order.
	List(ctx context.Context, subjectID string) ([]types.Version, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]types.Version
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]types.Version)}
}

// Latest implements Store.
func (m *MemoryStore) Latest(_ context.Context, subjectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.versions[subjectID]), nil
}

// Insert implements Store. Numbers must be contiguous.
func (m *MemoryStore) Insert(_ context.Context, v types.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Number != len(m.versions[v.SubjectID])+1 {
		return ErrVersionConflict
	}
	m.versions[v.SubjectID] = append(m.versions[v.SubjectID], cloneVersion(v))
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, subjectID string, number int) (types.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[subjectID]
	if number < 1 || number > len(list) {
		return types.Version{}, &VersionNotFoundError{SubjectID: subjectID, Number: number}
	}
	return cloneVersion(list[number-1]), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, subjectID string) ([]types.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[subjectID]
	out := make([]types.Version, len(list))
	for i, v := range list {
		out[i] = cloneVersion(v)
	}
	return out, nil
}

func cloneVersion(v types.Version) types.Version {
	v.Artifact = cloneArtifact(v.Artifact)
	if v.RevertedFrom != nil {
		n := *v.RevertedFrom
		v.RevertedFrom = &n
	}
	return v
}

func cloneArtifact(a types.Artifact) types.Artifact {
	a.Options.IncludeKeywords = slices.Clone(a.Options.IncludeKeywords)
	a.Options.ExcludeKeywords = slices.Clone(a.Options.ExcludeKeywords)
	a.Options.SpecificSkills = slices.Clone(a.Options.SpecificSkills)
	a.Compliance.Included = slices.Clone(a.Compliance.Included)
	a.Compliance.Missing = slices.Clone(a.Compliance.Missing)
	a.Compliance.Avoided = slices.Clone(a.Compliance.Avoided)
	a.Compliance.Violated = slices.Clone(a.Compliance.Violated)
	return a
}
