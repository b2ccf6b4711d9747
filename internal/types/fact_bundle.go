package types

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FactCategory names a single kind of fact in a bundle.
type FactCategory string

// Fact categories. Profile-level categories come first, then technical ones,
// then repository-scoped ones.
const (
	FactSubjectID           FactCategory = "subject_id"
	FactDisplayName         FactCategory = "display_name"
	FactBio                 FactCategory = "bio"
	FactCompany             FactCategory = "company"
	FactLocation            FactCategory = "location"
	FactFollowers           FactCategory = "followers"
	FactFollowing           FactCategory = "following"
	FactPublicRepoCount     FactCategory = "public_repos"
	FactStarredTechnologies FactCategory = "starred_technologies"
	FactOrganizations       FactCategory = "organizations"
	FactRepositoryList      FactCategory = "repositories"
	FactSkills              FactCategory = "skills"
	FactLanguages           FactCategory = "languages"
	FactFrameworks          FactCategory = "frameworks"
	FactDomains             FactCategory = "domains"
	FactCommitInsights      FactCategory = "commit_insights"
	FactTargetRepository    FactCategory = "target_repository"
	FactContributionStats   FactCategory = "contribution_stats"
)

// FactCategories returns every category in its canonical order.
func FactCategories() []FactCategory {
	return []FactCategory{
		FactSubjectID, FactDisplayName, FactBio, FactCompany, FactLocation,
		FactFollowers, FactFollowing, FactPublicRepoCount, FactStarredTechnologies,
		FactOrganizations, FactRepositoryList, FactSkills, FactLanguages,
		FactFrameworks, FactDomains, FactCommitInsights, FactTargetRepository,
		FactContributionStats,
	}
}

type factKind int

const (
	kindString factKind = iota
	kindInt
	kindList
	kindRepository
	kindCommitInsights
	kindContribution
)

func (c FactCategory) kind() (factKind, bool) {
	switch c {
	case FactSubjectID, FactDisplayName, FactBio, FactCompany, FactLocation:
		return kindString, true
	case FactFollowers, FactFollowing, FactPublicRepoCount:
		return kindInt, true
	case FactStarredTechnologies, FactOrganizations, FactRepositoryList, FactSkills,
		FactLanguages, FactFrameworks, FactDomains:
		return kindList, true
	case FactTargetRepository:
		return kindRepository, true
	case FactCommitInsights:
		return kindCommitInsights, true
	case FactContributionStats:
		return kindContribution, true
	}
	return 0, false
}

// FactBundle is the filtered, mode-tagged set of facts a prompt may use.
// It is immutable once built: constructors copy their input and accessors
// return copies.
type FactBundle struct {
	mode      AnalysisMode
	subjectID string
	facts     map[FactCategory]any
}

// NewFactBundle builds a bundle from category values. Values must match the
// category kind (string, int, []string, RepositoryRef, CommitInsights or
// ContributionStats). Empty values are dropped.
func NewFactBundle(mode AnalysisMode, subjectID string, values map[FactCategory]any) (*FactBundle, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid analysis mode %d", int(mode))
	}
	b := &FactBundle{
		mode:      mode,
		subjectID: subjectID,
		facts:     make(map[FactCategory]any, len(values)),
	}
	for category, value := range values {
		copied, err := copyFact(category, value)
		if err != nil {
			return nil, err
		}
		if isEmptyFact(copied) {
			continue
		}
		b.facts[category] = copied
	}
	if subjectID != "" {
		b.facts[FactSubjectID] = subjectID
	}
	return b, nil
}

func copyFact(category FactCategory, value any) (any, error) {
	kind, ok := category.kind()
	if !ok {
		return nil, fmt.Errorf("unknown fact category %q", category)
	}
	switch v := value.(type) {
	case string:
		if kind == kindString {
			return v, nil
		}
	case int:
		if kind == kindInt {
			return v, nil
		}
	case []string:
		if kind == kindList {
			return slices.Clone(v), nil
		}
	case RepositoryRef:
		if kind == kindRepository {
			v.Topics = slices.Clone(v.Topics)
			return v, nil
		}
	case CommitInsights:
		if kind == kindCommitInsights {
			v.Patterns = slices.Clone(v.Patterns)
			v.Themes = slices.Clone(v.Themes)
			return v, nil
		}
	case ContributionStats:
		if kind == kindContribution {
			v.Areas = slices.Clone(v.Areas)
			return v, nil
		}
	}
	return nil, fmt.Errorf("fact %q has unexpected value type %T", category, value)
}

func isEmptyFact(value any) bool {
	switch v := value.(type) {
	case string:
		return v == ""
	case int:
		return v == 0
	case []string:
		return len(v) == 0
	case RepositoryRef:
		return v.Name == "" && v.FullName == "" && v.URL == ""
	case CommitInsights:
		return v.Empty()
	case ContributionStats:
		return v.Empty()
	}
	return value == nil
}

// Mode returns the analysis mode the bundle was fenced for.
func (b *FactBundle) Mode() AnalysisMode { return b.mode }

// SubjectID returns the subject the bundle describes.
func (b *FactBundle) SubjectID() string { return b.subjectID }

// Has reports whether the category carries a non-empty value.
func (b *FactBundle) Has(category FactCategory) bool {
	if b == nil {
		return false
	}
	_, ok := b.facts[category]
	return ok
}

// Get returns a copy of the raw value for a category.
func (b *FactBundle) Get(category FactCategory) (any, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.facts[category]
	if !ok {
		return nil, false
	}
	copied, err := copyFact(category, v)
	if err != nil {
		return nil, false
	}
	return copied, true
}

// String returns a string fact, or "" when absent.
func (b *FactBundle) String(category FactCategory) string {
	if v, ok := b.Get(category); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns an integer fact, or 0 when absent.
func (b *FactBundle) Int(category FactCategory) int {
	if v, ok := b.Get(category); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

// Strings returns a list fact, or nil when absent.
func (b *FactBundle) Strings(category FactCategory) []string {
	if v, ok := b.Get(category); ok {
		if list, ok := v.([]string); ok {
			return list
		}
	}
	return nil
}

// Repository returns the target repository, if the bundle is scoped to one.
func (b *FactBundle) Repository() (RepositoryRef, bool) {
	if v, ok := b.Get(FactTargetRepository); ok {
		if ref, ok := v.(RepositoryRef); ok {
			return ref, true
		}
	}
	return RepositoryRef{}, false
}

// CommitInsights returns the commit insights, if any.
func (b *FactBundle) CommitInsights() (CommitInsights, bool) {
	if v, ok := b.Get(FactCommitInsights); ok {
		if ci, ok := v.(CommitInsights); ok {
			return ci, true
		}
	}
	return CommitInsights{}, false
}

// Contribution returns the contribution stats, if any.
func (b *FactBundle) Contribution() (ContributionStats, bool) {
	if v, ok := b.Get(FactContributionStats); ok {
		if cs, ok := v.(ContributionStats); ok {
			return cs, true
		}
	}
	return ContributionStats{}, false
}

// Categories returns the populated categories in canonical order.
func (b *FactBundle) Categories() []FactCategory {
	if b == nil {
		return nil
	}
	out := make([]FactCategory, 0, len(b.facts))
	for _, c := range FactCategories() {
		if _, ok := b.facts[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Populated returns the number of populated categories, excluding the
// subject id which every bundle carries.
func (b *FactBundle) Populated() int {
	n := 0
	for _, c := range b.Categories() {
		if c != FactSubjectID {
			n++
		}
	}
	return n
}

// TechnicalTerms returns languages, frameworks and domains in one list.
func (b *FactBundle) TechnicalTerms() []string {
	var terms []string
	terms = append(terms, b.Strings(FactLanguages)...)
	terms = append(terms, b.Strings(FactFrameworks)...)
	terms = append(terms, b.Strings(FactDomains)...)
	return terms
}

type factBundleJSON struct {
	Mode      AnalysisMode                     `json:"mode"`
	SubjectID string                           `json:"subject_id"`
	Facts     map[FactCategory]json.RawMessage `json:"facts"`
}

// MarshalJSON implements json.Marshaler.
func (b *FactBundle) MarshalJSON() ([]byte, error) {
	out := factBundleJSON{
		Mode:      b.mode,
		SubjectID: b.subjectID,
		Facts:     make(map[FactCategory]json.RawMessage, len(b.facts)),
	}
	for category, value := range b.facts {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fact %s: %w", category, err)
		}
		out.Facts[category] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *FactBundle) UnmarshalJSON(data []byte) error {
	var in factBundleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	values := make(map[FactCategory]any, len(in.Facts))
	for category, raw := range in.Facts {
		kind, ok := category.kind()
		if !ok {
			return fmt.Errorf("unknown fact category %q", category)
		}
		var (
			value any
			err   error
		)
		switch kind {
		case kindString:
			var s string
			err = json.Unmarshal(raw, &s)
			value = s
		case kindInt:
			var n int
			err = json.Unmarshal(raw, &n)
			value = n
		case kindList:
			var list []string
			err = json.Unmarshal(raw, &list)
			value = list
		case kindRepository:
			var ref RepositoryRef
			err = json.Unmarshal(raw, &ref)
			value = ref
		case kindCommitInsights:
			var ci CommitInsights
			err = json.Unmarshal(raw, &ci)
			value = ci
		case kindContribution:
			var cs ContributionStats
			err = json.Unmarshal(raw, &cs)
			value = cs
		}
		if err != nil {
			return fmt.Errorf("failed to unmarshal fact %s: %w", category, err)
		}
		values[category] = value
	}
	built, err := NewFactBundle(in.Mode, in.SubjectID, values)
	if err != nil {
		return err
	}
	*b = *built
	return nil
}
