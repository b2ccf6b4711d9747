package fence

import (
	"fmt"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// profileOnlyCategories may never appear in a repository-only bundle.
var profileOnlyCategories = []types.FactCategory{
	types.FactDisplayName,
	types.FactBio,
	types.FactCompany,
	types.FactLocation,
	types.FactFollowers,
	types.FactFollowing,
	types.FactPublicRepoCount,
	types.FactStarredTechnologies,
	types.FactOrganizations,
	types.FactRepositoryList,
	types.FactSkills,
}

// repositoryScopedCategories may never appear in a profile bundle.
var repositoryScopedCategories = []types.FactCategory{
	types.FactTargetRepository,
	types.FactContributionStats,
}

// ForbiddenCategories returns the categories a mode must not carry.
func ForbiddenCategories(mode types.AnalysisMode) []types.FactCategory {
	switch mode {
	case types.ModeProfile:
		return append([]types.FactCategory(nil), repositoryScopedCategories...)
	case types.ModeRepositoryOnly:
		return append([]types.FactCategory(nil), profileOnlyCategories...)
	case types.ModeRepositoryContributor:
		return nil
	}
	return nil
}

// Apply fences raw facts for a mode and runs the isolation self-check on the
// result. repoRef is required for repository-scoped modes and matched
// against the repository full name, name or URL.
func Apply(raw *types.RawFacts, mode types.AnalysisMode, subjectID, repoRef string) (*types.FactBundle, error) {
	if raw == nil {
		return nil, &Error{Message: "raw facts are required"}
	}
	if subjectID == "" {
		return nil, &Error{Message: "subject id is required"}
	}
	if raw.SubjectID != "" && !strings.EqualFold(raw.SubjectID, subjectID) {
		return nil, &Error{Message: fmt.Sprintf("facts belong to %s, not %s", raw.SubjectID, subjectID)}
	}

	var values map[types.FactCategory]any
	switch mode {
	case types.ModeProfile:
		values = profileValues(raw)
	case types.ModeRepositoryOnly:
		repo, err := findRepository(raw, subjectID, repoRef)
		if err != nil {
			return nil, err
		}
		values = repositoryValues(repo)
	case types.ModeRepositoryContributor:
		repo, err := findRepository(raw, subjectID, repoRef)
		if err != nil {
			return nil, err
		}
		values = profileIdentity(raw)
		for k, v := range repositoryValues(repo) {
			values[k] = v
		}
		if repo.Contribution != nil {
			values[types.FactContributionStats] = *repo.Contribution
		}
	default:
		return nil, &Error{Message: fmt.Sprintf("unsupported analysis mode %s", mode)}
	}

	bundle, err := types.NewFactBundle(mode, subjectID, values)
	if err != nil {
		return nil, &Error{Message: "failed to build fact bundle", Cause: err}
	}
	if err := Verify(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Verify scans a bundle for categories its mode forbids. Any forbidden key
// with a non-empty value fails with *IsolationViolationError.
func Verify(bundle *types.FactBundle) error {
	if bundle == nil {
		return &Error{Message: "bundle is nil"}
	}
	var leaked []types.FactCategory
	for _, category := range ForbiddenCategories(bundle.Mode()) {
		if bundle.Has(category) {
			leaked = append(leaked, category)
		}
	}
	if len(leaked) > 0 {
		return &IsolationViolationError{Mode: bundle.Mode(), Categories: leaked}
	}
	return nil
}

// profileIdentity returns the profile-category facts plus aggregate skills
// and the cross-repository name list.
func profileIdentity(raw *types.RawFacts) map[types.FactCategory]any {
	p := raw.Profile
	values := map[types.FactCategory]any{
		types.FactDisplayName:         clean(p.DisplayName),
		types.FactBio:                 clean(p.Bio),
		types.FactCompany:             clean(p.Company),
		types.FactLocation:            clean(p.Location),
		types.FactFollowers:           p.Followers,
		types.FactFollowing:           p.Following,
		types.FactPublicRepoCount:     p.PublicRepos,
		types.FactStarredTechnologies: dedupe(p.StarredTechnologies),
		types.FactOrganizations:       dedupe(p.Organizations),
		types.FactSkills:              dedupe(raw.Skills),
	}
	names := make([]string, 0, len(raw.Repositories))
	for _, repo := range raw.Repositories {
		names = append(names, repoName(repo))
	}
	values[types.FactRepositoryList] = dedupe(names)
	return values
}

// profileValues unions technical facts across every repository.
func profileValues(raw *types.RawFacts) map[types.FactCategory]any {
	values := profileIdentity(raw)

	var languages, frameworks, domains []string
	var insights types.CommitInsights
	for _, repo := range raw.Repositories {
		languages = append(languages, repo.Languages...)
		frameworks = append(frameworks, repo.Frameworks...)
		domains = append(domains, repo.Domains...)
		if repo.CommitInsights != nil {
			insights = mergeInsights(insights, *repo.CommitInsights)
		}
	}
	values[types.FactLanguages] = dedupe(languages)
	values[types.FactFrameworks] = dedupe(frameworks)
	values[types.FactDomains] = dedupe(domains)
	values[types.FactCommitInsights] = insights
	return values
}

// repositoryValues returns facts taken only from the target repository.
func repositoryValues(repo *types.RepositoryFacts) map[types.FactCategory]any {
	values := map[types.FactCategory]any{
		types.FactTargetRepository: types.RepositoryRef{
			Name:        clean(repo.Name),
			FullName:    clean(repo.FullName),
			URL:         clean(repo.URL),
			Description: clean(repo.Description),
			Stars:       repo.Stars,
			Forks:       repo.Forks,
			Topics:      dedupe(repo.Topics),
		},
		types.FactLanguages:  dedupe(repo.Languages),
		types.FactFrameworks: dedupe(repo.Frameworks),
		types.FactDomains:    dedupe(repo.Domains),
	}
	if repo.CommitInsights != nil {
		values[types.FactCommitInsights] = mergeInsights(types.CommitInsights{}, *repo.CommitInsights)
	}
	return values
}

// findRepository resolves repoRef against the subject's repositories.
func findRepository(raw *types.RawFacts, subjectID, repoRef string) (*types.RepositoryFacts, error) {
	ref := normalizeRef(repoRef)
	if ref == "" {
		return nil, &RepositoryNotFoundError{SubjectID: subjectID}
	}
	for i := range raw.Repositories {
		repo := &raw.Repositories[i]
		for _, candidate := range []string{repo.FullName, repo.Name, repo.URL} {
			if candidate != "" && normalizeRef(candidate) == ref {
				return repo, nil
			}
		}
	}
	return nil, &RepositoryNotFoundError{SubjectID: subjectID, RepoRef: repoRef}
}

func normalizeRef(ref string) string {
	ref = strings.ToLower(strings.TrimSpace(ref))
	ref = strings.TrimSuffix(ref, ".git")
	ref = strings.TrimSuffix(ref, "/")
	for _, prefix := range []string{"https://", "http://"} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	return strings.TrimPrefix(ref, "github.com/")
}

func repoName(repo types.RepositoryFacts) string {
	if repo.FullName != "" {
		return clean(repo.FullName)
	}
	return clean(repo.Name)
}

func mergeInsights(a, b types.CommitInsights) types.CommitInsights {
	return types.CommitInsights{
		TotalCommits: a.TotalCommits + b.TotalCommits,
		ActiveMonths: max(a.ActiveMonths, b.ActiveMonths),
		Patterns:     dedupe(append(append([]string(nil), a.Patterns...), b.Patterns...)),
		Themes:       dedupe(append(append([]string(nil), a.Themes...), b.Themes...)),
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe cleans entries and drops case-insensitive duplicates, keeping the
// first spelling seen.
func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, item := range list {
		item = clean(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
