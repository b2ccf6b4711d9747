package fence

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/jonathan/recommendation-writer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRawFacts() *types.RawFacts {
	return &types.RawFacts{
		SubjectID: "alice",
		Profile: types.ProfileFacts{
			DisplayName:         "Alice Smith",
			Bio:                 "Backend engineer who loves compilers",
			Company:             "Initech",
			Location:            "Berlin",
			Followers:           120,
			Following:           12,
			PublicRepos:         34,
			StarredTechnologies: []string{"Rust", "Zig"},
			Organizations:       []string{"golang-meetup"},
		},
		Skills: []string{"API design", "Observability"},
		Repositories: []types.RepositoryFacts{
			{
				Name:        "ledger",
				FullName:    "alice/ledger",
				URL:         "https://github.com/alice/ledger",
				Description: "Double-entry accounting service",
				Stars:       42,
				Languages:   []string{"Go", "SQL"},
				Frameworks:  []string{"pgx"},
				Domains:     []string{"fintech"},
				CommitInsights: &types.CommitInsights{
					TotalCommits: 310,
					ActiveMonths: 14,
					Patterns:     []string{"test-driven"},
				},
				Contribution: &types.ContributionStats{Commits: 280, PullRequests: 40},
			},
			{
				Name:       "webapp",
				FullName:   "alice/webapp",
				Languages:  []string{"Python", "go"},
				Frameworks: []string{"Django"},
				Domains:    []string{"e-commerce"},
				CommitInsights: &types.CommitInsights{
					TotalCommits: 90,
					ActiveMonths: 6,
					Themes:       []string{"performance"},
				},
			},
		},
	}
}

func TestApply_ProfileUnionsRepositories(t *testing.T) {
	bundle, err := Apply(sampleRawFacts(), types.ModeProfile, "alice", "")
	require.NoError(t, err)

	assert.Equal(t, types.ModeProfile, bundle.Mode())
	assert.Equal(t, "Alice Smith", bundle.String(types.FactDisplayName))
	assert.Equal(t, "Initech", bundle.String(types.FactCompany))
	assert.Equal(t, []string{"Go", "SQL", "Python"}, bundle.Strings(types.FactLanguages))
	assert.Equal(t, []string{"pgx", "Django"}, bundle.Strings(types.FactFrameworks))
	assert.Equal(t, []string{"alice/ledger", "alice/webapp"}, bundle.Strings(types.FactRepositoryList))

	insights, ok := bundle.CommitInsights()
	require.True(t, ok)
	assert.Equal(t, 400, insights.TotalCommits)
	assert.Equal(t, 14, insights.ActiveMonths)
	assert.ElementsMatch(t, []string{"test-driven"}, insights.Patterns)

	assert.False(t, bundle.Has(types.FactTargetRepository))
	assert.False(t, bundle.Has(types.FactContributionStats))
}

func TestApply_RepositoryOnlyExcludesProfile(t *testing.T) {
	bundle, err := Apply(sampleRawFacts(), types.ModeRepositoryOnly, "alice", "alice/webapp")
	require.NoError(t, err)

	assert.Equal(t, "alice", bundle.SubjectID())
	for _, category := range ForbiddenCategories(types.ModeRepositoryOnly) {
		assert.False(t, bundle.Has(category), "category %s leaked", category)
	}

	repo, ok := bundle.Repository()
	require.True(t, ok)
	assert.Equal(t, "alice/webapp", repo.FullName)

	// Technical facts come from the target repository only.
	assert.Equal(t, []string{"Python", "go"}, bundle.Strings(types.FactLanguages))
	assert.Equal(t, []string{"Django"}, bundle.Strings(types.FactFrameworks))
	assert.NotContains(t, bundle.Strings(types.FactFrameworks), "pgx")

	insights, ok := bundle.CommitInsights()
	require.True(t, ok)
	assert.Equal(t, 90, insights.TotalCommits)
}

func TestApply_RepositoryOnlyMatchesURL(t *testing.T) {
	bundle, err := Apply(sampleRawFacts(), types.ModeRepositoryOnly, "alice", "https://github.com/Alice/Ledger/")
	require.NoError(t, err)

	repo, ok := bundle.Repository()
	require.True(t, ok)
	assert.Equal(t, "alice/ledger", repo.FullName)
}

func TestApply_RepositoryOnlyMissingRef(t *testing.T) {
	_, err := Apply(sampleRawFacts(), types.ModeRepositoryOnly, "alice", "")
	var notFound *RepositoryNotFoundError
	require.True(t, errors.As(err, &notFound))

	_, err = Apply(sampleRawFacts(), types.ModeRepositoryOnly, "alice", "alice/unknown")
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "alice/unknown", notFound.RepoRef)
}

func TestApply_RepositoryContributorKeepsBoth(t *testing.T) {
	bundle, err := Apply(sampleRawFacts(), types.ModeRepositoryContributor, "alice", "ledger")
	require.NoError(t, err)

	assert.Equal(t, "Backend engineer who loves compilers", bundle.String(types.FactBio))
	assert.Equal(t, []string{"Go", "SQL"}, bundle.Strings(types.FactLanguages))

	stats, ok := bundle.Contribution()
	require.True(t, ok)
	assert.Equal(t, 280, stats.Commits)
}

func TestApply_SubjectMismatch(t *testing.T) {
	_, err := Apply(sampleRawFacts(), types.ModeProfile, "bob", "")
	require.Error(t, err)
}

func TestApply_DoesNotMutateRawFacts(t *testing.T) {
	raw := sampleRawFacts()
	before := fmt.Sprintf("%+v", *raw)

	_, err := Apply(raw, types.ModeRepositoryContributor, "alice", "alice/ledger")
	require.NoError(t, err)

	assert.Equal(t, before, fmt.Sprintf("%+v", *raw))
}

func TestApply_SparseRepository(t *testing.T) {
	raw := &types.RawFacts{
		SubjectID:    "carol",
		Repositories: []types.RepositoryFacts{{Name: "fresh", FullName: "carol/fresh"}},
	}

	bundle, err := Apply(raw, types.ModeRepositoryOnly, "carol", "carol/fresh")
	require.NoError(t, err)
	assert.Equal(t, []types.FactCategory{types.FactSubjectID, types.FactTargetRepository}, bundle.Categories())
}

func TestVerify_DetectsLeak(t *testing.T) {
	bundle, err := types.NewFactBundle(types.ModeRepositoryOnly, "alice", map[types.FactCategory]any{
		types.FactLanguages: []string{"Go"},
		types.FactCompany:   "Initech",
		types.FactFollowers: 10,
	})
	require.NoError(t, err)

	err = Verify(bundle)
	var violation *IsolationViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, types.ModeRepositoryOnly, violation.Mode)
	assert.ElementsMatch(t, []types.FactCategory{types.FactCompany, types.FactFollowers}, violation.Categories)
}

func TestVerify_IgnoresEmptyValues(t *testing.T) {
	bundle, err := types.NewFactBundle(types.ModeRepositoryOnly, "alice", map[types.FactCategory]any{
		types.FactCompany:   "",
		types.FactFollowers: 0,
		types.FactLanguages: []string{"Go"},
	})
	require.NoError(t, err)
	assert.NoError(t, Verify(bundle))
}

func TestVerify_ProfileForbidsRepositoryScope(t *testing.T) {
	bundle, err := types.NewFactBundle(types.ModeProfile, "alice", map[types.FactCategory]any{
		types.FactTargetRepository: types.RepositoryRef{Name: "ledger"},
	})
	require.NoError(t, err)

	var violation *IsolationViolationError
	assert.True(t, errors.As(Verify(bundle), &violation))
}

// TestApply_RepositoryOnlyNeverLeaks fences randomized raw facts and checks
// that no forbidden category survives.
func TestApply_RepositoryOnlyNeverLeaks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"Go", "Rust", "Berlin", "Initech", "kubernetes", "", "  ", "Django"}
	pick := func() string { return words[rng.Intn(len(words))] }
	pickList := func() []string {
		n := rng.Intn(4)
		out := make([]string, n)
		for i := range out {
			out[i] = pick()
		}
		return out
	}

	for i := 0; i < 200; i++ {
		raw := &types.RawFacts{
			SubjectID: "alice",
			Profile: types.ProfileFacts{
				DisplayName:         pick(),
				Bio:                 pick(),
				Company:             pick(),
				Location:            pick(),
				Followers:           rng.Intn(3),
				Following:           rng.Intn(3),
				PublicRepos:         rng.Intn(3),
				StarredTechnologies: pickList(),
				Organizations:       pickList(),
			},
			Skills: pickList(),
		}
		repoCount := 1 + rng.Intn(3)
		for r := 0; r < repoCount; r++ {
			raw.Repositories = append(raw.Repositories, types.RepositoryFacts{
				Name:       fmt.Sprintf("repo-%d", r),
				FullName:   fmt.Sprintf("alice/repo-%d", r),
				Languages:  pickList(),
				Frameworks: pickList(),
			})
		}

		target := fmt.Sprintf("alice/repo-%d", rng.Intn(repoCount))
		bundle, err := Apply(raw, types.ModeRepositoryOnly, "alice", target)
		require.NoError(t, err)

		for _, category := range ForbiddenCategories(types.ModeRepositoryOnly) {
			assert.False(t, bundle.Has(category), "iteration %d leaked %s", i, category)
		}
	}
}
