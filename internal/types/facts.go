package types

// RawFacts is the unfiltered signal a fact collector produces for one subject.
// The fence reads it but never mutates it.
type RawFacts struct {
	SubjectID    string            `json:"subject_id"`
	Profile      ProfileFacts      `json:"profile"`
	Repositories []RepositoryFacts `json:"repositories,omitempty"`
	Skills       []string          `json:"skills,omitempty"`
}

// ProfileFacts holds profile-level signal. None of it may reach a
// repository-only prompt.
type ProfileFacts struct {
	DisplayName         string   `json:"display_name,omitempty"`
	Bio                 string   `json:"bio,omitempty"`
	Company             string   `json:"company,omitempty"`
	Location            string   `json:"location,omitempty"`
	Followers           int      `json:"followers,omitempty"`
	Following           int      `json:"following,omitempty"`
	PublicRepos         int      `json:"public_repos,omitempty"`
	StarredTechnologies []string `json:"starred_technologies,omitempty"`
	Organizations       []string `json:"organizations,omitempty"`
}

// RepositoryFacts holds signal scoped to a single repository.
type RepositoryFacts struct {
	Name           string             `json:"name"`
	FullName       string             `json:"full_name,omitempty"`
	URL            string             `json:"url,omitempty"`
	Description    string             `json:"description,omitempty"`
	Stars          int                `json:"stars,omitempty"`
	Forks          int                `json:"forks,omitempty"`
	Topics         []string           `json:"topics,omitempty"`
	Languages      []string           `json:"languages,omitempty"`
	Frameworks     []string           `json:"frameworks,omitempty"`
	Domains        []string           `json:"domains,omitempty"`
	CommitInsights *CommitInsights    `json:"commit_insights,omitempty"`
	Contribution   *ContributionStats `json:"contribution,omitempty"`
}

// CommitInsights summarizes commit history patterns.
type CommitInsights struct {
	TotalCommits int      `json:"total_commits,omitempty"`
	ActiveMonths int      `json:"active_months,omitempty"`
	Patterns     []string `json:"patterns,omitempty"`
	Themes       []string `json:"themes,omitempty"`
}

// Empty reports whether the insights carry no signal.
func (c *CommitInsights) Empty() bool {
	return c == nil || (c.TotalCommits == 0 && c.ActiveMonths == 0 && len(c.Patterns) == 0 && len(c.Themes) == 0)
}

// ContributionStats describes one subject's share of a repository.
type ContributionStats struct {
	Commits      int      `json:"commits,omitempty"`
	PullRequests int      `json:"pull_requests,omitempty"`
	Reviews      int      `json:"reviews,omitempty"`
	Areas        []string `json:"areas,omitempty"`
}

// Empty reports whether the stats carry no signal.
func (c *ContributionStats) Empty() bool {
	return c == nil || (c.Commits == 0 && c.PullRequests == 0 && c.Reviews == 0 && len(c.Areas) == 0)
}

// RepositoryRef is the repository metadata that a scoped bundle carries.
type RepositoryRef struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name,omitempty"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Stars       int      `json:"stars,omitempty"`
	Forks       int      `json:"forks,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

// DisplayName returns the most specific name available.
func (r RepositoryRef) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Name
}
