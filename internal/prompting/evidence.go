package prompting

import (
	"fmt"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/prompts"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// listLabels names the list-valued categories in the evidence section.
var listLabels = map[types.FactCategory]string{
	types.FactStarredTechnologies: "Technologies they follow",
	types.FactOrganizations:       "Organizations",
	types.FactRepositoryList:      "Repositories",
	types.FactSkills:              "Skills",
	types.FactLanguages:           "Languages",
	types.FactFrameworks:          "Frameworks",
	types.FactDomains:             "Domains",
}

// countLabels names the integer categories.
var countLabels = map[types.FactCategory]string{
	types.FactFollowers:       "Followers",
	types.FactFollowing:       "Following",
	types.FactPublicRepoCount: "Public repositories",
}

// EvidenceLines renders one line per populated category in canonical order.
// The subject id is carried by the opening and never repeated here.
func EvidenceLines(bundle *types.FactBundle) []string {
	if bundle == nil {
		return nil
	}

	var lines []string
	for _, category := range bundle.Categories() {
		if line := evidenceLine(bundle, category); line != "" {
			lines = append(lines, "- "+line)
		}
	}
	return lines
}

func evidenceLine(bundle *types.FactBundle, category types.FactCategory) string {
	if label, ok := listLabels[category]; ok {
		return label + ": " + strings.Join(bundle.Strings(category), ", ")
	}
	if label, ok := countLabels[category]; ok {
		return fmt.Sprintf("%s: %d", label, bundle.Int(category))
	}

	switch category {
	case types.FactDisplayName:
		return "Name: " + bundle.String(category)
	case types.FactBio:
		return "Bio: " + bundle.String(category)
	case types.FactCompany:
		return "Current employer (context only, never name it): " + bundle.String(category)
	case types.FactLocation:
		return "Location: " + bundle.String(category)
	case types.FactCommitInsights:
		ci, _ := bundle.CommitInsights()
		return "Commit history: " + describeInsights(ci)
	case types.FactTargetRepository:
		ref, _ := bundle.Repository()
		return "Repository: " + describeRepository(ref)
	case types.FactContributionStats:
		cs, _ := bundle.Contribution()
		return "Their contributions: " + describeContribution(cs)
	}
	return ""
}

func describeInsights(ci types.CommitInsights) string {
	var parts []string
	if ci.TotalCommits > 0 {
		if ci.ActiveMonths > 0 {
			parts = append(parts, fmt.Sprintf("%d commits across %d active months", ci.TotalCommits, ci.ActiveMonths))
		} else {
			parts = append(parts, fmt.Sprintf("%d commits", ci.TotalCommits))
		}
	} else if ci.ActiveMonths > 0 {
		parts = append(parts, fmt.Sprintf("active for %d months", ci.ActiveMonths))
	}
	if len(ci.Patterns) > 0 {
		parts = append(parts, "patterns: "+strings.Join(ci.Patterns, ", "))
	}
	if len(ci.Themes) > 0 {
		parts = append(parts, "themes: "+strings.Join(ci.Themes, ", "))
	}
	return strings.Join(parts, "; ")
}

func describeRepository(ref types.RepositoryRef) string {
	parts := []string{ref.DisplayName()}
	if ref.URL != "" {
		parts[0] += " (" + ref.URL + ")"
	}
	if ref.Description != "" {
		parts = append(parts, ref.Description)
	}
	if ref.Stars > 0 || ref.Forks > 0 {
		parts = append(parts, fmt.Sprintf("%d stars, %d forks", ref.Stars, ref.Forks))
	}
	if len(ref.Topics) > 0 {
		parts = append(parts, "topics: "+strings.Join(ref.Topics, ", "))
	}
	return strings.Join(parts, "; ")
}

func describeContribution(cs types.ContributionStats) string {
	var parts []string
	if cs.Commits > 0 || cs.PullRequests > 0 || cs.Reviews > 0 {
		parts = append(parts, fmt.Sprintf("%d commits, %d pull requests, %d reviews", cs.Commits, cs.PullRequests, cs.Reviews))
	}
	if len(cs.Areas) > 0 {
		parts = append(parts, "areas: "+strings.Join(cs.Areas, ", "))
	}
	return strings.Join(parts, "; ")
}

func evidenceSection(bundle *types.FactBundle) string {
	lines := EvidenceLines(bundle)

	var sb strings.Builder
	sb.WriteString(prompts.MustGet(prompts.GenerationFile, "evidence-header"))
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if bundle == nil || bundle.Populated() <= sparseThreshold {
		sb.WriteString(prompts.MustGet(prompts.GenerationFile, "evidence-sparse"))
	}
	return sb.String()
}
