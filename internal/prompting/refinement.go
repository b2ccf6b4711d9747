package prompting

import (
	"fmt"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/prompts"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// RefinementInput holds what a refinement prompt embeds.
type RefinementInput struct {
	Original        string
	Instructions    string
	IncludeKeywords []string
	ExcludeKeywords []string
	// Bundle is optional; when present its technical terms are offered as
	// additional evidence and a repository-only bundle adds the scope guard.
	Bundle *types.FactBundle
	// Mode and RepositoryRef are the stored artifact's scope. They rebuild
	// the guard when Bundle is nil.
	Mode          types.AnalysisMode
	RepositoryRef string
}

// BuildRefinement produces a prompt that revises Original in place.
func BuildRefinement(in RefinementInput) string {
	var sb strings.Builder
	sb.WriteString(prompts.Render(prompts.RefinementFile, "refine-intro", map[string]string{
		"Original": strings.TrimSpace(in.Original),
	}))
	if in.Instructions != "" {
		sb.WriteString(prompts.Render(prompts.RefinementFile, "refine-instructions", map[string]string{
			"Instructions": in.Instructions,
		}))
	}
	sb.WriteString(keywordClauses(in.IncludeKeywords, in.ExcludeKeywords))
	writeEvidence(&sb, in.Bundle)
	sb.WriteString(storedScopeGuard(in.Bundle, in.Mode, in.RepositoryRef))
	sb.WriteString(prompts.MustGet(prompts.RefinementFile, "refine-closing"))
	return sb.String()
}

// RegenerationInput holds what a regeneration prompt embeds. Tone and
// Length are optional overrides.
type RegenerationInput struct {
	Original        string
	Instructions    string
	Tone            string
	Length          types.LengthTier
	IncludeKeywords []string
	ExcludeKeywords []string
	Bundle          *types.FactBundle
	Mode            types.AnalysisMode
	RepositoryRef   string
}

// BuildRegeneration produces a prompt that rewrites Original with a fresh
// structure, optionally under a new tone or length.
func BuildRegeneration(in RegenerationInput) string {
	var sb strings.Builder
	sb.WriteString(prompts.Render(prompts.RefinementFile, "regenerate-intro", map[string]string{
		"Original": strings.TrimSpace(in.Original),
	}))
	if in.Instructions != "" {
		sb.WriteString(prompts.Render(prompts.RefinementFile, "refine-instructions", map[string]string{
			"Instructions": in.Instructions,
		}))
	}
	if in.Tone != "" {
		sb.WriteString(prompts.Render(prompts.RefinementFile, "refine-tone", map[string]string{
			"Tone": in.Tone,
		}))
	}
	if in.Length != "" {
		sb.WriteString(LengthGuidance(in.Length))
	}
	sb.WriteString(keywordClauses(in.IncludeKeywords, in.ExcludeKeywords))
	writeEvidence(&sb, in.Bundle)
	sb.WriteString(storedScopeGuard(in.Bundle, in.Mode, in.RepositoryRef))
	sb.WriteString(prompts.MustGet(prompts.RefinementFile, "refine-closing"))
	return sb.String()
}

func writeEvidence(sb *strings.Builder, bundle *types.FactBundle) {
	if bundle == nil {
		return
	}
	if evidence := refinementEvidence(bundle); evidence != "" {
		sb.WriteString(prompts.Render(prompts.RefinementFile, "refine-evidence", map[string]string{
			"Evidence": evidence,
		}))
	}
}

// storedScopeGuard returns the bundle's guard, or rebuilds it from the
// stored mode and repository when the facts are gone (inline facts are
// never stored).
func storedScopeGuard(bundle *types.FactBundle, mode types.AnalysisMode, repoRef string) string {
	if bundle != nil {
		return scopeGuard(bundle)
	}
	repository := repoRef
	if repository == "" {
		repository = "the target repository"
	}
	switch mode {
	case types.ModeProfile:
		return ""
	case types.ModeRepositoryOnly:
		return prompts.Render(prompts.GenerationFile, "repository-guard", map[string]string{
			"Repository": repository,
			"URL":        "no URL provided",
		})
	case types.ModeRepositoryContributor:
		return prompts.Render(prompts.GenerationFile, "contributor-balance", map[string]string{
			"Repository": repository,
		})
	default:
		panic(fmt.Sprintf("prompting: unhandled analysis mode %d", mode))
	}
}

func refinementEvidence(bundle *types.FactBundle) string {
	terms := bundle.TechnicalTerms()
	if ref, ok := bundle.Repository(); ok {
		terms = append(terms, ref.DisplayName())
	}
	return strings.Join(terms, ", ")
}
