// Package prompting assembles generation and refinement prompts from a fenced
// fact bundle and the caller's options. Assembly is deterministic: the same
// inputs always produce byte-identical prompts.
package prompting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/prompts"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// sparseThreshold is the populated-category count at or below which the
// prompt warns the model that evidence is thin.
const sparseThreshold = 1

// Build produces the generation prompt for one request. It never fails:
// absent categories simply omit their evidence lines.
func Build(bundle *types.FactBundle, opts *types.GenerationOptions, strategy types.Strategy) string {
	o := types.DefaultGenerationOptions()
	if opts != nil {
		o = *opts
	}

	var sb strings.Builder
	sb.WriteString(opening(bundle, &o))
	sb.WriteString(evidenceSection(bundle))
	sb.WriteString("\n")
	sb.WriteString(LengthGuidance(o.Length))
	sb.WriteString(keywordClauses(o.IncludeKeywords, o.ExcludeKeywords))

	if len(o.SpecificSkills) > 0 {
		sb.WriteString(prompts.Render(prompts.GenerationFile, "skills-clause", map[string]string{
			"Skills": strings.Join(o.SpecificSkills, ", "),
		}))
	}
	if o.CustomInstructions != "" {
		sb.WriteString(prompts.Render(prompts.GenerationFile, "custom-clause", map[string]string{
			"Instructions": o.CustomInstructions,
		}))
	}

	sb.WriteString(scopeGuard(bundle))

	if len(strategy.Clauses) > 0 {
		sb.WriteString("\n")
		sb.WriteString(prompts.MustGet(prompts.GenerationFile, "strategy-header"))
		for _, clause := range strategy.Clauses {
			sb.WriteString("- ")
			sb.WriteString(clause)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(prompts.MustGet(prompts.GenerationFile, "style-rules"))
	return sb.String()
}

// FocusInstruction returns the instruction delta appended for one of the
// multi-option focuses, or "" for an unknown focus.
func FocusInstruction(focus types.Focus) string {
	text, err := prompts.Get(prompts.GenerationFile, "focus-"+string(focus))
	if err != nil {
		return ""
	}
	return text
}

// WithFocus appends a focus instruction to a built prompt.
func WithFocus(prompt string, focus types.Focus) string {
	instruction := FocusInstruction(focus)
	if instruction == "" {
		return prompt
	}
	return prompt + "\nFocus: " + instruction + "\n"
}

// LengthGuidance renders the paragraph and word-count guidance for a tier.
func LengthGuidance(tier types.LengthTier) string {
	spec := tier.Spec()
	paragraphs := strconv.Itoa(spec.MinParagraphs)
	if spec.MaxParagraphs != spec.MinParagraphs {
		paragraphs = fmt.Sprintf("%d-%d", spec.MinParagraphs, spec.MaxParagraphs)
	}
	return prompts.Render(prompts.GenerationFile, "length-guidance", map[string]string{
		"Paragraphs": paragraphs,
		"MinWords":   strconv.Itoa(spec.MinWords),
		"MaxWords":   strconv.Itoa(spec.MaxWords),
	})
}

func opening(bundle *types.FactBundle, o *types.GenerationOptions) string {
	data := map[string]string{
		"Subject":    subjectName(bundle),
		"Tone":       o.Tone,
		"Length":     string(o.Length),
		"Category":   o.Category,
		"RoleClause": "",
	}
	if o.TargetRole != "" {
		data["RoleClause"] = fmt.Sprintf(" for a %s role", o.TargetRole)
	}

	if bundle == nil {
		return prompts.Render(prompts.GenerationFile, "opening", data)
	}

	switch bundle.Mode() {
	case types.ModeProfile:
		return prompts.Render(prompts.GenerationFile, "opening", data)
	case types.ModeRepositoryOnly:
		data["Repository"] = repositoryName(bundle)
		return prompts.Render(prompts.GenerationFile, "opening-repository", data)
	case types.ModeRepositoryContributor:
		data["Repository"] = repositoryName(bundle)
		return prompts.Render(prompts.GenerationFile, "opening-contributor", data)
	default:
		panic(fmt.Sprintf("prompting: unhandled analysis mode %d", bundle.Mode()))
	}
}

// subjectName prefers the display name when the mode allows one.
func subjectName(bundle *types.FactBundle) string {
	if bundle == nil {
		return "this developer"
	}
	if name := bundle.String(types.FactDisplayName); name != "" {
		return fmt.Sprintf("%s (%s)", name, bundle.SubjectID())
	}
	return bundle.SubjectID()
}

func repositoryName(bundle *types.FactBundle) string {
	if ref, ok := bundle.Repository(); ok {
		return ref.DisplayName()
	}
	return "the target repository"
}

// scopeGuard returns the mode-specific guard clause.
func scopeGuard(bundle *types.FactBundle) string {
	if bundle == nil {
		return ""
	}
	switch bundle.Mode() {
	case types.ModeProfile:
		return ""
	case types.ModeRepositoryOnly:
		return RepositoryGuard(bundle)
	case types.ModeRepositoryContributor:
		return prompts.Render(prompts.GenerationFile, "contributor-balance", map[string]string{
			"Repository": repositoryName(bundle),
		})
	default:
		panic(fmt.Sprintf("prompting: unhandled analysis mode %d", bundle.Mode()))
	}
}

// RepositoryGuard renders the clause that confines a prompt to one
// repository.
func RepositoryGuard(bundle *types.FactBundle) string {
	ref, _ := bundle.Repository()
	url := ref.URL
	if url == "" {
		url = "no URL provided"
	}
	return prompts.Render(prompts.GenerationFile, "repository-guard", map[string]string{
		"Repository": repositoryName(bundle),
		"URL":        url,
	})
}

func keywordClauses(include, exclude []string) string {
	var sb strings.Builder
	if len(include) > 0 {
		sb.WriteString(prompts.Render(prompts.GenerationFile, "include-clause", map[string]string{
			"Keywords": quoteList(include),
		}))
	}
	if len(exclude) > 0 {
		sb.WriteString(prompts.Render(prompts.GenerationFile, "exclude-clause", map[string]string{
			"Keywords": quoteList(exclude),
		}))
	}
	return sb.String()
}

// quoteList renders keywords verbatim, each wrapped in double quotes.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = `"` + item + `"`
	}
	return strings.Join(quoted, ", ")
}
