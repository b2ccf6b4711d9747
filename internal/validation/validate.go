package validation

import (
	"fmt"
	"math"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// Structure penalties.
const (
	penaltyParagraphCount   = 25
	penaltyWordCount        = 20
	penaltyIncomplete       = 15
	penaltyParagraphLength  = 5
	maxParagraphLengthTotal = 15
	penaltyExcludedKeyword  = 15

	maxIncompleteRatio    = 0.20
	minParagraphWords     = 15
	maxParagraphWords     = 160
	passingStructureScore = 70
)

// Validate annotates a candidate with structural, compliance and confidence
// findings. bundle may be nil.
func Validate(c *types.Candidate, opts *types.GenerationOptions, bundle *types.FactBundle) *types.ValidationResult {
	o := types.DefaultGenerationOptions()
	if opts != nil {
		o = *opts
	}
	text := ""
	if c != nil {
		text = c.Text
	}

	a := analyze(text, o.Length.Spec())
	result := &types.ValidationResult{
		Issues:      []string{},
		Suggestions: []string{},
		Compliance:  CheckKeywords(text, o.IncludeKeywords, o.ExcludeKeywords),
	}

	result.StructureScore = scoreStructure(a, result)
	scoreCompliance(result)

	result.Breakdown = types.ConfidenceBreakdown{
		DataCompleteness: dataCompleteness(bundle),
		ContentQuality:   contentQuality(a),
		PromptAlignment:  promptAlignment(text, &o, result.Compliance),
		ReadabilityTone:  readabilityTone(a, o.Tone),
		Uniqueness:       uniqueness(text, bundle),
	}
	result.ConfidenceScore = clamp(round1(result.Breakdown.Total()), 0, 100)

	result.Valid = result.StructureScore >= passingStructureScore && result.Compliance.Compliant()
	return result
}

// analysis holds the measurements shared by the structure and confidence
// scorers.
type analysis struct {
	spec            types.LengthSpec
	paragraphs      []string
	sentences       []string
	words           int
	incompleteRatio float64
}

func analyze(text string, spec types.LengthSpec) analysis {
	a := analysis{spec: spec, paragraphs: paragraphs(text), words: wordCount(text)}
	for _, p := range a.paragraphs {
		a.sentences = append(a.sentences, sentences(p)...)
	}
	if len(a.sentences) > 0 {
		bad := 0
		for _, s := range a.sentences {
			if incomplete(s) {
				bad++
			}
		}
		a.incompleteRatio = float64(bad) / float64(len(a.sentences))
	}
	return a
}

func (a analysis) paragraphsOK() bool {
	n := len(a.paragraphs)
	return n >= a.spec.MinParagraphs && n <= a.spec.MaxParagraphs
}

func (a analysis) wordsOK() bool {
	low, high := a.spec.WordBounds()
	return a.words >= low && a.words <= high
}

func scoreStructure(a analysis, r *types.ValidationResult) float64 {
	score := 100.0

	if !a.paragraphsOK() {
		score -= penaltyParagraphCount
		expected := fmt.Sprintf("%d", a.spec.MinParagraphs)
		if a.spec.MaxParagraphs != a.spec.MinParagraphs {
			expected = fmt.Sprintf("%d-%d", a.spec.MinParagraphs, a.spec.MaxParagraphs)
		}
		r.Issues = append(r.Issues, fmt.Sprintf("expected %s paragraphs, found %d", expected, len(a.paragraphs)))
		r.Suggestions = append(r.Suggestions, "Regenerate or adjust the length so the paragraph count matches the requested length.")
	}

	if !a.wordsOK() {
		score -= penaltyWordCount
		low, high := a.spec.WordBounds()
		r.Issues = append(r.Issues, fmt.Sprintf("word count %d is outside %d-%d", a.words, low, high))
		if a.words < low {
			r.Suggestions = append(r.Suggestions, "Add a concrete example from the evidence to reach the requested length.")
		} else {
			r.Suggestions = append(r.Suggestions, "Tighten the text; remove repeated or generic sentences.")
		}
	}

	if a.incompleteRatio > maxIncompleteRatio {
		score -= penaltyIncomplete
		r.Issues = append(r.Issues, fmt.Sprintf("%.0f%% of sentences look incomplete", a.incompleteRatio*100))
		r.Suggestions = append(r.Suggestions, "Make sure every sentence starts with a capital letter and ends with punctuation.")
	}

	lengthPenalty := 0.0
	for i, p := range a.paragraphs {
		n := wordCount(p)
		if n >= minParagraphWords && n <= maxParagraphWords {
			continue
		}
		r.Issues = append(r.Issues, fmt.Sprintf("paragraph %d has %d words", i+1, n))
		if lengthPenalty < maxParagraphLengthTotal {
			lengthPenalty += penaltyParagraphLength
		}
	}
	score -= lengthPenalty

	score -= float64(penaltyExcludedKeyword * len(r.Compliance.Violated))

	return clamp(score, 0, 100)
}

func scoreCompliance(r *types.ValidationResult) {
	for _, kw := range r.Compliance.Missing {
		r.Issues = append(r.Issues, fmt.Sprintf("missing required keyword %q", kw))
	}
	for _, kw := range r.Compliance.Violated {
		r.Issues = append(r.Issues, fmt.Sprintf("contains excluded keyword %q", kw))
	}
	if len(r.Compliance.Missing) > 0 || len(r.Compliance.Violated) > 0 {
		r.Suggestions = append(r.Suggestions, "Refine with the same keywords: "+r.Compliance.Summary()+".")
	}
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
