package types

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Keyword set limits.
const (
	MaxKeywords         = 10
	MaxKeywordLength    = 50
	MaxInstructionChars = 500
)

// lengthTolerance is the fraction a letter may run outside its word range.
const lengthTolerance = 0.10

// LengthTier is the requested length of a recommendation.
type LengthTier string

// Length tiers.
const (
	TierShort  LengthTier = "short"
	TierMedium LengthTier = "medium"
	TierLong   LengthTier = "long"
)

// LengthSpec describes the shape a tier targets.
type LengthSpec struct {
	MinParagraphs int
	MaxParagraphs int
	MinWords      int
	MaxWords      int
	MaxTokens     int
	WordTolerance float64
}

// WordBounds returns the inclusive word count range a letter of this shape
// may have once the tolerance is applied.
func (s LengthSpec) WordBounds() (low, high int) {
	// The epsilon keeps 220*1.1 from ceiling to 243.
	low = int(math.Floor(float64(s.MinWords)*(1-s.WordTolerance) + 1e-9))
	high = int(math.Ceil(float64(s.MaxWords)*(1+s.WordTolerance) - 1e-9))
	return low, high
}

// Spec returns the shape for the tier. Unknown tiers fall back to medium.
func (t LengthTier) Spec() LengthSpec {
	switch t {
	case TierShort:
		return LengthSpec{MinParagraphs: 2, MaxParagraphs: 2, MinWords: 100, MaxWords: 150, MaxTokens: 400, WordTolerance: lengthTolerance}
	case TierLong:
		return LengthSpec{MinParagraphs: 4, MaxParagraphs: 5, MinWords: 250, MaxWords: 350, MaxTokens: 900, WordTolerance: lengthTolerance}
	default:
		return LengthSpec{MinParagraphs: 3, MaxParagraphs: 3, MinWords: 150, MaxWords: 220, MaxTokens: 600, WordTolerance: lengthTolerance}
	}
}

// Tones accepted by GenerationOptions.
var Tones = []string{"professional", "friendly", "formal", "casual", "enthusiastic"}

// Categories accepted by GenerationOptions.
var Categories = []string{"technical", "leadership", "collaboration", "general"}

// GenerationOptions are the caller's choices for one generation request.
type GenerationOptions struct {
	Tone               string     `json:"tone" validate:"required,oneof=professional friendly formal casual enthusiastic"`
	Length             LengthTier `json:"length" validate:"required,oneof=short medium long"`
	Category           string     `json:"category" validate:"required,oneof=technical leadership collaboration general"`
	TargetRole         string     `json:"target_role,omitempty" validate:"max=100"`
	CustomInstructions string     `json:"custom_instructions,omitempty" validate:"max=500"`
	IncludeKeywords    []string   `json:"include_keywords,omitempty" validate:"max=10,dive,required,max=50"`
	ExcludeKeywords    []string   `json:"exclude_keywords,omitempty" validate:"max=10,dive,required,max=50"`
	SpecificSkills     []string   `json:"specific_skills,omitempty" validate:"max=10,dive,required,max=50"`
}

// DefaultGenerationOptions returns professional, medium, technical options.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Tone:     "professional",
		Length:   TierMedium,
		Category: "technical",
	}
}

// ApplyDefaults fills an empty tone, length or category from
// DefaultGenerationOptions.
func (o *GenerationOptions) ApplyDefaults() {
	d := DefaultGenerationOptions()
	if strings.TrimSpace(o.Tone) == "" {
		o.Tone = d.Tone
	}
	if strings.TrimSpace(string(o.Length)) == "" {
		o.Length = d.Length
	}
	if strings.TrimSpace(o.Category) == "" {
		o.Category = d.Category
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// sanitizeText removes control characters and collapses whitespace.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// sanitizeList sanitizes each entry, drops empties and removes
// case-insensitive duplicates while keeping first-seen order.
func sanitizeList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		clean := sanitizeText(item)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, clean)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize trims and sanitizes every field in place.
func (o *GenerationOptions) Normalize() {
	o.Tone = strings.ToLower(sanitizeText(o.Tone))
	o.Length = LengthTier(strings.ToLower(sanitizeText(string(o.Length))))
	o.Category = strings.ToLower(sanitizeText(o.Category))
	o.TargetRole = sanitizeText(o.TargetRole)
	o.CustomInstructions = sanitizeText(o.CustomInstructions)
	o.IncludeKeywords = sanitizeList(o.IncludeKeywords)
	o.ExcludeKeywords = sanitizeList(o.ExcludeKeywords)
	o.SpecificSkills = sanitizeList(o.SpecificSkills)
}

// Validate checks the options with struct tags and cross-field rules.
// It returns an *OptionsError describing every failed field.
func (o *GenerationOptions) Validate() error {
	validate := validator.New()
	err := validate.Struct(o)

	optErr := &OptionsError{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			optErr.Fields = append(optErr.Fields, FieldProblem{
				Field:   fe.Namespace(),
				Message: describeFieldError(fe),
			})
		}
	} else if err != nil {
		return &OptionsError{Fields: []FieldProblem{{Field: "options", Message: err.Error()}}}
	}

	excluded := make(map[string]bool, len(o.ExcludeKeywords))
	for _, kw := range o.ExcludeKeywords {
		excluded[strings.ToLower(kw)] = true
	}
	for _, kw := range o.IncludeKeywords {
		if excluded[strings.ToLower(kw)] {
			optErr.Fields = append(optErr.Fields, FieldProblem{
				Field:   "GenerationOptions.IncludeKeywords",
				Message: fmt.Sprintf("keyword %q is both required and excluded", kw),
			})
		}
	}

	if len(optErr.Fields) > 0 {
		return optErr
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("may contain at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// FieldProblem is a single rejected option field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// OptionsError reports malformed generation options. It is raised before any
// external call is made.
type OptionsError struct {
	Fields []FieldProblem
}

func (e *OptionsError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid generation options"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s %s", f.Field, f.Message)
	}
	return "invalid generation options: " + strings.Join(parts, "; ")
}
