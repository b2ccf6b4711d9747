package validation

import (
	"math"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// expectedCategories is how many populated categories make a bundle
// "complete" for each mode.
func expectedCategories(mode types.AnalysisMode) int {
	switch mode {
	case types.ModeProfile:
		return 10
	case types.ModeRepositoryOnly:
		return 5
	case types.ModeRepositoryContributor:
		return 12
	}
	return 10
}

// dataCompleteness scores 0-25 by how much evidence the bundle carried.
func dataCompleteness(bundle *types.FactBundle) float64 {
	if bundle == nil {
		return 0
	}
	ratio := float64(bundle.Populated()) / float64(expectedCategories(bundle.Mode()))
	return round1(25 * math.Min(1, ratio))
}

// contentQuality scores 0-20 on shape and repetition.
func contentQuality(a analysis) float64 {
	if a.words == 0 {
		return 0
	}
	score := 20.0
	if !a.paragraphsOK() {
		score -= 5
	}
	if !a.wordsOK() {
		score -= 5
	}
	if a.incompleteRatio > maxIncompleteRatio {
		score -= 5
	}
	if repetitiveOpeners(a.sentences) {
		score -= 5
	}
	return clamp(score, 0, 20)
}

// repetitiveOpeners reports whether one opening word starts more than 40% of
// four or more sentences.
func repetitiveOpeners(ss []string) bool {
	if len(ss) < 4 {
		return false
	}
	counts := make(map[string]int)
	most := 0
	for _, s := range ss {
		toks := tokens(s)
		if len(toks) == 0 {
			continue
		}
		counts[toks[0]]++
		most = max(most, counts[toks[0]])
	}
	return float64(most)/float64(len(ss)) > 0.4
}

// promptAlignment scores 0-20: required keywords 8, excluded keywords 4,
// specific skills 4, tone markers 4.
func promptAlignment(text string, o *types.GenerationOptions, kc types.KeywordCompliance) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := 0.0

	if kc.Required() == 0 {
		score += 8
	} else {
		score += 8 * float64(len(kc.Included)) / float64(kc.Required())
	}

	if len(kc.Violated) == 0 {
		score += 4
	}

	if len(o.SpecificSkills) == 0 {
		score += 4
	} else {
		hit := 0
		for _, skill := range o.SpecificSkills {
			if containsFold(text, skill) {
				hit++
			}
		}
		score += 4 * float64(hit) / float64(len(o.SpecificSkills))
	}

	score += toneAlignment(text, o.Tone)
	return round1(clamp(score, 0, 20))
}

var informalWords = map[string]bool{
	"awesome": true, "cool": true, "super": true, "gonna": true, "wanna": true,
	"kinda": true, "sorta": true, "stuff": true, "totally": true, "crazy": true,
	"lol": true, "btw": true, "tbh": true, "yeah": true, "guy": true,
}

var warmWords = []string{"enjoy", "pleasure", "delight", "fun", "glad", "happy", "love"}

var enthusiasticWords = []string{"incredible", "outstanding", "exceptional", "thrilled", "excited", "remarkable"}

func informalCount(text string) int {
	n := 0
	for _, tok := range tokens(text) {
		if informalWords[tok] {
			n++
		}
	}
	return n
}

// toneAlignment scores 0-4 by whether the text shows the markers of the
// requested tone.
func toneAlignment(text, tone string) float64 {
	switch tone {
	case "professional", "formal":
		return math.Max(0, 4-2*float64(informalCount(text)))
	case "enthusiastic":
		if strings.Contains(text, "!") || containsAny(text, enthusiasticWords) {
			return 4
		}
		return 2
	case "friendly", "casual":
		if strings.Contains(text, "'") || containsAny(text, warmWords) {
			return 4
		}
		return 2
	}
	return 4
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if containsFold(text, w) {
			return true
		}
	}
	return false
}

// readabilityTone scores 0-15: sentence length 6, vocabulary diversity 5,
// register 4.
func readabilityTone(a analysis, tone string) float64 {
	if len(a.sentences) == 0 {
		return 0
	}

	avg := float64(a.words) / float64(len(a.sentences))
	var lengthScore float64
	switch {
	case avg >= 12 && avg <= 25:
		lengthScore = 6
	case avg < 12:
		lengthScore = math.Max(0, 6-0.5*(12-avg))
	default:
		lengthScore = math.Max(0, 6-0.5*(avg-25))
	}

	toks := tokens(strings.Join(a.sentences, " "))
	distinct := make(map[string]bool, len(toks))
	for _, tok := range toks {
		distinct[tok] = true
	}
	diversity := 0.0
	if len(toks) > 0 {
		ttr := float64(len(distinct)) / float64(len(toks))
		diversity = math.Min(5, 10*ttr)
	}

	register := 4.0
	if tone == "professional" || tone == "formal" {
		register = math.Max(0, 4-2*float64(informalCount(strings.Join(a.sentences, " "))))
	}

	return round1(clamp(lengthScore+diversity+register, 0, 15))
}

// genericPhrases are boilerplate that says nothing verifiable.
var genericPhrases = []string{
	"team player",
	"hard worker",
	"hard-working",
	"go-getter",
	"think outside the box",
	"rockstar",
	"ninja",
	"synergy",
	"results-driven",
	"detail-oriented",
	"passionate about technology",
	"goes above and beyond",
	"above and beyond",
	"wears many hats",
	"self-starter",
	"best of the best",
}

// uniqueness scores 0-10: a base of 5, minus 1.5 per boilerplate phrase,
// plus 1 per verifiable reference to the subject's technologies or
// repositories (up to 5).
func uniqueness(text string, bundle *types.FactBundle) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := 5.0
	for _, phrase := range genericPhrases {
		if containsFold(text, phrase) {
			score -= 1.5
		}
	}

	refs := 0
	for _, term := range specificTerms(bundle) {
		if containsTerm(text, term) {
			refs++
		}
	}
	score += math.Min(5, float64(refs))
	return round1(clamp(score, 0, 10))
}

// specificTerms lists the bundle's technologies and repository names.
func specificTerms(bundle *types.FactBundle) []string {
	if bundle == nil {
		return nil
	}
	terms := bundle.TechnicalTerms()
	terms = append(terms, bundle.Strings(types.FactRepositoryList)...)
	if ref, ok := bundle.Repository(); ok {
		terms = append(terms, ref.Name)
	}

	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
