// Package strategy selects the prompt-augmentation variant used for a
// generation request.
package strategy

import (
	"slices"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// catalog is the fixed set of strategies in selection order.
var catalog = []types.Strategy{
	{
		Name:             types.StrategyBaseline,
		TemperatureDelta: 0,
	},
	{
		Name:             types.StrategyFewShotHeavy,
		TemperatureDelta: -0.05,
		Clauses: []string{
			"Model the rhythm of strong peer recommendations: a concrete opening about how you know the developer, specific evidence in the middle, a confident endorsement at the end.",
			"Prefer short concrete examples over adjectives.",
		},
	},
	{
		Name:             types.StrategyStoryFirst,
		TemperatureDelta: 0.1,
		Clauses: []string{
			"Open with a brief story about a piece of work that shows who this developer is.",
			"Let the story carry the technical details instead of listing them.",
		},
	},
	{
		Name:             types.StrategyEvidenceHeavy,
		TemperatureDelta: -0.1,
		Clauses: []string{
			"Anchor every claim to a specific item of evidence such as a language, framework, repository or commit pattern.",
			"Name at least three concrete technologies or projects from the evidence.",
			"Avoid superlatives that the evidence does not support.",
		},
	},
	{
		Name:             types.StrategyEmotionalFocus,
		TemperatureDelta: 0.1,
		Clauses: []string{
			"Convey genuine warmth and what it is like to work alongside this developer, while staying credible.",
		},
	},
	{
		Name:             types.StrategyConcise,
		TemperatureDelta: -0.05,
		Clauses: []string{
			"Keep sentences short and remove filler words.",
			"Stay near the lower end of the word range.",
		},
	},
}

// Catalog returns a copy of every strategy in selection order.
func Catalog() []types.Strategy {
	out := make([]types.Strategy, len(catalog))
	for i, s := range catalog {
		s.Clauses = slices.Clone(s.Clauses)
		out[i] = s
	}
	return out
}

// Lookup returns the catalog entry for a name.
func Lookup(name types.StrategyName) (types.Strategy, bool) {
	for _, s := range catalog {
		if s.Name == name {
			s.Clauses = slices.Clone(s.Clauses)
			return s, true
		}
	}
	return types.Strategy{}, false
}
