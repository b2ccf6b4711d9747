package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// WeightSet is an operator-promoted distribution over strategies. Weights
// are relative integers; a strategy with weight 0 or absent is disabled.
type WeightSet struct {
	Version string                     `yaml:"version"`
	Weights map[types.StrategyName]int `yaml:"weights"`
}

// DefaultWeightSet favors the baseline while still exercising every variant.
func DefaultWeightSet() WeightSet {
	return WeightSet{
		Version: "default",
		Weights: map[types.StrategyName]int{
			types.StrategyBaseline:       40,
			types.StrategyFewShotHeavy:   12,
			types.StrategyStoryFirst:     12,
			types.StrategyEvidenceHeavy:  12,
			types.StrategyEmotionalFocus: 12,
			types.StrategyConcise:        12,
		},
	}
}

// Validate checks that every weight names a known strategy, none is
// negative and at least one is enabled.
func (w WeightSet) Validate() error {
	total := 0
	for name, weight := range w.Weights {
		if _, ok := Lookup(name); !ok {
			return fmt.Errorf("weight set %q: unknown strategy %q", w.Version, name)
		}
		if weight < 0 {
			return fmt.Errorf("weight set %q: negative weight for %q", w.Version, name)
		}
		total += weight
	}
	if total == 0 {
		return fmt.Errorf("weight set %q enables no strategies", w.Version)
	}
	return nil
}

// LoadWeightSet reads a weight set from a YAML file of the form:
//
//	version: 2024-06-promo
//	weights:
//	  baseline: 50
//	  evidence_heavy: 50
func LoadWeightSet(path string) (WeightSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WeightSet{}, fmt.Errorf("failed to read weight set %s: %w", path, err)
	}
	return ParseWeightSet(data)
}

// ParseWeightSet decodes and validates a YAML weight set.
func ParseWeightSet(data []byte) (WeightSet, error) {
	var ws WeightSet
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return WeightSet{}, fmt.Errorf("failed to parse weight set: %w", err)
	}
	if ws.Version == "" {
		ws.Version = "unversioned"
	}
	if err := ws.Validate(); err != nil {
		return WeightSet{}, err
	}
	return ws, nil
}
