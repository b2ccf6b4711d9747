package strategy

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// dayLayout buckets selections into UTC calendar days.
const dayLayout = "2006-01-02"

type weighted struct {
	strategy types.Strategy
	weight   uint64
}

// Selector deterministically assigns a strategy per (subject, day).
// It holds no mutable state and is safe for concurrent use.
type Selector struct {
	version string
	entries []weighted
	total   uint64
}

// NewSelector builds a selector over the enabled strategies of a weight set.
func NewSelector(ws WeightSet) (*Selector, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	s := &Selector{version: ws.Version}
	for _, strat := range Catalog() {
		w := ws.Weights[strat.Name]
		if w <= 0 {
			continue
		}
		s.entries = append(s.entries, weighted{strategy: strat, weight: uint64(w)})
		s.total += uint64(w)
	}
	return s, nil
}

// Version returns the weight set version in use.
func (s *Selector) Version() string { return s.version }

// Enabled returns the strategies that can be selected.
func (s *Selector) Enabled() []types.StrategyName {
	names := make([]types.StrategyName, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.strategy.Name
	}
	return names
}

// Select returns the strategy for subjectID on day. The same pair always
// yields the same strategy regardless of call order. forced bypasses
// hashing but must name an enabled strategy.
func (s *Selector) Select(subjectID string, day time.Time, forced *types.StrategyName) (types.Strategy, error) {
	if forced != nil {
		for _, e := range s.entries {
			if e.strategy.Name == *forced {
				return e.strategy, nil
			}
		}
		return types.Strategy{}, fmt.Errorf("strategy %q is not enabled", *forced)
	}
	if subjectID == "" {
		return types.Strategy{}, fmt.Errorf("subject id is required for strategy selection")
	}

	point := Bucket(subjectID, day) % s.total
	var cumulative uint64
	for _, e := range s.entries {
		cumulative += e.weight
		if point < cumulative {
			return e.strategy, nil
		}
	}
	// Unreachable while total is the sum of weights.
	return s.entries[len(s.entries)-1].strategy, nil
}

// Bucket hashes subjectID and the UTC day into a stable integer.
func Bucket(subjectID string, day time.Time) uint64 {
	sum := blake2b.Sum256([]byte(subjectID + "|" + day.UTC().Format(dayLayout)))
	return binary.BigEndian.Uint64(sum[:8])
}
