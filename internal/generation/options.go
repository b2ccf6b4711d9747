package generation

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/cache"
	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// focusSpec is one of the three fixed multi-option focuses.
type focusSpec struct {
	focus       types.Focus
	delta       float64
	title       string
	explanation string
}

var focuses = []focusSpec{
	{
		focus:       types.FocusTechnicalExpertise,
		delta:       -0.05,
		title:       "Technical expertise",
		explanation: "Choose this when the reader cares most about hands-on engineering depth and the technologies this developer knows.",
	},
	{
		focus:       types.FocusCollaboration,
		delta:       0,
		title:       "Collaboration",
		explanation: "Choose this when the role depends on teamwork, code review and communication across a team.",
	},
	{
		focus:       types.FocusLeadershipGrowth,
		delta:       0.1,
		title:       "Leadership and growth",
		explanation: "Choose this for senior or lead roles where ownership, mentoring and trajectory matter most.",
	},
}

// Focuses returns the multi-option focuses in generation order.
func Focuses() []types.Focus {
	out := make([]types.Focus, len(focuses))
	for i, f := range focuses {
		out[i] = f.focus
	}
	return out
}

// OptionsResult is the outcome of the multi-option path.
type OptionsResult struct {
	Candidates []types.Candidate `json:"candidates"`
	CacheKey   string            `json:"-"`
	CacheHit   bool              `json:"-"`
	// Shared is set when the result came from joining an identical
	// in-flight generation.
	Shared bool `json:"-"`
}

// OptionConfigs returns the three focus configs around a base temperature.
func OptionConfigs(base float64, tier types.LengthTier, strategy types.StrategyName) []CandidateConfig {
	configs := make([]CandidateConfig, len(focuses))
	for i, f := range focuses {
		configs[i] = CandidateConfig{
			Temperature: ClampTemperature(base + f.delta),
			Tier:        tier,
			Strategy:    strategy,
			Focus:       f.focus,
			Title:       f.title,
			Explanation: f.explanation,
		}
	}
	return configs
}

// GenerateOptions produces the three focus candidates for prompt. A cached
// result for the same prompt is returned without calling the completion
// service, and progress jumps straight to completion.
func (g *Generator) GenerateOptions(ctx context.Context, prompt string, base float64, tier types.LengthTier, strategy types.StrategyName, progress ProgressFunc) (*OptionsResult, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	key := cache.Key(prompt)
	total := len(focuses)

	if res, ok := g.lookup(ctx, key); ok {
		progress(total, total)
		return res, nil
	}

	generate := func() (*OptionsResult, error) {
		candidates, err := g.GenerateMany(ctx, prompt, OptionConfigs(base, tier, strategy), progress)
		if err != nil {
			return nil, err
		}
		res := &OptionsResult{Candidates: candidates, CacheKey: key}
		g.save(ctx, key, res)
		return res, nil
	}

	if !g.config.DedupeInflight {
		return generate()
	}

	// Only the leader runs the closure; every other caller joined it.
	leader := false
	v, err, _ := g.group.Do(key, func() (any, error) {
		leader = true
		return generate()
	})
	if err != nil {
		return nil, err
	}
	res := v.(*OptionsResult)
	if leader {
		return res, nil
	}

	metrics.InflightJoins.Inc()
	progress(total, total)
	joined := *res
	joined.Candidates = append([]types.Candidate(nil), res.Candidates...)
	joined.Shared = true
	return &joined, nil
}

func (g *Generator) lookup(ctx context.Context, key string) (*OptionsResult, bool) {
	if g.store == nil {
		return nil, false
	}

	data, ok, err := g.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		g.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	res, err := DecodeOptions(data)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		g.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	res.CacheKey = key
	res.CacheHit = true
	return res, true
}

func (g *Generator) save(ctx context.Context, key string, res *OptionsResult) {
	if g.store == nil {
		return
	}
	data, err := EncodeOptions(res)
	if err != nil {
		g.logger.Warn("failed to encode options for cache", zap.Error(err))
		return
	}
	if err := g.store.Set(ctx, key, data, g.config.CacheTTL); err != nil {
		g.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// EncodeOptions serializes a result for the cache.
func EncodeOptions(res *OptionsResult) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, &CacheError{Message: "failed to encode options", Cause: err}
	}
	return data, nil
}

// DecodeOptions parses a cached result.
func DecodeOptions(data []byte) (*OptionsResult, error) {
	var res OptionsResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, &CacheError{Message: "failed to decode options", Cause: err}
	}
	if len(res.Candidates) != len(focuses) {
		return nil, &CacheError{Message: "cached result has the wrong number of candidates"}
	}
	return &res, nil
}
