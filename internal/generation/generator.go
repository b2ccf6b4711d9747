package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/recommendation-writer/internal/cache"
	"github.com/jonathan/recommendation-writer/internal/llm"
	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/prompting"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// Config controls sampling and the multi-option path.
type Config struct {
	TopP float64
	TopK int
	Tier llm.ModelTier
	// Parallel fans the candidates of GenerateMany out concurrently instead
	// of generating them one by one with progress between calls.
	Parallel bool
	// CacheTTL bounds how long a multi-option result is reused.
	CacheTTL time.Duration
	// DedupeInflight joins identical concurrent cache misses onto one
	// generation. With it off, both callers reach the completion service.
	DedupeInflight bool
}

// DefaultConfig returns the production sampling settings.
func DefaultConfig() Config {
	return Config{
		TopP:           0.95,
		TopK:           40,
		Tier:           llm.TierStandard,
		CacheTTL:       24 * time.Hour,
		DedupeInflight: true,
	}
}

// ProgressFunc is called after each candidate completes.
type ProgressFunc func(completed, total int)

// CandidateConfig describes one candidate of a GenerateMany call.
type CandidateConfig struct {
	Temperature float64
	Tier        types.LengthTier
	Strategy    types.StrategyName
	Focus       types.Focus
	Title       string
	Explanation string
}

// Generator produces normalized candidates from prompts.
type Generator struct {
	client llm.Client
	store  cache.Store
	config Config
	logger *zap.Logger
	group  singleflight.Group
}

// New creates a Generator. store may be nil to disable caching.
func New(client llm.Client, store cache.Store, config Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: client,
		store:  store,
		config: config,
		logger: logger,
	}
}

// ClampTemperature limits t to [0, 1].
func ClampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// Generate runs one completion and normalizes the result for tier.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64, tier types.LengthTier) (*types.Candidate, error) {
	temperature = ClampTemperature(temperature)
	params := llm.Params{
		Temperature: temperature,
		TopP:        g.config.TopP,
		TopK:        g.config.TopK,
		MaxTokens:   tier.Spec().MaxTokens,
		Tier:        g.config.Tier,
	}

	start := time.Now()
	raw, err := g.client.Complete(ctx, prompt, params)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, llm.ErrEmptyCompletion) {
			outcome = "empty"
		}
		metrics.CompletionsTotal.WithLabelValues(outcome).Inc()
		return nil, &UpstreamError{Message: "completion failed", Cause: err}
	}

	text := Normalize(raw, tier)
	if text == "" {
		metrics.CompletionsTotal.WithLabelValues("empty").Inc()
		return nil, &UpstreamError{Message: "completion returned no usable text", Cause: llm.ErrEmptyCompletion}
	}
	metrics.CompletionsTotal.WithLabelValues("ok").Inc()

	return &types.Candidate{
		Text:           text,
		Title:          deriveTitle(text),
		WordCount:      wordCount(text),
		ParagraphCount: len(Paragraphs(text)),
		Temperature:    temperature,
	}, nil
}

// GenerateMany generates one candidate per config. Each config with a focus
// gets that focus's instruction appended to prompt.
func (g *Generator) GenerateMany(ctx context.Context, prompt string, configs []CandidateConfig, progress ProgressFunc) ([]types.Candidate, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	candidates := make([]types.Candidate, len(configs))

	if !g.config.Parallel {
		for i, cfg := range configs {
			c, err := g.generateOne(ctx, prompt, cfg)
			if err != nil {
				return nil, err
			}
			candidates[i] = *c
			progress(i+1, len(configs))
		}
		return candidates, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	done := make(chan struct{}, len(configs))
	for i, cfg := range configs {
		eg.Go(func() error {
			c, err := g.generateOne(egCtx, prompt, cfg)
			if err != nil {
				return err
			}
			candidates[i] = *c
			done <- struct{}{}
			return nil
		})
	}

	// Progress is reported from this goroutine only, so callers never see
	// concurrent calls.
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- eg.Wait()
		close(done)
	}()
	completed := 0
	for range done {
		completed++
		progress(completed, len(configs))
	}
	if err := <-waitErr; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (g *Generator) generateOne(ctx context.Context, prompt string, cfg CandidateConfig) (*types.Candidate, error) {
	g.logger.Debug("generating candidate", zap.Stringer("config", cfg))
	p := prompt
	if cfg.Focus != "" {
		p = prompting.WithFocus(prompt, cfg.Focus)
	}
	c, err := g.Generate(ctx, p, cfg.Temperature, cfg.Tier)
	if err != nil {
		return nil, err
	}
	c.Strategy = cfg.Strategy
	c.Focus = cfg.Focus
	c.Explanation = cfg.Explanation
	if cfg.Title != "" {
		c.Title = cfg.Title
	}
	return c, nil
}

// deriveTitle takes the first few words of the first sentence.
func deriveTitle(text string) string {
	first := text
	if sentences := splitSentences(firstParagraph(text)); len(sentences) > 0 {
		first = sentences[0]
	}
	words := strings.Fields(first)
	if len(words) > 8 {
		return strings.Join(words[:8], " ") + "..."
	}
	return strings.TrimRight(strings.Join(words, " "), ".!?")
}

func firstParagraph(text string) string {
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		return text[:idx]
	}
	return text
}

// String implements fmt.Stringer for log fields.
func (c CandidateConfig) String() string {
	return fmt.Sprintf("%s/%s@%.2f", c.Strategy, c.Focus, c.Temperature)
}
