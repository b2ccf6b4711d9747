package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/cache"
	"github.com/jonathan/recommendation-writer/internal/llm"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// fakeClient records calls and answers with respond.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	params  []llm.Params
	respond func(call int, prompt string) (string, error)
	// gate, when set, blocks every call until it is closed.
	gate chan struct{}
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, params llm.Params) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, params)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.respond == nil {
		return sampleText(3, 6, 10), nil
	}
	return f.respond(call, prompt)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestGenerate_Params(t *testing.T) {
	client := &fakeClient{}
	g := New(client, nil, DefaultConfig(), zap.NewNop())

	c, err := g.Generate(context.Background(), "prompt", 1.4, types.TierShort)
	require.NoError(t, err)

	require.Len(t, client.params, 1)
	p := client.params[0]
	assert.Equal(t, 1.0, p.Temperature)
	assert.Equal(t, 0.95, p.TopP)
	assert.Equal(t, 40, p.TopK)
	assert.Equal(t, 400, p.MaxTokens)
	assert.Equal(t, llm.TierStandard, p.Tier)

	assert.Equal(t, 1.0, c.Temperature)
	assert.Equal(t, 2, c.ParagraphCount)
	assert.Equal(t, wordCount(c.Text), c.WordCount)
	assert.NotEmpty(t, c.Title)
}

func TestGenerate_NegativeTemperatureClamped(t *testing.T) {
	client := &fakeClient{}
	g := New(client, nil, DefaultConfig(), nil)

	_, err := g.Generate(context.Background(), "prompt", -0.2, types.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, 0.0, client.params[0].Temperature)
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	boom := errors.New("503 from provider")
	client := &fakeClient{respond: func(int, string) (string, error) { return "", boom }}
	g := New(client, nil, DefaultConfig(), nil)

	_, err := g.Generate(context.Background(), "prompt", 0.7, types.TierMedium)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_EmptyText(t *testing.T) {
	client := &fakeClient{respond: func(int, string) (string, error) { return "```\n```", nil }}
	g := New(client, nil, DefaultConfig(), nil)

	_, err := g.Generate(context.Background(), "prompt", 0.7, types.TierMedium)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}

func TestGenerate_ShortTierForAnyPrompt(t *testing.T) {
	client := &fakeClient{respond: func(call int, _ string) (string, error) {
		return sampleText(1+call%5, 4, 6), nil
	}}
	g := New(client, nil, DefaultConfig(), nil)

	for _, prompt := range []string{"a", "write something", strings.Repeat("long prompt ", 200)} {
		c, err := g.Generate(context.Background(), prompt, 0.7, types.TierShort)
		require.NoError(t, err)
		assert.Equal(t, 2, c.ParagraphCount)
		assert.Equal(t, 2, len(Paragraphs(c.Text)))
	}
}

func TestGenerateMany_SequentialProgress(t *testing.T) {
	client := &fakeClient{}
	g := New(client, nil, DefaultConfig(), nil)

	var progress []int
	configs := OptionConfigs(0.7, types.TierMedium, types.StrategyBaseline)
	candidates, err := g.GenerateMany(context.Background(), "prompt", configs, func(done, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, progress)
	require.Len(t, candidates, 3)
	for i, c := range candidates {
		assert.Equal(t, configs[i].Focus, c.Focus)
		assert.Equal(t, configs[i].Title, c.Title)
		assert.NotEmpty(t, c.Explanation)
		assert.Equal(t, types.StrategyBaseline, c.Strategy)
	}
	// Each focus adds its own instruction to the shared prompt.
	assert.Contains(t, client.prompts[0], "technical depth")
	assert.Contains(t, client.prompts[2], "leadership")
}

func TestGenerateMany_SequentialStopsOnError(t *testing.T) {
	client := &fakeClient{respond: func(call int, _ string) (string, error) {
		if call == 2 {
			return "", errors.New("boom")
		}
		return sampleText(3, 3, 10), nil
	}}
	g := New(client, nil, DefaultConfig(), nil)

	_, err := g.GenerateMany(context.Background(), "prompt", OptionConfigs(0.7, types.TierMedium, ""), nil)
	require.Error(t, err)
	assert.Equal(t, 2, client.callCount())
}

func TestGenerateMany_Parallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{}
	cfg := DefaultConfig()
	cfg.Parallel = true
	g := New(client, nil, cfg, nil)

	var progress []int
	candidates, err := g.GenerateMany(context.Background(), "prompt", OptionConfigs(0.7, types.TierMedium, ""), func(done, _ int) {
		progress = append(progress, done)
	})
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, types.FocusTechnicalExpertise, candidates[0].Focus)
	assert.Equal(t, types.FocusLeadershipGrowth, candidates[2].Focus)
}

func TestGenerateMany_ParallelError(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{respond: func(int, string) (string, error) { return "", errors.New("boom") }}
	cfg := DefaultConfig()
	cfg.Parallel = true
	g := New(client, nil, cfg, nil)

	_, err := g.GenerateMany(context.Background(), "prompt", OptionConfigs(0.7, types.TierMedium, ""), nil)
	var upErr *UpstreamError
	assert.ErrorAs(t, err, &upErr)
}

func TestOptionConfigs_Temperatures(t *testing.T) {
	configs := OptionConfigs(0.7, types.TierMedium, types.StrategyConcise)
	require.Len(t, configs, 3)
	assert.InDelta(t, 0.65, configs[0].Temperature, 1e-9)
	assert.InDelta(t, 0.7, configs[1].Temperature, 1e-9)
	assert.InDelta(t, 0.8, configs[2].Temperature, 1e-9)

	hot := OptionConfigs(0.95, types.TierMedium, "")
	assert.Equal(t, 1.0, hot[2].Temperature)
	assert.Equal(t, []types.Focus{types.FocusTechnicalExpertise, types.FocusCollaboration, types.FocusLeadershipGrowth}, Focuses())
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "I worked with Alice", deriveTitle("I worked with Alice. More text."))
	assert.Equal(t, "One two three four five six seven eight...", deriveTitle("One two three four five six seven eight nine ten."))
}

func TestGenerate_CancelledContext(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	g := New(client, nil, DefaultConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "prompt", 0.7, types.TierMedium)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_NilStoreDisablesCache(t *testing.T) {
	g := New(&fakeClient{}, nil, DefaultConfig(), nil)
	_, ok := g.lookup(context.Background(), cache.Key("p"))
	assert.False(t, ok)
}
