package generation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/recommendation-writer/internal/cache"
	"github.com/jonathan/recommendation-writer/internal/types"
)

func TestGenerateOptions_CacheRoundTrip(t *testing.T) {
	client := &fakeClient{}
	store := cache.NewMemoryStore()
	g := New(client, store, DefaultConfig(), nil)
	ctx := context.Background()

	miss, err := g.GenerateOptions(ctx, "same prompt", 0.7, types.TierMedium, types.StrategyBaseline, nil)
	require.NoError(t, err)
	assert.False(t, miss.CacheHit)
	assert.Equal(t, 3, client.callCount())

	var progress []int
	hit, err := g.GenerateOptions(ctx, "same prompt", 0.7, types.TierMedium, types.StrategyBaseline, func(done, total int) {
		progress = append(progress, done*100/total)
	})
	require.NoError(t, err)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, 3, client.callCount(), "a hit must not call the completion service")
	assert.Equal(t, []int{100}, progress)

	missBytes, err := json.Marshal(miss)
	require.NoError(t, err)
	hitBytes, err := json.Marshal(hit)
	require.NoError(t, err)
	assert.Equal(t, missBytes, hitBytes)
	assert.Equal(t, miss.CacheKey, hit.CacheKey)
}

func TestGenerateOptions_DifferentPromptMisses(t *testing.T) {
	client := &fakeClient{}
	g := New(client, cache.NewMemoryStore(), DefaultConfig(), nil)
	ctx := context.Background()

	_, err := g.GenerateOptions(ctx, "prompt a", 0.7, types.TierMedium, "", nil)
	require.NoError(t, err)
	res, err := g.GenerateOptions(ctx, "prompt b", 0.7, types.TierMedium, "", nil)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 6, client.callCount())
}

func TestGenerateOptions_Expired(t *testing.T) {
	client := &fakeClient{}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Nanosecond
	g := New(client, cache.NewMemoryStore(), cfg, nil)
	ctx := context.Background()

	_, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	res, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
}

func TestGenerateOptions_CorruptEntryRegenerates(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.Key("p"), []byte("not json"), time.Hour))

	client := &fakeClient{}
	g := New(client, store, DefaultConfig(), nil)
	res, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 3, client.callCount())
}

func TestGenerateOptions_FailureNotCached(t *testing.T) {
	store := cache.NewMemoryStore()
	client := &fakeClient{respond: func(int, string) (string, error) { return "", assert.AnError }}
	g := New(client, store, DefaultConfig(), nil)

	_, err := g.GenerateOptions(context.Background(), "p", 0.7, types.TierMedium, "", nil)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestGenerateOptions_JoinsInflight(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	g := New(client, cache.NewMemoryStore(), DefaultConfig(), nil)
	ctx := context.Background()

	results := make([]*OptionsResult, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
		assert.NoError(t, err)
		results[0] = res
	}()

	require.Eventually(t, func() bool { return client.callCount() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
		assert.NoError(t, err)
		results[1] = res
	}()

	// Give the second caller time to reach the in-flight group.
	time.Sleep(50 * time.Millisecond)
	close(client.gate)
	wg.Wait()

	assert.Equal(t, 3, client.callCount())
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, results[0].Candidates, results[1].Candidates)
	assert.True(t, results[0].Shared || results[1].Shared)
}

func TestGenerateOptions_DedupeOffRaces(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.DedupeInflight = false
	g := New(client, cache.NewMemoryStore(), cfg, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.GenerateOptions(ctx, "p", 0.7, types.TierMedium, "", nil)
			assert.NoError(t, err)
		}()
	}

	// Both callers miss the cache and reach the completion service.
	require.Eventually(t, func() bool { return client.callCount() == 2 }, time.Second, time.Millisecond)
	close(client.gate)
	wg.Wait()

	assert.Equal(t, 6, client.callCount())
}

func TestDecodeOptions_WrongShape(t *testing.T) {
	_, err := DecodeOptions([]byte(`{"candidates":[{"text":"a"}]}`))
	var cacheErr *CacheError
	assert.ErrorAs(t, err, &cacheErr)
}
