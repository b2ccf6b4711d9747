package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Client so that completions wait for a token before
// reaching the provider.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerMinute completions per minute with a
// burst of the same size. A non-positive rate returns next unchanged.
func NewRateLimited(next Client, requestsPerMinute int) Client {
	if requestsPerMinute <= 0 {
		return next
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(every), requestsPerMinute),
	}
}

// Complete blocks until the limiter admits the call or ctx is done.
func (r *RateLimited) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, prompt, params)
}

// Close closes the wrapped client.
func (r *RateLimited) Close() error { return r.next.Close() }
