package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// GateState is a state of the quality gate machine.
type GateState string

// Gate states. Every run starts in Attempt and ends in Accept, GiveUp or
// Failed.
const (
	StateAttempt  GateState = "attempt"
	StateValidate GateState = "validate"
	StateAccept   GateState = "accept"
	StateRetry    GateState = "retry"
	StateGiveUp   GateState = "give_up"
	StateFailed   GateState = "failed"
)

// Transition records one step of a gate run.
type Transition struct {
	Attempt int       `json:"attempt"`
	From    GateState `json:"from"`
	To      GateState `json:"to"`
	Score   float64   `json:"score,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// QualityGate retries generation while the confidence score is below
// MinScore. It is the only automatic retry in the system.
type QualityGate struct {
	Enabled    bool    `json:"enabled"`
	MinScore   float64 `json:"min_score"`
	MaxRetries int     `json:"max_retries"`
}

// DefaultQualityGate allows two retries below a score of 60.
func DefaultQualityGate() QualityGate {
	return QualityGate{Enabled: true, MinScore: 60, MaxRetries: 2}
}

// MaxAttempts returns how many generations a run may make.
func (g QualityGate) MaxAttempts() int {
	if !g.Enabled || g.MaxRetries < 0 {
		return 1
	}
	return 1 + g.MaxRetries
}

// GateOutcome is the result of a gate run.
type GateOutcome struct {
	Candidate   *types.Candidate
	Validation  *types.ValidationResult
	Attempts    int
	Exhausted   bool
	Transitions []Transition
}

// AttemptFunc produces the candidate for attempt n (1-based).
type AttemptFunc func(ctx context.Context, n int) (*types.Candidate, error)

// ValidateFunc scores a candidate.
type ValidateFunc func(c *types.Candidate) *types.ValidationResult

type gateRun struct {
	transitions []Transition
}

func (r *gateRun) move(n int, from, to GateState, score float64, reason string) {
	r.transitions = append(r.transitions, Transition{Attempt: n, From: from, To: to, Score: score, Reason: reason})
}

// Run drives attempt and validate through the gate. Upstream errors consume
// an attempt. When every attempt failed upstream it returns
// *UpstreamGenerationError; when attempts run out below MinScore it returns
// the best candidate with Exhausted set.
func (g QualityGate) Run(ctx context.Context, attempt AttemptFunc, validate ValidateFunc) (*GateOutcome, error) {
	run := &gateRun{}
	maxAttempts := g.MaxAttempts()

	var (
		best       *types.Candidate
		bestResult *types.ValidationResult
		lastErr    error
	)

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := n == maxAttempts
		next := StateRetry
		if last {
			next = StateGiveUp
		}

		candidate, err := attempt(ctx, n)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			run.move(n, StateAttempt, next, 0, "upstream error")
			continue
		}

		result := validate(candidate)
		run.move(n, StateAttempt, StateValidate, result.ConfidenceScore, "")
		if best == nil || result.ConfidenceScore > bestResult.ConfidenceScore {
			best, bestResult = candidate, result
		}

		if !g.Enabled || result.ConfidenceScore >= g.MinScore {
			run.move(n, StateValidate, StateAccept, result.ConfidenceScore, "")
			metrics.GateAttempts.Observe(float64(n))
			metrics.GateOutcomes.WithLabelValues("accepted").Inc()
			return &GateOutcome{
				Candidate:   candidate,
				Validation:  result,
				Attempts:    n,
				Transitions: run.transitions,
			}, nil
		}
		run.move(n, StateValidate, next, result.ConfidenceScore,
			"score below "+strconv.FormatFloat(g.MinScore, 'f', 1, 64))
	}

	metrics.GateAttempts.Observe(float64(maxAttempts))
	if best == nil {
		run.move(maxAttempts, StateGiveUp, StateFailed, 0, "no attempt produced text")
		metrics.GateOutcomes.WithLabelValues("failed").Inc()
		return nil, &UpstreamGenerationError{Attempts: maxAttempts, Cause: lastErr}
	}

	note := &QualityGateExhaustedError{
		Attempts:  maxAttempts,
		BestScore: bestResult.ConfidenceScore,
		MinScore:  g.MinScore,
	}
	bestResult.Issues = append(bestResult.Issues, note.Error())
	metrics.GateOutcomes.WithLabelValues("exhausted").Inc()
	return &GateOutcome{
		Candidate:   best,
		Validation:  bestResult,
		Attempts:    maxAttempts,
		Exhausted:   true,
		Transitions: run.transitions,
	}, nil
}

// Validate reports a gate configuration that cannot run.
func (g QualityGate) Validate() error {
	if g.MinScore < 0 || g.MinScore > 100 {
		return fmt.Errorf("quality gate min score %.1f is outside 0-100", g.MinScore)
	}
	if g.MaxRetries < 0 || g.MaxRetries > 5 {
		return fmt.Errorf("quality gate max retries %d is outside 0-5", g.MaxRetries)
	}
	return nil
}
