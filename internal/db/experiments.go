package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// ExperimentStore persists experiment results. It implements
// experiment.Sink.
type ExperimentStore struct {
	q querier
}

var _ experiment.Sink = (*ExperimentStore)(nil)

// SaveResult inserts r. Saving the same id twice is a no-op.
func (s *ExperimentStore) SaveResult(ctx context.Context, r types.ExperimentResult) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO experiment_results (id, subject_id, strategy, quality_score, selected, latency_us, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.SubjectID, string(r.Strategy), r.QualityScore, r.Selected, r.Latency.Microseconds(), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save experiment result: %w", err)
	}
	return nil
}

// MarkSelected flags the result with id as chosen by a human.
func (s *ExperimentStore) MarkSelected(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `UPDATE experiment_results SET selected = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark experiment result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return experiment.ErrUnknownResult
	}
	return nil
}

// Lookup returns the stored result with id.
func (s *ExperimentStore) Lookup(ctx context.Context, id uuid.UUID) (types.ExperimentResult, bool, error) {
	var row resultRow
	err := s.q.QueryRow(ctx,
		`SELECT id, subject_id, strategy, quality_score, selected, latency_us, created_at
		 FROM experiment_results
		 WHERE id = $1`,
		id,
	).Scan(&row.ID, &row.SubjectID, &row.Strategy, &row.QualityScore, &row.Selected, &row.LatencyUS, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ExperimentResult{}, false, nil
		}
		return types.ExperimentResult{}, false, fmt.Errorf("failed to look up experiment result: %w", err)
	}
	return row.result(), true, nil
}

// StrategyStats aggregates every stored result per strategy, ordered by
// strategy name. It covers all time, unlike the in-process collector which
// only sees results since startup.
func (s *ExperimentStore) StrategyStats(ctx context.Context) ([]experiment.Stats, error) {
	rows, err := s.q.Query(ctx,
		`SELECT strategy,
		        COUNT(*),
		        AVG(quality_score),
		        COALESCE(STDDEV_POP(quality_score), 0),
		        COUNT(*) FILTER (WHERE selected),
		        AVG(latency_us)
		 FROM experiment_results
		 GROUP BY strategy
		 ORDER BY strategy`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate experiment results: %w", err)
	}
	defer rows.Close()

	stats := []experiment.Stats{}
	for rows.Next() {
		var row statsRow
		if err := rows.Scan(&row.Strategy, &row.Count, &row.MeanScore, &row.StdDevScore, &row.Selected, &row.MeanLatency); err != nil {
			return nil, fmt.Errorf("failed to scan experiment stats: %w", err)
		}
		stats = append(stats, row.stats())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to aggregate experiment results: %w", err)
	}
	return stats, nil
}

func (r statsRow) stats() experiment.Stats {
	s := experiment.Stats{
		Strategy:    types.StrategyName(r.Strategy),
		Count:       r.Count,
		MeanScore:   r.MeanScore,
		StdDevScore: r.StdDevScore,
		Selected:    r.Selected,
		MeanLatency: time.Duration(r.MeanLatency) * time.Microsecond,
	}
	if r.Count > 0 {
		s.SelectionRate = float64(r.Selected) / float64(r.Count)
	}
	return s
}
