package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// FactStore keeps the latest raw facts per subject. It implements
// facts.Source so the pipeline can read collector output from Postgres.
type FactStore struct {
	q querier
}

var _ facts.Source = (*FactStore)(nil)

// Load returns the stored facts for subjectID.
func (s *FactStore) Load(ctx context.Context, subjectID string) (*types.RawFacts, error) {
	if !facts.ValidSubjectID(subjectID) {
		return nil, &facts.NotFoundError{SubjectID: subjectID}
	}
	var data []byte
	err := s.q.QueryRow(ctx,
		`SELECT facts FROM subject_facts WHERE subject_id = $1`,
		subjectID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &facts.NotFoundError{SubjectID: subjectID}
		}
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	return facts.Decode(data)
}

// Put validates data against the raw facts schema and stores it under the
// subject id it names.
func (s *FactStore) Put(ctx context.Context, data []byte) (*types.RawFacts, error) {
	raw, err := facts.Decode(data)
	if err != nil {
		return nil, err
	}
	if !facts.ValidSubjectID(raw.SubjectID) {
		return nil, fmt.Errorf("invalid subject id %q", raw.SubjectID)
	}
	_, err = s.q.Exec(ctx,
		`INSERT INTO subject_facts (subject_id, facts, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (subject_id) DO UPDATE SET facts = EXCLUDED.facts, updated_at = NOW()`,
		raw.SubjectID, data,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store facts: %w", err)
	}
	return raw, nil
}
