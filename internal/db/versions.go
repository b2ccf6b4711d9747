package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/recommendation-writer/internal/ledger"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// VersionStore implements ledger.Store on recommendation_versions.
type VersionStore struct {
	q querier
}

var _ ledger.Store = (*VersionStore)(nil)

const versionColumns = `id, subject_id, version_number, artifact, change_type,
		        change_description, reverted_from, created_at`

// Latest returns the highest version number for subjectID, or 0.
func (s *VersionStore) Latest(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM recommendation_versions WHERE subject_id = $1`,
		subjectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return n, nil
}

// Insert stores v. The (subject_id, version_number) unique constraint turns
// a lost race into ledger.ErrVersionConflict.
func (s *VersionStore) Insert(ctx context.Context, v types.Version) error {
	row, err := newVersionRow(v)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx,
		`INSERT INTO recommendation_versions (`+versionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.SubjectID, row.Number, row.Artifact, row.ChangeType,
		row.ChangeDescription, row.RevertedFrom, row.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrVersionConflict
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// Get returns one version.
func (s *VersionStore) Get(ctx context.Context, subjectID string, number int) (types.Version, error) {
	var row versionRow
	err := s.q.QueryRow(ctx,
		`SELECT `+versionColumns+`
		 FROM recommendation_versions
		 WHERE subject_id = $1 AND version_number = $2`,
		subjectID, number,
	).Scan(&row.ID, &row.SubjectID, &row.Number, &row.Artifact, &row.ChangeType,
		&row.ChangeDescription, &row.RevertedFrom, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Version{}, &ledger.VersionNotFoundError{SubjectID: subjectID, Number: number}
		}
		return types.Version{}, fmt.Errorf("failed to get version: %w", err)
	}
	return row.version()
}

// List returns every version for subjectID in ascending order.
func (s *VersionStore) List(ctx context.Context, subjectID string) ([]types.Version, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+versionColumns+`
		 FROM recommendation_versions
		 WHERE subject_id = $1
		 ORDER BY version_number ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []types.Version{}
	for rows.Next() {
		var row versionRow
		if err := rows.Scan(&row.ID, &row.SubjectID, &row.Number, &row.Artifact, &row.ChangeType,
			&row.ChangeDescription, &row.RevertedFrom, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v, err := row.version()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}
