package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// versionRow is the column layout of recommendation_versions.
type versionRow struct {
	ID                uuid.UUID
	SubjectID         string
	Number            int
	Artifact          []byte
	ChangeType        string
	ChangeDescription string
	RevertedFrom      *int
	CreatedAt         time.Time
}

func newVersionRow(v types.Version) (versionRow, error) {
	artifact, err := json.Marshal(v.Artifact)
	if err != nil {
		return versionRow{}, fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return versionRow{
		ID:                v.ID,
		SubjectID:         v.SubjectID,
		Number:            v.Number,
		Artifact:          artifact,
		ChangeType:        string(v.ChangeType),
		ChangeDescription: v.ChangeDescription,
		RevertedFrom:      v.RevertedFrom,
		CreatedAt:         v.CreatedAt,
	}, nil
}

func (r versionRow) version() (types.Version, error) {
	v := types.Version{
		ID:                r.ID,
		SubjectID:         r.SubjectID,
		Number:            r.Number,
		ChangeType:        types.ChangeType(r.ChangeType),
		ChangeDescription: r.ChangeDescription,
		RevertedFrom:      r.RevertedFrom,
		CreatedAt:         r.CreatedAt,
	}
	if err := json.Unmarshal(r.Artifact, &v.Artifact); err != nil {
		return types.Version{}, fmt.Errorf("failed to unmarshal artifact for %s v%d: %w", r.SubjectID, r.Number, err)
	}
	return v, nil
}

// statsRow is one row of the per-strategy aggregate.
type statsRow struct {
	Strategy    string
	Count       int
	MeanScore   float64
	StdDevScore float64
	Selected    int
	MeanLatency float64 // microseconds
}

// resultRow is the column layout of experiment_results.
type resultRow struct {
	ID           uuid.UUID
	SubjectID    string
	Strategy     string
	QualityScore float64
	Selected     bool
	LatencyUS    int64
	CreatedAt    time.Time
}

func (r resultRow) result() types.ExperimentResult {
	return types.ExperimentResult{
		ID:           r.ID,
		SubjectID:    r.SubjectID,
		Strategy:     types.StrategyName(r.Strategy),
		QualityScore: r.QualityScore,
		Selected:     r.Selected,
		Latency:      time.Duration(r.LatencyUS) * time.Microsecond,
		CreatedAt:    r.CreatedAt,
	}
}
