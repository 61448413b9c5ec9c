package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/kolektra/callqa/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
// Backends wrap it so callers can match with errors.Is.
var ErrNotFound = eris.New("store: not found")

// Filter specifies criteria for listing analyses.
type Filter struct {
	Scenario model.ScenarioType `json:"scenario,omitempty"`
	MinScore *float64           `json:"min_score,omitempty"`
	MaxScore *float64           `json:"max_score,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis results.
type Store interface {
	// Analyses
	SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter Filter) ([]model.AnalysisRecord, error)

	// Critical issues, derived from knockout flags at save time
	ListCriticalIssues(ctx context.Context, analysisID string) ([]model.CriticalIssue, error)

	// Aggregates
	Stats(ctx context.Context, minPassingScore float64) (*model.AnalysisStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepare fills bookkeeping fields on a record before insert: ID,
// denormalized scenario and total, and the derived issue rows.
func prepare(rec *model.AnalysisRecord) []model.CriticalIssue {
	if rec.Call != nil {
		rec.ScenarioType = rec.Call.BasicInfo.ScenarioType
	}
	if rec.ScenarioType == "" {
		rec.ScenarioType = model.ScenarioUnknown
	}
	if rec.Score != nil {
		rec.TotalScore = rec.Score.TotalScore
		return model.CriticalIssuesFor(rec.ID, rec.Score.KnockoutViolations)
	}
	return nil
}
