package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kolektra/callqa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	total_score REAL NOT NULL,
	transcript  TEXT NOT NULL,
	call_data   TEXT,
	qa_score    TEXT,
	usage       TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS critical_issues (
	id          TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id),
	issue_type  TEXT NOT NULL,
	detail      TEXT,
	evidence    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_scenario ON analyses(scenario);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_total_score ON analyses(total_score);
CREATE INDEX IF NOT EXISTS idx_critical_issues_analysis_id ON critical_issues(analysis_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().UTC()
	issues := prepare(&rec)

	callJSON, scoreJSON, usageJSON, err := marshalRecord(&rec)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, scenario, total_score, transcript, call_data, qa_score, usage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.ScenarioType), rec.TotalScore, rec.Transcript,
		callJSON, scoreJSON, usageJSON, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
	}

	for _, issue := range issues {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO critical_issues (id, analysis_id, issue_type, detail, evidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), rec.ID, issue.IssueType, issue.Detail, issue.Evidence, rec.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert critical issue")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return &rec, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, total_score, transcript, call_data, qa_score, usage, created_at
		 FROM analyses WHERE id = ?`,
		id,
	)
	rec, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "analysis %s", id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter Filter) ([]model.AnalysisRecord, error) {
	query := `SELECT id, scenario, total_score, transcript, call_data, qa_score, usage, created_at
	          FROM analyses WHERE 1=1`
	var args []any

	if filter.Scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, string(filter.Scenario))
	}
	if filter.MinScore != nil {
		query += ` AND total_score >= ?`
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query += ` AND total_score <= ?`
		args = append(args, *filter.MaxScore)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var recs []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) ListCriticalIssues(ctx context.Context, analysisID string) ([]model.CriticalIssue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, analysis_id, issue_type, detail, evidence, created_at
		 FROM critical_issues WHERE analysis_id = ? ORDER BY created_at`,
		analysisID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list critical issues")
	}
	defer rows.Close()

	var issues []model.CriticalIssue
	for rows.Next() {
		var issue model.CriticalIssue
		var detail, evidence sql.NullString
		if err := rows.Scan(&issue.ID, &issue.AnalysisID, &issue.IssueType, &detail, &evidence, &issue.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan critical issue")
		}
		issue.Detail = detail.String
		issue.Evidence = evidence.String
		issues = append(issues, issue)
	}
	return issues, eris.Wrap(rows.Err(), "sqlite: list critical issues iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context, minPassingScore float64) (*model.AnalysisStats, error) {
	stats := &model.AnalysisStats{
		ScenarioDistribution: make(map[model.ScenarioType]int),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(total_score), 0),
		        COALESCE(AVG(CASE WHEN total_score >= ? THEN 1.0 ELSE 0.0 END), 0)
		 FROM analyses`,
		minPassingScore,
	)
	if err := row.Scan(&stats.TotalAnalyses, &stats.AverageScore, &stats.PassingRate); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario, COUNT(*) FROM analyses GROUP BY scenario`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats distribution")
	}
	defer rows.Close()

	for rows.Next() {
		var scenario string
		var n int
		if err := rows.Scan(&scenario, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan distribution")
		}
		stats.ScenarioDistribution[model.ScenarioType(scenario)] = n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

// helpers

func marshalRecord(rec *model.AnalysisRecord) (callJSON, scoreJSON sql.NullString, usageJSON string, err error) {
	if rec.Call != nil {
		b, merr := json.Marshal(rec.Call)
		if merr != nil {
			err = eris.Wrap(merr, "marshal call data")
			return
		}
		callJSON = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Score != nil {
		b, merr := json.Marshal(rec.Score)
		if merr != nil {
			err = eris.Wrap(merr, "marshal qa score")
			return
		}
		scoreJSON = sql.NullString{String: string(b), Valid: true}
	}
	b, merr := json.Marshal(rec.Usage)
	if merr != nil {
		err = eris.Wrap(merr, "marshal usage")
		return
	}
	usageJSON = string(b)
	return
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var callJSON, scoreJSON sql.NullString
	var usageJSON string

	err := row.Scan(&rec.ID, &rec.ScenarioType, &rec.TotalScore, &rec.Transcript,
		&callJSON, &scoreJSON, &usageJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "scan analysis")
	}

	if callJSON.Valid {
		rec.Call = &model.CallData{}
		if err := json.Unmarshal([]byte(callJSON.String), rec.Call); err != nil {
			return nil, eris.Wrap(err, "unmarshal call data")
		}
	}
	if scoreJSON.Valid {
		rec.Score = &model.QAScore{}
		if err := json.Unmarshal([]byte(scoreJSON.String), rec.Score); err != nil {
			return nil, eris.Wrap(err, "unmarshal qa score")
		}
	}
	if err := json.Unmarshal([]byte(usageJSON), &rec.Usage); err != nil {
		return nil, eris.Wrap(err, "unmarshal usage")
	}
	return &rec, nil
}
