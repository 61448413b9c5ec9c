package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kolektra/callqa/internal/db"
	"github.com/kolektra/callqa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_analysis": `INSERT INTO analyses (id, scenario, total_score, transcript, call_data, qa_score, usage, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_analysis":    `SELECT id, scenario, total_score, transcript, call_data, qa_score, usage, created_at FROM analyses WHERE id = $1`,
	"list_issues":     `SELECT id, analysis_id, issue_type, detail, evidence, created_at FROM critical_issues WHERE analysis_id = $1 ORDER BY created_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used in tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scenario    TEXT NOT NULL,
	total_score DOUBLE PRECISION NOT NULL,
	transcript  TEXT NOT NULL,
	call_data   JSONB,
	qa_score    JSONB,
	usage       JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS critical_issues (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	analysis_id TEXT NOT NULL REFERENCES analyses(id),
	issue_type  TEXT NOT NULL,
	detail      TEXT,
	evidence    TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_scenario ON analyses(scenario);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_total_score ON analyses(total_score);
CREATE INDEX IF NOT EXISTS idx_critical_issues_analysis_id ON critical_issues(analysis_id);
CREATE INDEX IF NOT EXISTS idx_critical_issues_type ON critical_issues(issue_type);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().UTC()
	issues := prepare(&rec)

	var callJSON, scoreJSON []byte
	var err error
	if rec.Call != nil {
		if callJSON, err = json.Marshal(rec.Call); err != nil {
			return nil, eris.Wrap(err, "postgres: marshal call data")
		}
	}
	if rec.Score != nil {
		if scoreJSON, err = json.Marshal(rec.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: marshal qa score")
		}
	}
	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal usage")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, scenario, total_score, transcript, call_data, qa_score, usage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, string(rec.ScenarioType), rec.TotalScore, rec.Transcript,
		callJSON, scoreJSON, usageJSON, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
	}

	if len(issues) > 0 {
		rows := make([][]any, 0, len(issues))
		for _, issue := range issues {
			rows = append(rows, []any{
				uuid.New().String(), rec.ID, issue.IssueType, issue.Detail, issue.Evidence, rec.CreatedAt,
			})
		}
		columns := []string{"id", "analysis_id", "issue_type", "detail", "evidence", "created_at"}
		if _, err := db.CopyFrom(ctx, s.pool, "critical_issues", columns, rows); err != nil {
			return nil, eris.Wrap(err, "postgres: insert critical issues")
		}
	}

	return &rec, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, scenario, total_score, transcript, call_data, qa_score, usage, created_at
		 FROM analyses WHERE id = $1`,
		id,
	)
	rec, err := scanAnalysisPg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "analysis %s", id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter Filter) ([]model.AnalysisRecord, error) {
	query := `SELECT id, scenario, total_score, transcript, call_data, qa_score, usage, created_at
	          FROM analyses WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Scenario != "" {
		query += ` AND scenario = ` + arg(string(filter.Scenario))
	}
	if filter.MinScore != nil {
		query += ` AND total_score >= ` + arg(*filter.MinScore)
	}
	if filter.MaxScore != nil {
		query += ` AND total_score <= ` + arg(*filter.MaxScore)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var recs []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysisPg(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) ListCriticalIssues(ctx context.Context, analysisID string) ([]model.CriticalIssue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, analysis_id, issue_type, detail, evidence, created_at
		 FROM critical_issues WHERE analysis_id = $1 ORDER BY created_at`,
		analysisID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list critical issues")
	}
	defer rows.Close()

	var issues []model.CriticalIssue
	for rows.Next() {
		var issue model.CriticalIssue
		var detail, evidence *string
		if err := rows.Scan(&issue.ID, &issue.AnalysisID, &issue.IssueType, &detail, &evidence, &issue.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan critical issue")
		}
		if detail != nil {
			issue.Detail = *detail
		}
		if evidence != nil {
			issue.Evidence = *evidence
		}
		issues = append(issues, issue)
	}
	return issues, eris.Wrap(rows.Err(), "postgres: list critical issues iterate")
}

func (s *PostgresStore) Stats(ctx context.Context, minPassingScore float64) (*model.AnalysisStats, error) {
	stats := &model.AnalysisStats{
		ScenarioDistribution: make(map[model.ScenarioType]int),
	}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(total_score), 0),
		        COALESCE(AVG(CASE WHEN total_score >= $1 THEN 1.0 ELSE 0.0 END), 0)
		 FROM analyses`,
		minPassingScore,
	)
	if err := row.Scan(&stats.TotalAnalyses, &stats.AverageScore, &stats.PassingRate); err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}

	rows, err := s.pool.Query(ctx, `SELECT scenario, COUNT(*) FROM analyses GROUP BY scenario`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats distribution")
	}
	defer rows.Close()

	for rows.Next() {
		var scenario string
		var n int
		if err := rows.Scan(&scenario, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan distribution")
		}
		stats.ScenarioDistribution[model.ScenarioType(scenario)] = n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

// helpers

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func scanAnalysisPg(row pgx.Row) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var callJSON, scoreJSON []byte
	var usageJSON []byte

	err := row.Scan(&rec.ID, &rec.ScenarioType, &rec.TotalScore, &rec.Transcript,
		&callJSON, &scoreJSON, &usageJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}

	if len(callJSON) > 0 {
		rec.Call = &model.CallData{}
		if err := json.Unmarshal(callJSON, rec.Call); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal call data")
		}
	}
	if len(scoreJSON) > 0 {
		rec.Score = &model.QAScore{}
		if err := json.Unmarshal(scoreJSON, rec.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal qa score")
		}
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &rec.Usage); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal usage")
		}
	}
	return &rec, nil
}
