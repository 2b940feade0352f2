// Package history implements the Execution History Store (C13): an
// append-only SQLite-backed record of executions and tool outcomes used
// by the Adaptive Analyzer for misroute detection. Grounded on
// original_source/tools/execution_history.py's ExecutionHistory, backed
// by modernc.org/sqlite per internal/memory/backend/sqlitevec's
// pure-Go-driver convention.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store is an append-only SQLite store for ExecutionRecords and their
// tool outcomes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path (":memory:" for an
// ephemeral in-process store) and ensures its schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			request TEXT NOT NULL,
			tier TEXT,
			intent TEXT,
			creative INTEGER,
			multi_file INTEGER,
			expected_ops INTEGER,
			mode TEXT,
			model_primary TEXT,
			model_plan TEXT,
			model_exec TEXT,
			success INTEGER NOT NULL,
			duration_seconds REAL,
			error_kind TEXT,
			error_msg TEXT,
			tool_call_count INTEGER,
			swap_seconds REAL,
			tokens INTEGER,
			session_id TEXT,
			agent_version TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tool_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id INTEGER NOT NULL REFERENCES executions(id),
			name TEXT NOT NULL,
			params_json TEXT,
			success INTEGER NOT NULL,
			duration_seconds REAL,
			error_msg TEXT,
			ts TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_ts ON executions(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_tier ON executions(tier)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_mode ON executions(mode)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_success ON executions(success)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// LogExecution appends rec and its ToolCalls atomically, returning the
// assigned execution ID.
func (s *Store) LogExecution(ctx context.Context, rec core.ExecutionRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO executions (
			ts, request, tier, intent, creative, multi_file, expected_ops,
			mode, model_primary, model_plan, model_exec,
			success, duration_seconds, error_kind, error_msg,
			tool_call_count, swap_seconds, tokens, session_id, agent_version
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		timestamp(rec.Timestamp), rec.Request, string(rec.Classification.Tier), "",
		boolInt(rec.Classification.Characteristics.Creative), boolInt(rec.Classification.Characteristics.MultiFile),
		rec.Classification.Characteristics.ExpectedOps,
		string(rec.Mode), string(rec.ModelPrimary), string(rec.ModelPlanning), string(rec.ModelExecution),
		boolInt(rec.Success), rec.Duration.Seconds(), rec.ErrorKind, rec.ErrorMessage,
		len(rec.ToolCalls), rec.SwapSeconds, rec.Tokens, rec.SessionID, rec.AgentVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, tc := range rec.ToolCalls {
		if err := s.logToolResultTx(ctx, tx, id, tc); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LogToolResult appends a single tool outcome row for an already-logged
// execution.
func (s *Store) LogToolResult(ctx context.Context, executionID int64, outcome core.ToolCallOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.logToolResultTx(ctx, tx, executionID, outcome); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) logToolResultTx(ctx context.Context, tx *sql.Tx, executionID int64, outcome core.ToolCallOutcome) error {
	params, _ := json.Marshal(outcome.Params)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tool_results (execution_id, name, params_json, success, duration_seconds, error_msg, ts)
		VALUES (?,?,?,?,?,?,?)`,
		executionID, outcome.Name, string(params), boolInt(outcome.Success), outcome.Duration.Seconds(), outcome.Error, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert tool_result: %w", err)
	}
	return nil
}

// Row is a read-projected execution row.
type Row struct {
	ID             int64
	Timestamp      time.Time
	Request        string
	Tier           string
	Creative       bool
	MultiFile      bool
	Mode           string
	Success        bool
	Duration       time.Duration
	ErrorKind      string
	ErrorMessage   string
	ToolCallCount  int
	SwapSeconds    float64
	Tokens         int
	SessionID      string
}

// Recent returns the n most recently logged executions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, request, tier, creative, multi_file, mode, success,
		       duration_seconds, error_kind, error_msg, tool_call_count, swap_seconds, tokens, session_id
		FROM executions ORDER BY ts DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Errors returns the n most recent failed executions with a non-empty
// error kind, matching get_error_patterns.
func (s *Store) Errors(ctx context.Context, n int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, request, tier, creative, multi_file, mode, success,
		       duration_seconds, error_kind, error_msg, tool_call_count, swap_seconds, tokens, session_id
		FROM executions
		WHERE success = 0 AND error_kind IS NOT NULL AND error_kind != ''
		ORDER BY ts DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var ts string
		var creative, multiFile, success int
		var duration, swap sql.NullFloat64
		var errorKind, errorMsg, sessionID sql.NullString
		var toolCalls, tokens sql.NullInt64

		if err := rows.Scan(&r.ID, &ts, &r.Request, &r.Tier, &creative, &multiFile, &r.Mode, &success,
			&duration, &errorKind, &errorMsg, &toolCalls, &swap, &tokens, &sessionID); err != nil {
			return nil, err
		}

		r.Timestamp = parseTimestamp(ts)
		r.Creative = creative != 0
		r.MultiFile = multiFile != 0
		r.Success = success != 0
		r.Duration = time.Duration(duration.Float64 * float64(time.Second))
		r.ErrorKind = errorKind.String
		r.ErrorMessage = errorMsg.String
		r.ToolCallCount = int(toolCalls.Int64)
		r.SwapSeconds = swap.Float64
		r.Tokens = int(tokens.Int64)
		r.SessionID = sessionID.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RoutingStatsGroup is one (mode, tier) aggregate.
type RoutingStatsGroup struct {
	Mode        string
	Tier        string
	Count       int
	SuccessRate float64
	AvgDuration float64
}

// RoutingStats aggregates success rate and average duration by
// (execution_mode, tier), matching get_routing_stats.
func (s *Store) RoutingStats(ctx context.Context) ([]RoutingStatsGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mode, tier, COUNT(*),
		       AVG(CASE WHEN success = 1 THEN 1.0 ELSE 0.0 END),
		       AVG(duration_seconds)
		FROM executions GROUP BY mode, tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoutingStatsGroup
	for rows.Next() {
		var g RoutingStatsGroup
		var avgDuration sql.NullFloat64
		if err := rows.Scan(&g.Mode, &g.Tier, &g.Count, &g.SuccessRate, &avgDuration); err != nil {
			return nil, err
		}
		g.AvgDuration = avgDuration.Float64
		out = append(out, g)
	}
	return out, rows.Err()
}

// Misroute is one (tier, multi_file, mode) combination whose success
// rate fell below threshold with at least minSamples observations.
type Misroute struct {
	Tier        string
	MultiFile   bool
	Mode        string
	Total       int
	Successes   int
	SuccessRate float64
	AvgDuration float64
}

// Misroutes identifies (tier, multi_file, mode) combinations with
// count ≥ minSamples and success_rate < threshold, matching
// get_misroutes.
func (s *Store) Misroutes(ctx context.Context, threshold float64, minSamples int) ([]Misroute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, multi_file, mode, COUNT(*) AS total,
		       SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) AS successes,
		       AVG(duration_seconds)
		FROM executions
		GROUP BY tier, multi_file, mode
		HAVING total >= ? AND (CAST(successes AS REAL) / total) < ?`, minSamples, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Misroute
	for rows.Next() {
		var m Misroute
		var multiFile int
		var avgDuration sql.NullFloat64
		if err := rows.Scan(&m.Tier, &multiFile, &m.Mode, &m.Total, &m.Successes, &avgDuration); err != nil {
			return nil, err
		}
		m.MultiFile = multiFile != 0
		m.AvgDuration = avgDuration.Float64
		if m.Total > 0 {
			m.SuccessRate = float64(m.Successes) / float64(m.Total)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Summary is the overall stats summary, matching get_stats_summary.
type Summary struct {
	TotalExecutions int
	SuccessRate     float64
	AvgDuration     float64
	ModeCounts      map[string]int
}

// Summary returns aggregate statistics across all logged executions.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{ModeCounts: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions`).Scan(&sum.TotalExecutions); err != nil {
		return sum, err
	}

	var successRate, avgDuration sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT AVG(CASE WHEN success = 1 THEN 1.0 ELSE 0.0 END) FROM executions`).Scan(&successRate); err != nil {
		return sum, err
	}
	sum.SuccessRate = successRate.Float64

	if err := s.db.QueryRowContext(ctx, `SELECT AVG(duration_seconds) FROM executions`).Scan(&avgDuration); err != nil {
		return sum, err
	}
	sum.AvgDuration = avgDuration.Float64

	rows, err := s.db.QueryContext(ctx, `SELECT mode, COUNT(*) FROM executions GROUP BY mode`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return sum, err
		}
		sum.ModeCounts[mode] = count
	}
	return sum, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
