// Package auditstore persists a record of every evaluated
// (input, policy) decision to a SQLite database — ambient
// observability over an evaluation run, not a new policy semantic. It
// is optional: a run can proceed without an audit store configured.
package auditstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ansible-policy/gatekeeper/internal/result"
)

// Store is a SQLite-backed audit trail of evaluation decisions.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database under basePath and
// ensures its schema exists.
func Open(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	dbPath := filepath.Join(basePath, "audit.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id TEXT NOT NULL UNIQUE,
	run_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	policy_name TEXT NOT NULL,
	target TEXT NOT NULL,
	validated TEXT NOT NULL,
	action_type TEXT,
	message TEXT,
	evaluated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_policy_name ON decisions(policy_name);
`)
	return err
}

// RecordRun persists every TargetResult in run under one runID, one
// row per (input, policy) evaluation.
func (s *Store) RecordRun(runID string, run result.Run) error {
	evaluatedAt := time.Now().UTC().Format(time.RFC3339)
	for _, f := range run.Files {
		for _, p := range f.Policies {
			for _, t := range p.Targets {
				if err := s.insertDecision(runID, f.Path, p.PolicyName, t, evaluatedAt); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Store) insertDecision(runID, filePath, policyName string, t result.TargetResult, evaluatedAt string) error {
	_, err := s.db.Exec(`
INSERT INTO decisions (decision_id, run_id, file_path, policy_name, target, validated, action_type, message, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, filePath, policyName, t.Target, string(t.Validated), t.ActionType, t.Message, evaluatedAt)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// CountViolationsSince returns how many deny/allow violations were
// recorded at or after since, across all runs.
func (s *Store) CountViolationsSince(since time.Time) (int, error) {
	row := s.db.QueryRow(`
SELECT COUNT(*) FROM decisions
WHERE validated = 'false' AND action_type IN ('deny', 'allow') AND evaluated_at >= ?`,
		since.UTC().Format(time.RFC3339))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}

// ListOptions filters ListDecisions.
type ListOptions struct {
	RunID      string
	PolicyName string
	Limit      int
}

// Decision is one persisted audit row.
type Decision struct {
	DecisionID  string
	RunID       string
	FilePath    string
	PolicyName  string
	Target      string
	Validated   string
	ActionType  string
	Message     string
	EvaluatedAt time.Time
}

// ListDecisions retrieves persisted decisions with optional filters,
// most recent first.
func (s *Store) ListDecisions(opts ListOptions) ([]Decision, error) {
	query := `SELECT decision_id, run_id, file_path, policy_name, target, validated, action_type, message, evaluated_at
		FROM decisions WHERE 1=1`
	var args []any
	if opts.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.PolicyName != "" {
		query += " AND policy_name = ?"
		args = append(args, opts.PolicyName)
	}
	query += " ORDER BY evaluated_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Decision
	for rows.Next() {
		var d Decision
		var evaluatedAt string
		if err := rows.Scan(&d.DecisionID, &d.RunID, &d.FilePath, &d.PolicyName, &d.Target, &d.Validated, &d.ActionType, &d.Message, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.EvaluatedAt, _ = time.Parse(time.RFC3339, evaluatedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}
