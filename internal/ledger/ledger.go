package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Driver

	"github.com/brensch/packgrab/internal/progress"
)

// Schema SQL
const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS pack_event_log_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS pack_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('pack_event_log_id_seq'),
    run_id          VARCHAR NOT NULL,
    pack_id         INTEGER NOT NULL,
    status          VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    message         VARCHAR
);
CREATE INDEX IF NOT EXISTS idx_pack_event_log_run ON pack_event_log (run_id, pack_id);
`

// Ledger records every status change of one run in DuckDB. Rows are keyed
// by run id and nothing is ever read back across runs.
type Ledger struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	pushErr int
}

// Open connects to the DuckDB database at path (":memory:" for a throwaway
// database) and prepares the schema.
func Open(ctx context.Context, path, runID string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database (%s): %w", path, err)
	}
	// A second connection to ":memory:" would be a different database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb database (%s): %w", path, err)
	}
	if err := InitializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db, runID: runID, logger: logger}, nil
}

// InitializeSchema creates the sequence and table in the correct order.
func InitializeSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSequenceSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	_, err = db.ExecContext(ctx, schemaTableSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// RunID returns the id every row of this ledger is written under.
func (l *Ledger) RunID() string { return l.runID }

// LogEvent inserts one status change.
func (l *Ledger) LogEvent(ctx context.Context, packID int, status progress.Status, message string) error {
	query := `
        INSERT INTO pack_event_log (run_id, pack_id, status, event_timestamp, message)
        VALUES (?, ?, ?, ?, ?);
    `
	_, err := l.db.ExecContext(ctx, query,
		l.runID,
		packID,
		string(status),
		time.Now().UTC(),
		sql.NullString{String: message, Valid: message != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to log status '%s' for pack %d: %w", status, packID, err)
	}
	return nil
}

// Push implements progress.Sink. Insert failures are logged and otherwise
// ignored.
func (l *Ledger) Push(id int, status progress.Status, detail string) {
	if err := l.LogEvent(context.Background(), id, status, detail); err != nil {
		l.mu.Lock()
		l.pushErr++
		l.mu.Unlock()
		l.logger.Warn("Failed to record status in ledger.", slog.Int("pack_id", id), "error", err)
	}
}

// Summary is the final state of every pack id seen in one run.
type Summary struct {
	RunID      string
	Finished   int
	Failed     int
	Unfinished int
	Events     int
}

// Summary counts ids by their latest status in this run.
func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	query := `
        WITH latest AS (
            SELECT pack_id, status,
                   ROW_NUMBER() OVER (PARTITION BY pack_id ORDER BY log_id DESC) AS rn
            FROM pack_event_log
            WHERE run_id = ?
        )
        SELECT
            COUNT(*) FILTER (WHERE status = 'finished'),
            COUNT(*) FILTER (WHERE status = 'failed'),
            COUNT(*) FILTER (WHERE status NOT IN ('finished', 'failed'))
        FROM latest
        WHERE rn = 1;
    `
	s := Summary{RunID: l.runID}
	if err := l.db.QueryRowContext(ctx, query, l.runID).Scan(&s.Finished, &s.Failed, &s.Unfinished); err != nil {
		return s, fmt.Errorf("failed to summarise run %s: %w", l.runID, err)
	}
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pack_event_log WHERE run_id = ?;`, l.runID).Scan(&s.Events); err != nil {
		return s, fmt.Errorf("failed to count events for run %s: %w", l.runID, err)
	}
	return s, nil
}

// History returns the statuses recorded for packID in this run, oldest first.
func (l *Ledger) History(ctx context.Context, packID int) ([]progress.Status, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT status FROM pack_event_log WHERE run_id = ? AND pack_id = ? ORDER BY log_id;`,
		l.runID, packID)
	if err != nil {
		return nil, fmt.Errorf("failed query history for pack %d: %w", packID, err)
	}
	defer rows.Close()

	var out []progress.Status
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed scan history for pack %d: %w", packID, err)
		}
		out = append(out, progress.Status(s))
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	l.mu.Lock()
	dropped := l.pushErr
	l.mu.Unlock()
	if dropped > 0 {
		l.logger.Warn("Some status changes were not recorded in the ledger.", slog.Int("dropped", dropped))
	}
	return l.db.Close()
}
