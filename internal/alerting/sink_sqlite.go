package alerting

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS alert_log (
	id           TEXT PRIMARY KEY,
	rule_id      TEXT NOT NULL,
	severity     TEXT NOT NULL,
	message      TEXT NOT NULL,
	metric_value REAL NOT NULL,
	threshold    REAL NOT NULL,
	triggered_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_log_rule ON alert_log(rule_id);
CREATE INDEX IF NOT EXISTS idx_alert_log_time ON alert_log(triggered_at);
`

// SQLiteSink appends fired alerts to a local SQLite audit log. It is a
// write-only side channel like the webhook: the engine never reads the log
// back, so the in-memory state still rebuilds from scratch on restart.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if needed) the audit database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging audit log: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit log schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite" }

// Emit implements Sink.
func (s *SQLiteSink) Emit(ctx context.Context, alert *Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_log (id, rule_id, severity, message, metric_value, threshold, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.RuleID, string(alert.Severity), alert.Message,
		alert.MetricValue, alert.Threshold, alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording alert %s: %w", alert.ID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
