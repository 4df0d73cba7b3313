package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger writes audit events to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the audit_events table if it doesn't exist. The probe
// keeps the Postgres DDL from running against an already-provisioned schema
// (tests pre-create a SQLite-compatible table).
func (l *DBLogger) ensureTable() error {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM audit_events`).Scan(&n); err == nil {
		return nil
	}

	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id VARCHAR(100),
		role VARCHAR(100),
		tenant_id VARCHAR(100),
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		request_id VARCHAR(100),
		message TEXT,
		error_message TEXT,
		metadata JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_id ON audit_events(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log inserts an audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (timestamp, event_type, status, user_id, role, tenant_id, resource_type, resource_id, request_id, message, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.Timestamp,
		string(event.EventType),
		string(event.Status),
		event.UserID,
		event.Role,
		event.TenantID,
		string(event.ResourceType),
		event.ResourceID,
		event.RequestID,
		event.Message,
		event.ErrorMessage,
		string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the DB connection is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
