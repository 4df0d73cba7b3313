package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store queries and prunes persisted audit events
type Store struct {
	db *sql.DB
}

// NewStore creates a store over the audit_events table
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Search returns audit events matching the filter, newest first
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if filter.StartTime != nil {
		addCondition("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addCondition("timestamp <= $%d", *filter.EndTime)
	}
	if filter.UserID != "" {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.TenantID != "" {
		addCondition("tenant_id = $%d", filter.TenantID)
	}
	if filter.Status != nil {
		addCondition("status = $%d", string(*filter.Status))
	}
	if filter.ResourceType != "" {
		addCondition("resource_type = $%d", string(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		addCondition("resource_id = $%d", filter.ResourceID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = fmt.Sprintf("$%d", argPos)
			args = append(args, string(et))
			argPos++
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := `SELECT id, timestamp, event_type, status, user_id, role, tenant_id, resource_type, resource_id, request_id, message, error_message, metadata FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes events with a timestamp before the cutoff and
// returns the number of rows deleted
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return result.RowsAffected()
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var eventType, status, resourceType string
	var metadata sql.NullString

	err := rows.Scan(
		&event.ID,
		&event.Timestamp,
		&eventType,
		&status,
		&event.UserID,
		&event.Role,
		&event.TenantID,
		&resourceType,
		&event.ResourceID,
		&event.RequestID,
		&event.Message,
		&event.ErrorMessage,
		&metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.EventType = EventType(eventType)
	event.Status = EventStatus(status)
	event.ResourceType = ResourceType(resourceType)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
	}
	return &event, nil
}
