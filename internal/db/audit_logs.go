package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Audit log operations

// CreateAuditLog creates a new audit log entry
func (q *Queries) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	changesJSON, _ := json.Marshal(log.Changes)

	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.Action, log.EntityType, log.EntityID,
		changesJSON, log.IPAddress, log.UserAgent, log.CreatedAt)
	return err
}

// AuditLogFilter narrows audit log listings
type AuditLogFilter struct {
	UserID     *string
	Action     *string
	EntityType *string
	Limit      int
	Offset     int
}

// ListAuditLogs lists audit logs with filtering, newest first
func (q *Queries) ListAuditLogs(ctx context.Context, f AuditLogFilter) ([]AuditLog, error) {
	query := `
		SELECT id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if f.UserID != nil {
		query += ` AND user_id = $` + strconv.Itoa(argIdx)
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Action != nil {
		query += ` AND action = $` + strconv.Itoa(argIdx)
		args = append(args, *f.Action)
		argIdx++
	}
	if f.EntityType != nil {
		query += ` AND entity_type = $` + strconv.Itoa(argIdx)
		args = append(args, *f.EntityType)
		argIdx++
	}

	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + strconv.Itoa(argIdx)
	args = append(args, limit)
	argIdx++

	if f.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(argIdx)
		args = append(args, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var entityID, ipAddress, userAgent sql.NullString
		var changesJSON []byte

		if err := rows.Scan(
			&log.ID, &log.UserID, &log.Action, &log.EntityType, &entityID,
			&changesJSON, &ipAddress, &userAgent, &log.CreatedAt); err != nil {
			return nil, err
		}

		if entityID.Valid {
			log.EntityID = &entityID.String
		}
		if ipAddress.Valid {
			log.IPAddress = &ipAddress.String
		}
		if userAgent.Valid {
			log.UserAgent = &userAgent.String
		}
		if len(changesJSON) > 0 {
			json.Unmarshal(changesJSON, &log.Changes)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// GetAuditLog gets a single audit log entry
func (q *Queries) GetAuditLog(ctx context.Context, id string) (*AuditLog, error) {
	query := `
		SELECT id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE id = $1
	`
	var log AuditLog
	var entityID, ipAddress, userAgent sql.NullString
	var changesJSON []byte

	err := q.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID, &log.UserID, &log.Action, &log.EntityType, &entityID,
		&changesJSON, &ipAddress, &userAgent, &log.CreatedAt)
	if err != nil {
		return nil, err
	}

	if entityID.Valid {
		log.EntityID = &entityID.String
	}
	if ipAddress.Valid {
		log.IPAddress = &ipAddress.String
	}
	if userAgent.Valid {
		log.UserAgent = &userAgent.String
	}
	if len(changesJSON) > 0 {
		json.Unmarshal(changesJSON, &log.Changes)
	}
	return &log, nil
}
