// Package postgres implements quorum.Store on PostgreSQL. Vote admission is
// transactional: the vote row and the counter update commit or roll back
// together, and a unique (request_id, user_id) index backstops the duplicate
// check under concurrency.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Store is a PostgreSQL-backed quorum.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const requestColumns = `id, approval_type, title, description, entity_type, entity_id, entity_data,
	required_approvals, total_approvers, status, current_approvals, current_rejections,
	organization_id, created_by_id, created_at, expires_at, completed_at`

func (s *Store) CreateRequest(ctx context.Context, r *quorum.Request) error {
	query := `
		INSERT INTO approval_requests (id, approval_type, title, description, entity_type, entity_id, entity_data,
			required_approvals, total_approvers, status, current_approvals, current_rejections,
			organization_id, created_by_id, created_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.ApprovalType), r.Title, r.Description, r.EntityType, r.EntityID, r.EntityData,
		r.RequiredApprovals, r.TotalApprovers, string(r.Status), r.CurrentApprovals, r.CurrentRejections,
		r.OrganizationID, r.CreatedByID, r.CreatedAt, r.ExpiresAt, r.CompletedAt)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (*quorum.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1`
	return scanRequest(s.db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*quorum.Request, error) {
	var r quorum.Request
	var approvalType, status string
	var description, entityData, orgID sql.NullString
	var expiresAt, completedAt sql.NullTime

	err := row.Scan(
		&r.ID, &approvalType, &r.Title, &description, &r.EntityType, &r.EntityID, &entityData,
		&r.RequiredApprovals, &r.TotalApprovers, &status, &r.CurrentApprovals, &r.CurrentRejections,
		&orgID, &r.CreatedByID, &r.CreatedAt, &expiresAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, quorum.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.ApprovalType = quorum.ApprovalType(approvalType)
	r.Status = quorum.ApprovalStatus(status)
	if description.Valid {
		r.Description = description.String
	}
	if entityData.Valid {
		r.EntityData = entityData.String
	}
	if orgID.Valid {
		r.OrganizationID = &orgID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ExpiresAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	r.Votes = []quorum.Vote{}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, f quorum.RequestFilter) ([]*quorum.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE 1=1`
	args := []interface{}{}

	if f.Status != nil {
		args = append(args, string(*f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.OrganizationID != nil {
		args = append(args, *f.OrganizationID)
		query += fmt.Sprintf(` AND organization_id = $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC`

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*quorum.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	if requests == nil {
		requests = []*quorum.Request{}
	}
	return requests, rows.Err()
}

// UpdateRequest persists new state for a request that is still pending. A
// request already in a terminal state is left untouched and reported as a
// conflict.
func (s *Store) UpdateRequest(ctx context.Context, r *quorum.Request) error {
	query := `
		UPDATE approval_requests
		SET status = $2, current_approvals = $3, current_rejections = $4, completed_at = $5
		WHERE id = $1 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.Status), r.CurrentApprovals, r.CurrentRejections, r.CompletedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.updateConflict(ctx, r.ID)
	}
	return nil
}

// updateConflict distinguishes a missing request from one that reached a
// terminal state before this write.
func (s *Store) updateConflict(ctx context.Context, id string) error {
	current, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return quorum.NotPendingError(current.Status)
}

// AddVote inserts the vote row and applies the caller's updated counters and
// status in one transaction. The guarded UPDATE means a request that went
// terminal between the caller's read and this write aborts the whole unit.
func (s *Store) AddVote(ctx context.Context, v *quorum.Vote, r *quorum.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_votes (id, request_id, user_id, vote, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.RequestID, v.UserID, string(v.Decision), v.Comment, v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return quorum.ErrAlreadyVoted
		}
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $2, current_approvals = $3, current_rejections = $4, completed_at = $5
		WHERE id = $1 AND status = 'pending'
	`, r.ID, string(r.Status), r.CurrentApprovals, r.CurrentRejections, r.CompletedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.updateConflict(ctx, r.ID)
	}

	return tx.Commit()
}

func (s *Store) HasVote(ctx context.Context, requestID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM approval_votes WHERE request_id = $1 AND user_id = $2)
	`, requestID, userID).Scan(&exists)
	return exists, err
}

func (s *Store) ListVotes(ctx context.Context, requestID string) ([]quorum.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, user_id, vote, comment, created_at
		FROM approval_votes
		WHERE request_id = $1
		ORDER BY created_at ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []quorum.Vote{}
	for rows.Next() {
		var v quorum.Vote
		var decision string
		var comment sql.NullString

		if err := rows.Scan(&v.ID, &v.RequestID, &v.UserID, &decision, &comment, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Decision = quorum.VoteDecision(decision)
		if comment.Valid {
			v.Comment = comment.String
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *Store) ListExpiredPending(ctx context.Context, now time.Time) ([]*quorum.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*quorum.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

var _ quorum.Store = (*Store)(nil)
