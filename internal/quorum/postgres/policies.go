package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

const policyColumns = `id, organization_id, approval_type, required_approvals, total_approvers,
	expiry_hours, is_enabled, created_at, updated_at`

func (s *Store) CreatePolicy(ctx context.Context, p *quorum.Policy) error {
	query := `
		INSERT INTO quorum_policies (id, organization_id, approval_type, required_approvals, total_approvers,
			expiry_hours, is_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.OrganizationID, string(p.ApprovalType), p.RequiredApprovals, p.TotalApprovers,
		p.ExpiryHours, p.IsEnabled, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) GetPolicy(ctx context.Context, id string) (*quorum.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM quorum_policies WHERE id = $1`
	return scanPolicy(s.db.QueryRowContext(ctx, query, id))
}

func scanPolicy(row rowScanner) (*quorum.Policy, error) {
	var p quorum.Policy
	var orgID sql.NullString
	var approvalType string

	err := row.Scan(
		&p.ID, &orgID, &approvalType, &p.RequiredApprovals, &p.TotalApprovers,
		&p.ExpiryHours, &p.IsEnabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, quorum.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.ApprovalType = quorum.ApprovalType(approvalType)
	if orgID.Valid {
		p.OrganizationID = &orgID.String
	}
	return &p, nil
}

func (s *Store) UpdatePolicy(ctx context.Context, p *quorum.Policy) error {
	query := `
		UPDATE quorum_policies
		SET approval_type = $2, required_approvals = $3, total_approvers = $4,
			expiry_hours = $5, is_enabled = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.ApprovalType), p.RequiredApprovals, p.TotalApprovers,
		p.ExpiryHours, p.IsEnabled, p.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return quorum.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quorum_policies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return quorum.ErrNotFound
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, organizationID *string) ([]*quorum.Policy, error) {
	var rows *sql.Rows
	var err error

	if organizationID != nil {
		query := `SELECT ` + policyColumns + ` FROM quorum_policies WHERE organization_id = $1 ORDER BY created_at ASC`
		rows, err = s.db.QueryContext(ctx, query, *organizationID)
	} else {
		query := `SELECT ` + policyColumns + ` FROM quorum_policies ORDER BY created_at ASC`
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := []*quorum.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *Store) FindEnabledPolicy(ctx context.Context, approvalType quorum.ApprovalType, organizationID *string) (*quorum.Policy, error) {
	if organizationID != nil {
		query := `SELECT ` + policyColumns + `
			FROM quorum_policies
			WHERE approval_type = $1 AND organization_id = $2 AND is_enabled
			LIMIT 1`
		return scanPolicy(s.db.QueryRowContext(ctx, query, string(approvalType), *organizationID))
	}

	query := `SELECT ` + policyColumns + `
		FROM quorum_policies
		WHERE approval_type = $1 AND organization_id IS NULL AND is_enabled
		LIMIT 1`
	return scanPolicy(s.db.QueryRowContext(ctx, query, string(approvalType)))
}
