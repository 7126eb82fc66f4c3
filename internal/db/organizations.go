package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Organization operations

// CreateOrganization creates a new organization
func (q *Queries) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}
	org.UpdatedAt = time.Now()
	if org.Status == "" {
		org.Status = "pending"
	}

	query := `
		INSERT INTO organizations (id, name, slug, description, parent_id, status, hsm_slot, admin_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.db.ExecContext(ctx, query,
		org.ID, org.Name, org.Slug, org.Description, org.ParentID,
		org.Status, org.HSMSlot, org.AdminEmail, org.CreatedAt, org.UpdatedAt)
	return err
}

// GetOrganization gets an organization by ID
func (q *Queries) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `
		SELECT id, name, slug, description, parent_id, status, hsm_slot, admin_email, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return q.scanOrganization(q.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationBySlug gets an organization by slug
func (q *Queries) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, description, parent_id, status, hsm_slot, admin_email, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`
	return q.scanOrganization(q.db.QueryRowContext(ctx, query, slug))
}

func (q *Queries) scanOrganization(row *sql.Row) (*Organization, error) {
	var org Organization
	var description, parentID, adminEmail sql.NullString
	var hsmSlot sql.NullInt64

	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &description, &parentID,
		&org.Status, &hsmSlot, &adminEmail, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		org.Description = description.String
	}
	if parentID.Valid {
		org.ParentID = &parentID.String
	}
	if hsmSlot.Valid {
		slot := int(hsmSlot.Int64)
		org.HSMSlot = &slot
	}
	if adminEmail.Valid {
		org.AdminEmail = adminEmail.String
	}
	return &org, nil
}

// ListOrganizations lists all organizations
func (q *Queries) ListOrganizations(ctx context.Context) ([]Organization, error) {
	query := `
		SELECT id, name, slug, description, parent_id, status, hsm_slot, admin_email, created_at, updated_at
		FROM organizations
		ORDER BY created_at DESC
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		var description, parentID, adminEmail sql.NullString
		var hsmSlot sql.NullInt64

		if err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &description, &parentID,
			&org.Status, &hsmSlot, &adminEmail, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}

		if description.Valid {
			org.Description = description.String
		}
		if parentID.Valid {
			org.ParentID = &parentID.String
		}
		if hsmSlot.Valid {
			slot := int(hsmSlot.Int64)
			org.HSMSlot = &slot
		}
		if adminEmail.Valid {
			org.AdminEmail = adminEmail.String
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// UpdateOrganization updates an organization
func (q *Queries) UpdateOrganization(ctx context.Context, org *Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations
		SET name = $2, description = $3, parent_id = $4, status = $5, hsm_slot = $6, admin_email = $7, updated_at = $8
		WHERE id = $1
	`
	_, err := q.db.ExecContext(ctx, query,
		org.ID, org.Name, org.Description, org.ParentID, org.Status,
		org.HSMSlot, org.AdminEmail, org.UpdatedAt)
	return err
}

// DeleteOrganization deletes an organization
func (q *Queries) DeleteOrganization(ctx context.Context, id string) error {
	query := `DELETE FROM organizations WHERE id = $1`
	_, err := q.db.ExecContext(ctx, query, id)
	return err
}
