package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PKCS#11 key operations

// CreateKey creates a new key record
func (q *Queries) CreateKey(ctx context.Context, key *Pkcs11Key) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	key.UpdatedAt = time.Now()
	if key.Status == "" {
		key.Status = "pending"
	}

	query := `
		INSERT INTO pkcs11_keys (id, name, algorithm, key_size, curve, fingerprint, hsm_slot, organization_id, status, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.db.ExecContext(ctx, query,
		key.ID, key.Name, key.Algorithm, key.KeySize, key.Curve, key.Fingerprint,
		key.HSMSlot, key.OrganizationID, key.Status, key.CreatedByID, key.CreatedAt, key.UpdatedAt)
	return err
}

// GetKey gets a key by ID
func (q *Queries) GetKey(ctx context.Context, id string) (*Pkcs11Key, error) {
	query := `
		SELECT id, name, algorithm, key_size, curve, fingerprint, hsm_slot, organization_id, status, created_by_id, created_at, updated_at
		FROM pkcs11_keys
		WHERE id = $1
	`
	var key Pkcs11Key
	var keySize sql.NullInt64
	var curve, orgID sql.NullString

	err := q.db.QueryRowContext(ctx, query, id).Scan(
		&key.ID, &key.Name, &key.Algorithm, &keySize, &curve, &key.Fingerprint,
		&key.HSMSlot, &orgID, &key.Status, &key.CreatedByID, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if keySize.Valid {
		size := int(keySize.Int64)
		key.KeySize = &size
	}
	if curve.Valid {
		key.Curve = &curve.String
	}
	if orgID.Valid {
		key.OrganizationID = &orgID.String
	}
	return &key, nil
}

// ListKeys lists keys, optionally scoped to an organization
func (q *Queries) ListKeys(ctx context.Context, organizationID *string) ([]Pkcs11Key, error) {
	var rows *sql.Rows
	var err error

	if organizationID != nil {
		query := `
			SELECT id, name, algorithm, key_size, curve, fingerprint, hsm_slot, organization_id, status, created_by_id, created_at, updated_at
			FROM pkcs11_keys
			WHERE organization_id = $1
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query, *organizationID)
	} else {
		query := `
			SELECT id, name, algorithm, key_size, curve, fingerprint, hsm_slot, organization_id, status, created_by_id, created_at, updated_at
			FROM pkcs11_keys
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []Pkcs11Key
	for rows.Next() {
		var key Pkcs11Key
		var keySize sql.NullInt64
		var curve, orgID sql.NullString

		if err := rows.Scan(
			&key.ID, &key.Name, &key.Algorithm, &keySize, &curve, &key.Fingerprint,
			&key.HSMSlot, &orgID, &key.Status, &key.CreatedByID, &key.CreatedAt, &key.UpdatedAt); err != nil {
			return nil, err
		}

		if keySize.Valid {
			size := int(keySize.Int64)
			key.KeySize = &size
		}
		if curve.Valid {
			key.Curve = &curve.String
		}
		if orgID.Valid {
			key.OrganizationID = &orgID.String
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// UpdateKeyStatus updates a key's lifecycle status
func (q *Queries) UpdateKeyStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE pkcs11_keys
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := q.db.ExecContext(ctx, query, status, id)
	return err
}

// CountKeysByOrganization returns the number of keys owned by an organization
func (q *Queries) CountKeysByOrganization(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pkcs11_keys WHERE organization_id = $1`, organizationID).Scan(&count)
	return count, err
}
