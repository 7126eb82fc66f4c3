package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Queries provides database operations
type Queries struct {
	db *sql.DB
}

// NewQueries creates a new Queries instance
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetDB returns the underlying database connection
func (q *Queries) GetDB() *sql.DB {
	return q.db
}

// User operations

// CreateUser creates a new user
func (q *Queries) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Role, user.OrganizationID,
		user.AzureADOID, user.Status, user.HashedPassword, user.CreatedAt, user.UpdatedAt)
	return err
}

// GetUserByEmail gets a user by email
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return q.scanUser(q.db.QueryRowContext(ctx, query, email))
}

// GetUserByID gets a user by ID
func (q *Queries) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return q.scanUser(q.db.QueryRowContext(ctx, query, id))
}

// GetUserByAzureOID gets a user by Azure AD object ID
func (q *Queries) GetUserByAzureOID(ctx context.Context, oid string) (*User, error) {
	query := `
		SELECT id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at
		FROM users
		WHERE azure_ad_oid = $1
	`
	return q.scanUser(q.db.QueryRowContext(ctx, query, oid))
}

func (q *Queries) scanUser(row *sql.Row) (*User, error) {
	var user User
	var orgID, azureOID sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &orgID,
		&azureOID, &user.Status, &user.HashedPassword, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		user.OrganizationID = &orgID.String
	}
	if azureOID.Valid {
		user.AzureADOID = &azureOID.String
	}
	return &user, nil
}

// ListUsers lists users, optionally scoped to an organization
func (q *Queries) ListUsers(ctx context.Context, organizationID *string) ([]User, error) {
	var rows *sql.Rows
	var err error

	if organizationID != nil {
		query := `
			SELECT id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at
			FROM users
			WHERE organization_id = $1
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query, *organizationID)
	} else {
		query := `
			SELECT id, email, name, role, organization_id, azure_ad_oid, status, hashed_password, created_at, updated_at
			FROM users
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var orgID, azureOID sql.NullString

		if err := rows.Scan(
			&user.ID, &user.Email, &user.Name, &user.Role, &orgID,
			&azureOID, &user.Status, &user.HashedPassword, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}

		if orgID.Valid {
			user.OrganizationID = &orgID.String
		}
		if azureOID.Valid {
			user.AzureADOID = &azureOID.String
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateUser updates a user's profile fields
func (q *Queries) UpdateUser(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET name = $2, role = $3, organization_id = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	_, err := q.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Role, user.OrganizationID, user.Status, user.UpdatedAt)
	return err
}

// UpdateUserPassword updates a user's password hash
func (q *Queries) UpdateUserPassword(ctx context.Context, userID string, hashedPassword string) error {
	query := `
		UPDATE users
		SET hashed_password = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := q.db.ExecContext(ctx, query, hashedPassword, userID)
	return err
}

// UserName returns a user's display name for embedding in responses
func (q *Queries) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	err := q.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// CountUsers returns the total number of user accounts
func (q *Queries) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountUsersByOrganization returns the number of users in an organization
func (q *Queries) CountUsersByOrganization(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE organization_id = $1`, organizationID).Scan(&count)
	return count, err
}
