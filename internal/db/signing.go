package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Signing config operations

// CreateSigningConfig creates a new signing configuration
func (q *Queries) CreateSigningConfig(ctx context.Context, cfg *SigningConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	cfg.UpdatedAt = time.Now()

	query := `
		INSERT INTO signing_configs (id, name, key_id, hash_algorithm, timestamp_authority, is_enabled, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.KeyID, cfg.HashAlgorithm, cfg.TimestampAuthority,
		cfg.IsEnabled, cfg.OrganizationID, cfg.CreatedAt, cfg.UpdatedAt)
	return err
}

// GetSigningConfig gets a signing configuration by ID
func (q *Queries) GetSigningConfig(ctx context.Context, id string) (*SigningConfig, error) {
	query := `
		SELECT id, name, key_id, hash_algorithm, timestamp_authority, is_enabled, organization_id, created_at, updated_at
		FROM signing_configs
		WHERE id = $1
	`
	var cfg SigningConfig
	var tsa, orgID sql.NullString

	err := q.db.QueryRowContext(ctx, query, id).Scan(
		&cfg.ID, &cfg.Name, &cfg.KeyID, &cfg.HashAlgorithm, &tsa,
		&cfg.IsEnabled, &orgID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if tsa.Valid {
		cfg.TimestampAuthority = &tsa.String
	}
	if orgID.Valid {
		cfg.OrganizationID = &orgID.String
	}
	return &cfg, nil
}

// ListSigningConfigs lists signing configurations, optionally scoped to an organization
func (q *Queries) ListSigningConfigs(ctx context.Context, organizationID *string) ([]SigningConfig, error) {
	var rows *sql.Rows
	var err error

	if organizationID != nil {
		query := `
			SELECT id, name, key_id, hash_algorithm, timestamp_authority, is_enabled, organization_id, created_at, updated_at
			FROM signing_configs
			WHERE organization_id = $1
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query, *organizationID)
	} else {
		query := `
			SELECT id, name, key_id, hash_algorithm, timestamp_authority, is_enabled, organization_id, created_at, updated_at
			FROM signing_configs
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []SigningConfig
	for rows.Next() {
		var cfg SigningConfig
		var tsa, orgID sql.NullString

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.KeyID, &cfg.HashAlgorithm, &tsa,
			&cfg.IsEnabled, &orgID, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, err
		}

		if tsa.Valid {
			cfg.TimestampAuthority = &tsa.String
		}
		if orgID.Valid {
			cfg.OrganizationID = &orgID.String
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// UpdateSigningConfig updates a signing configuration
func (q *Queries) UpdateSigningConfig(ctx context.Context, cfg *SigningConfig) error {
	cfg.UpdatedAt = time.Now()

	query := `
		UPDATE signing_configs
		SET name = $2, key_id = $3, hash_algorithm = $4, timestamp_authority = $5, is_enabled = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := q.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.KeyID, cfg.HashAlgorithm, cfg.TimestampAuthority,
		cfg.IsEnabled, cfg.UpdatedAt)
	return err
}

// DeleteSigningConfig deletes a signing configuration
func (q *Queries) DeleteSigningConfig(ctx context.Context, id string) error {
	query := `DELETE FROM signing_configs WHERE id = $1`
	_, err := q.db.ExecContext(ctx, query, id)
	return err
}

// Project operations

// CreateProject creates a new project
func (q *Queries) CreateProject(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	project.UpdatedAt = time.Now()
	if project.Status == "" {
		project.Status = "active"
	}

	query := `
		INSERT INTO projects (id, name, description, organization_id, signing_config_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.ExecContext(ctx, query,
		project.ID, project.Name, project.Description, project.OrganizationID,
		project.SigningConfigID, project.Status, project.CreatedAt, project.UpdatedAt)
	return err
}

// GetProject gets a project by ID
func (q *Queries) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, name, description, organization_id, signing_config_id, status, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	var project Project
	var description, orgID, configID sql.NullString

	err := q.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &description, &orgID, &configID,
		&project.Status, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		project.Description = description.String
	}
	if orgID.Valid {
		project.OrganizationID = &orgID.String
	}
	if configID.Valid {
		project.SigningConfigID = &configID.String
	}
	return &project, nil
}

// ListProjects lists projects, optionally scoped to an organization
func (q *Queries) ListProjects(ctx context.Context, organizationID *string) ([]Project, error) {
	var rows *sql.Rows
	var err error

	if organizationID != nil {
		query := `
			SELECT id, name, description, organization_id, signing_config_id, status, created_at, updated_at
			FROM projects
			WHERE organization_id = $1
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query, *organizationID)
	} else {
		query := `
			SELECT id, name, description, organization_id, signing_config_id, status, created_at, updated_at
			FROM projects
			ORDER BY created_at DESC
		`
		rows, err = q.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		var description, orgID, configID sql.NullString

		if err := rows.Scan(
			&project.ID, &project.Name, &description, &orgID, &configID,
			&project.Status, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, err
		}

		if description.Valid {
			project.Description = description.String
		}
		if orgID.Valid {
			project.OrganizationID = &orgID.String
		}
		if configID.Valid {
			project.SigningConfigID = &configID.String
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// UpdateProject updates a project
func (q *Queries) UpdateProject(ctx context.Context, project *Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, description = $3, signing_config_id = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	_, err := q.db.ExecContext(ctx, query,
		project.ID, project.Name, project.Description, project.SigningConfigID,
		project.Status, project.UpdatedAt)
	return err
}

// DeleteProject deletes a project
func (q *Queries) DeleteProject(ctx context.Context, id string) error {
	query := `DELETE FROM projects WHERE id = $1`
	_, err := q.db.ExecContext(ctx, query, id)
	return err
}
