package initialization

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/config"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/validation"
)

// Bootstrap handles all application initialization tasks
type Bootstrap struct {
	queries   *db.Queries
	engine    *quorum.Engine
	logger    *logging.Logger
	seed      config.SeedConfig
	validator *Validator
}

// NewBootstrap creates a new bootstrap instance
func NewBootstrap(queries *db.Queries, engine *quorum.Engine, seed config.SeedConfig, logger *logging.Logger) *Bootstrap {
	return &Bootstrap{
		queries:   queries,
		engine:    engine,
		logger:    logger,
		seed:      seed,
		validator: NewValidator(logger),
	}
}

// Initialize performs all initialization tasks in the correct order
func (b *Bootstrap) Initialize(ctx context.Context) error {
	metrics := NewBootstrapMetrics()
	defer metrics.Finish()
	defer metrics.LogMetrics(b.logger)

	b.logger.Info("Starting application bootstrap sequence", nil)

	// Step 1: Ensure database schema exists (with retry)
	stepStart := time.Now()
	if err := b.initializeSchemaWithRetry(ctx); err != nil {
		metrics.TrackStep("schema", time.Since(stepStart), false)
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	metrics.TrackStep("schema", time.Since(stepStart), true)

	// Step 2: Ensure admin user exists (with retry)
	stepStart = time.Now()
	adminUser, err := b.ensureAdminUserWithRetry(ctx)
	if err != nil {
		metrics.TrackStep("admin_user", time.Since(stepStart), false)
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	metrics.TrackStep("admin_user", time.Since(stepStart), true)

	// Step 3: Validate admin user
	validationStart := time.Now()
	if validation := b.validator.ValidateAdminUser(ctx, b.queries, b.seed.AdminEmail); !validation.Valid {
		b.logger.Info("Admin user validation failed", map[string]interface{}{
			"errors": validation.Errors,
		})
		metrics.TrackStep("validation", time.Since(validationStart), false)
	} else {
		metrics.TrackStep("validation", time.Since(validationStart), true)
	}

	// Step 4: Seed quorum policies from the configured file
	stepStart = time.Now()
	if err := b.seedPolicies(ctx, adminUser); err != nil {
		b.logger.Info("Warning: Failed to seed quorum policies", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.TrackStep("policy_seed", time.Since(stepStart), false)
	} else {
		metrics.TrackStep("policy_seed", time.Since(stepStart), true)
	}

	// Step 5: Perform health check
	healthStart := time.Now()
	healthChecker := NewHealthChecker(b.queries, b.logger)
	healthStatus := healthChecker.CheckAll(ctx)
	metrics.TrackStep("health_check", time.Since(healthStart), healthStatus.Overall)
	if !healthStatus.Overall {
		b.logger.Info("Health check completed with issues", map[string]interface{}{
			"status": healthStatus.Status,
			"checks": healthStatus.Checks,
		})
	} else {
		b.logger.Info("Health check passed", map[string]interface{}{
			"status": healthStatus.Status,
		})
	}

	b.logger.Info("Application bootstrap completed successfully", map[string]interface{}{
		"total_duration": metrics.Duration.String(),
	})
	return nil
}

// initializeSchemaWithRetry creates missing tables with retry logic
func (b *Bootstrap) initializeSchemaWithRetry(ctx context.Context) error {
	return RetryWithBackoff(ctx, b.logger, "initialize schema", func(ctx context.Context) error {
		return db.InitSchema(ctx, b.queries.GetDB())
	})
}

// ensureAdminUserWithRetry ensures the admin user exists with retry logic
func (b *Bootstrap) ensureAdminUserWithRetry(ctx context.Context) (*db.User, error) {
	var adminUser *db.User

	retryFunc := func(ctx context.Context) error {
		var err error
		adminUser, err = b.ensureAdminUser(ctx)
		return err
	}

	if err := RetryWithBackoff(ctx, b.logger, "ensure admin user", retryFunc); err != nil {
		return nil, err
	}

	return adminUser, nil
}

// ensureAdminUser ensures the platform admin user exists
func (b *Bootstrap) ensureAdminUser(ctx context.Context) (*db.User, error) {
	b.logger.Info("Checking for platform admin user", nil)

	adminUser, err := b.queries.GetUserByEmail(ctx, b.seed.AdminEmail)
	if err == nil {
		b.logger.Info("Admin user already exists", map[string]interface{}{
			"email":   adminUser.Email,
			"user_id": adminUser.ID,
		})
		return adminUser, nil
	}

	b.logger.Info("Creating platform admin user", nil)

	adminPassword := b.seed.AdminPassword
	if adminPassword == "" {
		// Generate a temporary password and log it (one-time setup)
		adminPassword = fmt.Sprintf("admin-%d", time.Now().Unix())
		b.logger.Info("SEED_ADMIN_PASSWORD not set - using temporary password", map[string]interface{}{
			"password": adminPassword,
			"warning":  "Set SEED_ADMIN_PASSWORD and change this password immediately",
		})
	}

	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if hashErr != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", hashErr)
	}

	adminUser = &db.User{
		Email:          b.seed.AdminEmail,
		Name:           b.seed.AdminName,
		Role:           auth.RoleSuperAdmin,
		HashedPassword: string(passwordHash),
		Status:         "active",
	}

	if createErr := b.queries.CreateUser(ctx, adminUser); createErr != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", createErr)
	}

	b.logger.Info("Platform admin user created", map[string]interface{}{
		"email":   adminUser.Email,
		"user_id": adminUser.ID,
	})
	return adminUser, nil
}

// policySeedFile is the YAML layout of the policy seed file
type policySeedFile struct {
	Policies []struct {
		ApprovalType      string `yaml:"approval_type"`
		RequiredApprovals int    `yaml:"required_approvals"`
		TotalApprovers    int    `yaml:"total_approvers"`
		ExpiryHours       int    `yaml:"expiry_hours"`
		Enabled           bool   `yaml:"enabled"`
		OrganizationSlug  string `yaml:"organization,omitempty"`
	} `yaml:"policies"`
}

// seedPolicies loads default quorum policies from the configured YAML file.
// Seeding is idempotent: a policy is skipped when one already exists for the
// same scope and approval type.
func (b *Bootstrap) seedPolicies(ctx context.Context, adminUser *db.User) error {
	if b.seed.PolicyFile == "" {
		b.logger.Info("No policy seed file configured, skipping", nil)
		return nil
	}

	if err := validation.ValidateFilePath(b.seed.PolicyFile, "policy seed file"); err != nil {
		return err
	}

	data, err := os.ReadFile(b.seed.PolicyFile)
	if err != nil {
		return fmt.Errorf("read policy seed file: %w", err)
	}

	var seed policySeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse policy seed file: %w", err)
	}

	existing, err := b.engine.ListPolicies(ctx, nil)
	if err != nil {
		return fmt.Errorf("list existing policies: %w", err)
	}

	type scope struct {
		org string
		typ quorum.ApprovalType
	}
	seen := make(map[scope]bool, len(existing))
	for _, p := range existing {
		org := ""
		if p.OrganizationID != nil {
			org = *p.OrganizationID
		}
		seen[scope{org, p.ApprovalType}] = true
	}

	created := 0
	for _, entry := range seed.Policies {
		var organizationID *string
		orgKey := ""
		if entry.OrganizationSlug != "" {
			org, err := b.queries.GetOrganizationBySlug(ctx, entry.OrganizationSlug)
			if err != nil {
				b.logger.Info("Skipping policy for unknown organization", map[string]interface{}{
					"organization": entry.OrganizationSlug,
				})
				continue
			}
			organizationID = &org.ID
			orgKey = org.ID
		}

		if seen[scope{orgKey, quorum.ApprovalType(entry.ApprovalType)}] {
			continue
		}

		_, err := b.engine.CreatePolicy(ctx, quorum.PolicyInput{
			OrganizationID:    organizationID,
			ApprovalType:      quorum.ApprovalType(entry.ApprovalType),
			RequiredApprovals: entry.RequiredApprovals,
			TotalApprovers:    entry.TotalApprovers,
			ExpiryHours:       entry.ExpiryHours,
			IsEnabled:         entry.Enabled,
			ActorID:           adminUser.ID,
		})
		if err != nil {
			b.logger.Info("Failed to seed policy", map[string]interface{}{
				"approval_type": entry.ApprovalType,
				"error":         err.Error(),
			})
			continue
		}
		created++
	}

	b.logger.Info("Policy seeding complete", map[string]interface{}{
		"created": created,
		"in_file": len(seed.Policies),
	})
	return nil
}
