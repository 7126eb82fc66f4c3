package initialization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
)

// HealthChecker performs startup health checks
type HealthChecker struct {
	queries *db.Queries
	logger  *logging.Logger
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(queries *db.Queries, logger *logging.Logger) *HealthChecker {
	return &HealthChecker{
		queries: queries,
		logger:  logger,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
	Overall   bool                   `json:"overall"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of an individual health check
type CheckResult struct {
	Status      string        `json:"status"` // "pass", "warn", "fail"
	Message     string        `json:"message"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// CheckAll performs all health checks
func (hc *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	checks := make(map[string]CheckResult)

	checks["database"] = hc.checkDatabase(ctx)
	checks["schema"] = hc.checkSchema(ctx)
	checks["users"] = hc.checkUsers(ctx)

	// Determine overall status
	overall := true
	status := "healthy"
	for _, check := range checks {
		if check.Status == "fail" {
			overall = false
			status = "unhealthy"
			break
		} else if check.Status == "warn" && status == "healthy" {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Overall:   overall,
	}
}

// checkDatabase checks database connectivity
func (hc *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := hc.queries.GetDB().PingContext(pingCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Status:      "fail",
			Message:     fmt.Sprintf("Database connection failed: %v", err),
			Duration:    duration,
			LastChecked: time.Now(),
		}
	}

	return CheckResult{
		Status:      "pass",
		Message:     "Database connection is healthy",
		Duration:    duration,
		LastChecked: time.Now(),
	}
}

// checkSchema verifies the required tables exist
func (hc *HealthChecker) checkSchema(ctx context.Context) CheckResult {
	start := time.Now()

	requiredTables := []string{
		"organizations",
		"users",
		"pkcs11_keys",
		"signing_configs",
		"projects",
		"audit_logs",
		"approval_requests",
		"approval_votes",
		"quorum_policies",
	}

	conn := hc.queries.GetDB()
	for _, table := range requiredTables {
		var exists bool
		query := "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)"
		if err := conn.QueryRowContext(ctx, query, table).Scan(&exists); err != nil || !exists {
			return CheckResult{
				Status:      "warn",
				Message:     fmt.Sprintf("Required table %q not found", table),
				Duration:    time.Since(start),
				LastChecked: time.Now(),
			}
		}
	}

	return CheckResult{
		Status:      "pass",
		Message:     "Database schema is valid",
		Duration:    time.Since(start),
		LastChecked: time.Now(),
	}
}

// checkUsers checks whether any user account exists yet
func (hc *HealthChecker) checkUsers(ctx context.Context) CheckResult {
	start := time.Now()
	count, err := hc.queries.CountUsers(ctx)
	duration := time.Since(start)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return CheckResult{
			Status:      "fail",
			Message:     fmt.Sprintf("Failed to count users: %v", err),
			Duration:    duration,
			LastChecked: time.Now(),
		}
	}

	if count == 0 {
		return CheckResult{
			Status:      "warn",
			Message:     "No user accounts exist (may need initialization)",
			Duration:    duration,
			LastChecked: time.Now(),
		}
	}

	return CheckResult{
		Status:      "pass",
		Message:     fmt.Sprintf("%d user accounts", count),
		Duration:    duration,
		LastChecked: time.Now(),
	}
}
