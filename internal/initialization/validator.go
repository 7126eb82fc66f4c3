package initialization

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

/* Validator validates configuration and data */
type Validator struct {
	logger *logging.Logger
}

/* NewValidator creates a new validator instance */
func NewValidator(logger *logging.Logger) *Validator {
	return &Validator{
		logger: logger,
	}
}

/* ValidationResult represents the result of validation */
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

/* ValidateAdminUser validates the seeded admin user */
func (v *Validator) ValidateAdminUser(ctx context.Context, queries *db.Queries, adminEmail string) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	adminUser, err := queries.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		result.Errors = append(result.Errors, "Admin user does not exist")
		result.Valid = false
		return result
	}

	if adminUser.Role != auth.RoleSuperAdmin {
		result.Errors = append(result.Errors, fmt.Sprintf("Admin user has role %q, expected %q", adminUser.Role, auth.RoleSuperAdmin))
		result.Valid = false
	}

	if adminUser.HashedPassword == "" && adminUser.AzureADOID == nil {
		result.Errors = append(result.Errors, "Admin user has no password and no federated identity")
		result.Valid = false
	}

	if adminUser.Status != "active" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Admin user status is %q", adminUser.Status))
	}

	return result
}

/* ValidateEmail validates an email address */
func (v *Validator) ValidateEmail(email string) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if email == "" {
		result.Errors = append(result.Errors, "Email is empty")
		result.Valid = false
		return result
	}

	if !emailRegex.MatchString(email) {
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid email address: %s", email))
		result.Valid = false
	}

	if len(email) > 254 {
		result.Errors = append(result.Errors, "Email must be at most 254 characters")
		result.Valid = false
	}

	return result
}

/* ValidatePolicySeed validates a parsed policy seed entry before creation */
func (v *Validator) ValidatePolicySeed(approvalType string, requiredApprovals, totalApprovers, expiryHours int) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if !quorum.ApprovalType(approvalType).Valid() {
		result.Errors = append(result.Errors, fmt.Sprintf("Unknown approval type: %s", approvalType))
		result.Valid = false
	}

	if err := quorum.ValidateQuorum(requiredApprovals, totalApprovers); err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Valid = false
	}

	if expiryHours < 0 {
		result.Errors = append(result.Errors, "Expiry hours must not be negative")
		result.Valid = false
	}
	if expiryHours == 0 {
		result.Warnings = append(result.Warnings, "Policy has no expiry: requests will stay pending until decided")
	}

	return result
}

/* ValidateSlug validates an organization slug */
func (v *Validator) ValidateSlug(slug string) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if slug == "" {
		result.Errors = append(result.Errors, "Slug is empty")
		result.Valid = false
		return result
	}

	slugRegex := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	if !slugRegex.MatchString(slug) {
		result.Errors = append(result.Errors, "Slug can only contain lowercase letters, numbers, and hyphens")
		result.Valid = false
	}

	if len(slug) > 63 {
		result.Errors = append(result.Errors, "Slug must be at most 63 characters")
		result.Valid = false
	}

	return result
}

/* ValidateAll performs all validation checks */
func (v *Validator) ValidateAll(ctx context.Context, queries *db.Queries, adminEmail string) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	emailResult := v.ValidateEmail(adminEmail)
	if !emailResult.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, emailResult.Errors...)
	result.Warnings = append(result.Warnings, emailResult.Warnings...)

	adminResult := v.ValidateAdminUser(ctx, queries, adminEmail)
	if !adminResult.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, adminResult.Errors...)
	result.Warnings = append(result.Warnings, adminResult.Warnings...)

	/* Normalize: no duplicate messages */
	seen := map[string]bool{}
	deduped := result.Errors[:0]
	for _, msg := range result.Errors {
		if !seen[strings.ToLower(msg)] {
			seen[strings.ToLower(msg)] = true
			deduped = append(deduped, msg)
		}
	}
	result.Errors = deduped

	return result
}
