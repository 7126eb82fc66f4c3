package testing

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
)

/* TestDB holds test database connection */
type TestDB struct {
	DB      *sql.DB
	Queries *db.Queries
}

/* SetupTestDB creates a test database connection. Tests are skipped when
   no Postgres instance is reachable so the suite can run without one. */
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	testDBName := os.Getenv("TEST_DB_NAME")
	if testDBName == "" {
		testDBName = "ktsecure_test"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5432"),
		getEnv("TEST_DB_USER", "ktsecure"),
		getEnv("TEST_DB_PASSWORD", "ktsecure"),
		testDBName,
	)

	/* Connect to postgres database first to create test database */
	postgresDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5432"),
		getEnv("TEST_DB_USER", "ktsecure"),
		getEnv("TEST_DB_PASSWORD", "ktsecure"),
	)

	postgresDB, err := sql.Open("pgx", postgresDSN)
	if err != nil {
		t.Skipf("Skipping: cannot open postgres connection: %v", err)
	}
	defer postgresDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := postgresDB.PingContext(ctx); err != nil {
		t.Skipf("Skipping: postgres not reachable: %v", err)
	}

	/* Create test database if it doesn't exist */
	var exists bool
	err = postgresDB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", testDBName).Scan(&exists)
	if err != nil {
		t.Fatalf("Failed to check for test database: %v", err)
	}
	if !exists {
		if _, err := postgresDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", testDBName)); err != nil {
			t.Fatalf("Failed to create test database: %v", err)
		}
	}

	/* Connect to test database */
	testDB, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := testDB.PingContext(ctx); err != nil {
		testDB.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	/* Apply schema */
	if err := db.InitSchema(ctx, testDB); err != nil {
		testDB.Close()
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	queries := db.NewQueries(testDB)

	return &TestDB{
		DB:      testDB,
		Queries: queries,
	}
}

/* CleanupTestDB cleans up test database */
func (tdb *TestDB) CleanupTestDB(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	/* Truncate all tables */
	tables := []string{
		"approval_votes",
		"approval_requests",
		"quorum_policies",
		"audit_logs",
		"projects",
		"signing_configs",
		"pkcs11_keys",
		"users",
		"organizations",
	}

	for _, table := range tables {
		_, err := tdb.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			/* Table might not exist, ignore */
			t.Logf("Warning: Failed to truncate %s: %v", table, err)
		}
	}

	tdb.DB.Close()
}

/* CreateTestUser creates a test user with the given role */
func CreateTestUser(ctx context.Context, queries *db.Queries, email, password, role string) (*db.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Email:          email,
		Name:           email,
		Role:           role,
		Status:         "active",
		HashedPassword: string(hashed),
	}

	if err := queries.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

/* CreateTestAdmin creates a test super admin user */
func CreateTestAdmin(ctx context.Context, queries *db.Queries, email, password string) (*db.User, error) {
	return CreateTestUser(ctx, queries, email, password, "super_admin")
}

/* CreateTestOrganization creates a test organization */
func CreateTestOrganization(ctx context.Context, queries *db.Queries, name, slug string, parentID *string) (*db.Organization, error) {
	org := &db.Organization{
		Name:     name,
		Slug:     slug,
		ParentID: parentID,
		Status:   "active",
	}

	if err := queries.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	return org, nil
}

/* CreateTestKey creates a test signing key owned by the given user */
func CreateTestKey(ctx context.Context, queries *db.Queries, name, fingerprint, createdByID string) (*db.Pkcs11Key, error) {
	keySize := 4096
	key := &db.Pkcs11Key{
		Name:        name,
		Algorithm:   "RSA",
		KeySize:     &keySize,
		Fingerprint: fingerprint,
		HSMSlot:     0,
		Status:      "active",
		CreatedByID: createdByID,
	}

	if err := queries.CreateKey(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
