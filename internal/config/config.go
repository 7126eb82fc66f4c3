package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Storage  StorageConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Auth     AuthConfig
	Quorum   QuorumConfig
	Seed     SeedConfig
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Mode string // "postgres", "memory"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Mode            string // "jwt", "oidc", "hybrid"
	OIDC            OIDCConfig
	JWTSecret       string
	EnableLocalAuth bool
}

// OIDCConfig holds OIDC configuration
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// QuorumConfig holds approval workflow defaults used when no policy matches
type QuorumConfig struct {
	RequiredApprovals int
	TotalApprovers    int
	ExpiryHours       int
	SweepInterval     time.Duration
}

// SeedConfig holds bootstrap seeding configuration
type SeedConfig struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string
	PolicyFile    string // YAML file with default quorum policies, optional
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Storage: StorageConfig{
			Mode: getEnv("STORAGE_MODE", "postgres"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "ktsecure"),
			Password:        getEnv("DB_PASSWORD", "ktsecure"),
			Name:            getEnv("DB_NAME", "ktsecure"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Auth: AuthConfig{
			Mode:            getEnv("AUTH_MODE", "jwt"),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			EnableLocalAuth: getEnv("ENABLE_LOCAL_AUTH", "true") == "true",
			OIDC: OIDCConfig{
				IssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
				ClientID:     getEnv("OIDC_CLIENT_ID", ""),
				ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
				Scopes:       getEnvSlice("OIDC_SCOPES", []string{"openid", "profile", "email"}),
			},
		},
		Quorum: QuorumConfig{
			RequiredApprovals: getEnvInt("QUORUM_REQUIRED_APPROVALS", 2),
			TotalApprovers:    getEnvInt("QUORUM_TOTAL_APPROVERS", 3),
			ExpiryHours:       getEnvInt("QUORUM_EXPIRY_HOURS", 72),
			SweepInterval:     getEnvDuration("QUORUM_SWEEP_INTERVAL", time.Minute),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@ktsecure.local"),
			AdminName:     getEnv("SEED_ADMIN_NAME", "Platform Admin"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
			PolicyFile:    getEnv("SEED_POLICY_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}
