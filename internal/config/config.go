package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the API needs. It is built once by Load and
// handed to constructors; nothing reads the environment after startup.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Seed      SeedConfig
	Mail      MailConfig
	Audit     AuditConfig
	Quotation QuotationConfig
}

type ServerConfig struct {
	Port        string
	Mode        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	LogLevel string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// SeedConfig describes the default admin account created by the seeder.
type SeedConfig struct {
	AdminUsername string
	AdminPassword string
	AdminRole     string
	DefaultRole   string
}

type MailConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	Subject  string
}

type AuditConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

type QuotationConfig struct {
	ApproverRoles []string
}

// Load reads configs/.env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "72h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	retryDelay, err := time.ParseDuration(getEnv("AUDIT_RETRY_DELAY", "200ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_RETRY_DELAY: %w", err)
	}

	mode := getEnv("GIN_MODE", "debug")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if mode == "release" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in release mode")
		}
		secret = "default_super_secret_key" // development fallback only
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Mode:        mode,
			CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Auth: AuthConfig{
			JWTSecret: secret,
			TokenTTL:  ttl,
		},
		Seed: SeedConfig{
			AdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin@example.com"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin123"),
			AdminRole:     getEnv("SEED_ADMIN_ROLE", "Admin"),
			DefaultRole:   getEnv("REGISTER_DEFAULT_ROLE", "Sales Rep"),
		},
		Mail: MailConfig{
			Host:     getEnv("EMAIL_HOST", "localhost"),
			Port:     getInt("EMAIL_PORT", 587),
			From:     getEnv("EMAIL_FROM", "no-reply@example.com"),
			Password: os.Getenv("EMAIL_PASSWORD"),
			Subject:  getEnv("EMAIL_QUOTATION_SUBJECT", "Your Quotation"),
		},
		Audit: AuditConfig{
			QueueSize:   getInt("AUDIT_QUEUE_SIZE", 256),
			MaxAttempts: getInt("AUDIT_MAX_ATTEMPTS", 3),
			RetryDelay:  retryDelay,
		},
		Quotation: QuotationConfig{
			ApproverRoles: splitList(getEnv("QUOTATION_APPROVER_ROLES", "Manager")),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return i
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
