// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	PublicBaseURL  string // prefix for public blob URLs
	MetricsEnabled bool
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type           string // "mongo" or "memory"
	URI            string
	Name           string
	ConnectTimeout time.Duration
}

// AuthConfig holds token and admin settings
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ResetCodeTTL time.Duration
	AdminUID     string  // provisional single admin account
	RateLimit    float64 // auth requests per minute per client IP, 0 disables
	RateBurst    int
}

// PurgeConfig controls the soft-delete retention job
type PurgeConfig struct {
	Retention       time.Duration
	Interval        time.Duration
	ScheduleEnabled bool
}

// Config holds the complete application configuration
type Config struct {
	Server           *ServerConfig
	Database         *DatabaseConfig
	Auth             *AuthConfig
	Purge            *PurgeConfig
	PlaceholderCover string
	AllowedOrigins   []string
	Debug            bool
}

const (
	DBTypeMongo  = "mongo"
	DBTypeMemory = "memory"
)

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		PublicBaseURL:  "http://localhost:8080",
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:           DBTypeMongo,
		URI:            "mongodb://localhost:27017",
		Name:           "athemaria",
		ConnectTimeout: 30 * time.Second,
	}
}

// DefaultPurgeConfig keeps soft-deleted stories for 30 days and checks daily
func DefaultPurgeConfig() *PurgeConfig {
	return &PurgeConfig{
		Retention:       30 * 24 * time.Hour,
		Interval:        24 * time.Hour,
		ScheduleEnabled: true,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	loadEnvFile()

	serverConfig := DefaultConfig()
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		serverConfig.Port = port
	}
	serverConfig.Host = getEnvOrDefault("HOST", serverConfig.Host)
	serverConfig.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", serverConfig.PublicBaseURL), "/")
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := DefaultDatabaseConfig()
	dbConfig.Type = strings.ToLower(getEnvOrDefault("DB_TYPE", dbConfig.Type))
	switch dbConfig.Type {
	case DBTypeMongo, DBTypeMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want %s or %s)", dbConfig.Type, DBTypeMongo, DBTypeMemory)
	}
	dbConfig.URI = getEnvOrDefault("MONGODB_URI", dbConfig.URI)
	dbConfig.Name = getEnvOrDefault("MONGODB_DATABASE", dbConfig.Name)

	var err error
	if dbConfig.ConnectTimeout, err = getDurationOrDefault("MONGODB_CONNECT_TIMEOUT", dbConfig.ConnectTimeout); err != nil {
		return nil, err
	}

	config := &Config{
		Server:           serverConfig,
		Database:         dbConfig,
		Auth:             &AuthConfig{AdminUID: os.Getenv("ADMIN_UID")},
		Purge:            DefaultPurgeConfig(),
		PlaceholderCover: getEnvOrDefault("PLACEHOLDER_COVER", "placeholders/cover.png"),
		AllowedOrigins:   []string{"*"}, // Default to allow all origins
		Debug:            os.Getenv("DEBUG") == "true",
	}

	if config.Auth.TokenTTL, err = getDurationOrDefault("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if config.Auth.ResetCodeTTL, err = getDurationOrDefault("RESET_CODE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	config.Auth.RateLimit = 10
	if limit := os.Getenv("AUTH_RATE_LIMIT"); limit != "" {
		if config.Auth.RateLimit, err = strconv.ParseFloat(limit, 64); err != nil {
			return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT %q: %w", limit, err)
		}
	}
	config.Auth.RateBurst = 5
	if burst := os.Getenv("AUTH_RATE_BURST"); burst != "" {
		if config.Auth.RateBurst, err = strconv.Atoi(burst); err != nil {
			return nil, fmt.Errorf("invalid AUTH_RATE_BURST %q: %w", burst, err)
		}
	}

	config.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if config.Auth.JWTSecret == "" {
		if !config.Debug {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required unless DEBUG=true")
		}
		log.Println("Warning: JWT_SECRET not set, using an insecure development secret")
		config.Auth.JWTSecret = "athemaria-dev-secret"
	}

	if config.Purge.Retention, err = getDurationOrDefault("PURGE_RETENTION", config.Purge.Retention); err != nil {
		return nil, err
	}
	if config.Purge.Interval, err = getDurationOrDefault("PURGE_INTERVAL", config.Purge.Interval); err != nil {
		return nil, err
	}
	if config.Purge.Retention <= 0 {
		return nil, fmt.Errorf("PURGE_RETENTION must be positive, got %v", config.Purge.Retention)
	}
	if config.Purge.Interval <= 0 {
		return nil, fmt.Errorf("PURGE_INTERVAL must be positive, got %v", config.Purge.Interval)
	}
	if enabled := os.Getenv("PURGE_SCHEDULE_ENABLED"); enabled != "" {
		config.Purge.ScheduleEnabled = enabled == "true"
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}

// Addr returns the listen address of the server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// loadEnvFile tries the .env locations used when running from the repo root or a cmd dir.
// A missing .env file is not an error.
func loadEnvFile() {
	envLocations := []string{
		".env",
		"../../.env",
		"../../../.env",
		filepath.Join(os.Getenv("GOPATH"), "src/athemaria/.env"),
	}

	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			return
		}
	}
	_ = godotenv.Load()
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
