// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Document store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                  string  `mapstructure:"PORT"`
	Env                   string  `mapstructure:"APP_ENV"`
	DocstoreBackend       string  `mapstructure:"DOCSTORE_BACKEND"`
	DBHost                string  `mapstructure:"DB_HOST"`
	DBPort                string  `mapstructure:"DB_PORT"`
	DBUser                string  `mapstructure:"DB_USER"`
	DBPassword            string  `mapstructure:"DB_PASSWORD"`
	DBName                string  `mapstructure:"DB_NAME"`
	DBSSLMode             string  `mapstructure:"DB_SSLMODE"`
	SQLitePath            string  `mapstructure:"SQLITE_PATH"`
	MongoURL              string  `mapstructure:"MONGO_URL"`
	MongoDatabase         string  `mapstructure:"MONGO_DATABASE"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	SavedSetTTLMinutes    int     `mapstructure:"SAVED_SET_TTL_MINUTES"`
	ActivityMaxInFlight   int     `mapstructure:"ACTIVITY_MAX_IN_FLIGHT"`
	FeatureFlags          string  `mapstructure:"FEATURE_FLAGS"`
	MinioEndpoint         string  `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey        string  `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey        string  `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket           string  `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL           bool    `mapstructure:"MINIO_USE_SSL"`
	MeiliURL              string  `mapstructure:"MEILI_URL"`
	MeiliAPIKey           string  `mapstructure:"MEILI_API_KEY"`
	TracingEnabled        bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter       string  `mapstructure:"TRACING_EXPORTER"`
	TracingEndpoint       string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSampleRatio    float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
	AllowedOrigins        string  `mapstructure:"ALLOWED_ORIGINS"`
	ResumeCascadesOnStart bool    `mapstructure:"RESUME_CASCADES_ON_START"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base file is optional; environment variables alone are enough.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8375")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DOCSTORE_BACKEND", BackendMemory)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "unify")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "unify.db")
	v.SetDefault("MONGO_URL", "")
	v.SetDefault("MONGO_DATABASE", "unify")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SAVED_SET_TTL_MINUTES", 60)
	v.SetDefault("ACTIVITY_MAX_IN_FLIGHT", 0)
	v.SetDefault("FEATURE_FLAGS", "")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "unify-media")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MEILI_URL", "")
	v.SetDefault("MEILI_API_KEY", "")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("RESUME_CASCADES_ON_START", true)
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DocstoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.DBHost == "" {
			return errors.New("DB_HOST is required for the postgres docstore backend")
		}
	case BackendMongo:
		if c.MongoURL == "" {
			return errors.New("MONGO_URL is required for the mongo docstore backend")
		}
	default:
		return fmt.Errorf("unknown DOCSTORE_BACKEND %q", c.DocstoreBackend)
	}

	if c.ActivityMaxInFlight < 0 {
		return errors.New("ACTIVITY_MAX_IN_FLIGHT must not be negative")
	}
	if c.SavedSetTTLMinutes < 0 {
		return errors.New("SAVED_SET_TTL_MINUTES must not be negative")
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	if c.IsProduction() {
		if c.DocstoreBackend == BackendMemory {
			return errors.New("the memory docstore backend is not allowed in production")
		}
		if c.DocstoreBackend == BackendPostgres && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SavedSetTTL is how long a hydrated saved/cart set stays trusted in Redis.
func (c *Config) SavedSetTTL() time.Duration {
	return time.Duration(c.SavedSetTTLMinutes) * time.Minute
}

// PostgresDSN builds the connection string for the postgres backend.
func (c *Config) PostgresDSN() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode,
	)
}
