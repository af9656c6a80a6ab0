package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:            "8375",
		Env:             "development",
		DocstoreBackend: BackendMemory,
		DBHost:          "localhost",
		DBPassword:      "password",
		DBSSLMode:       "disable",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Port = "" }, "PORT"},
		{"unknown backend", func(c *Config) { c.DocstoreBackend = "cassandra" }, "DOCSTORE_BACKEND"},
		{"postgres without host", func(c *Config) { c.DocstoreBackend = BackendPostgres; c.DBHost = "" }, "DB_HOST"},
		{"mongo without url", func(c *Config) { c.DocstoreBackend = BackendMongo }, "MONGO_URL"},
		{"negative fan-out", func(c *Config) { c.ActivityMaxInFlight = -1 }, "ACTIVITY_MAX_IN_FLIGHT"},
		{"minio without keys", func(c *Config) { c.MinioEndpoint = "localhost:9000" }, "MINIO_ACCESS_KEY"},
		{"memory in production", func(c *Config) { c.Env = "production" }, "memory docstore"},
		{"default password in production", func(c *Config) {
			c.Env = "prod"
			c.DocstoreBackend = BackendPostgres
		}, "DB_PASSWORD"},
		{"production postgres with real password", func(c *Config) {
			c.Env = "production"
			c.DocstoreBackend = BackendPostgres
			c.DBPassword = "s3cure-and-long"
			c.DBSSLMode = "require"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9999")
	t.Setenv("DOCSTORE_BACKEND", "sqlite")
	t.Setenv("ACTIVITY_MAX_IN_FLIGHT", "8")
	t.Setenv("FEATURE_FLAGS", "indexed_activity=on")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.DocstoreBackend)
	assert.Equal(t, 8, cfg.ActivityMaxInFlight)
	assert.Equal(t, "indexed_activity=on", cfg.FeatureFlags)
	assert.Equal(t, "unify-media", cfg.MinioBucket)
	assert.Equal(t, 60, cfg.SavedSetTTLMinutes)
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DBSSLMode = ""
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=disable")
	assert.Contains(t, cfg.PostgresDSN(), "host=localhost")
}
