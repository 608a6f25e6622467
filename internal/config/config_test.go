package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "Europe/Zurich", cfg.Timezone)
	require.False(t, cfg.SMSEnabled, "SMS must be opt-in")
	require.Equal(t, time.Duration(0), cfg.SweepInterval)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SMS_ENABLED", "true")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("ADMIN_PHONE", "+41790000000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://kurse.example.ch,http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.SMSEnabled)
	require.Equal(t, 5*time.Minute, cfg.SweepInterval)
	require.Equal(t, "+41790000000", cfg.AdminPhone)
	require.Equal(t, []string{"https://kurse.example.ch", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}

func TestDSNAndMigrationURL(t *testing.T) {
	cfg := Config{
		DBHost: "db", DBPort: 5433, DBUser: "app", DBPassword: "p@ss",
		DBName: "workshops", DBSSLMode: "disable",
	}
	require.Equal(t, "host=db port=5433 user=app password=p@ss dbname=workshops sslmode=disable", cfg.DSN())
	require.Equal(t, "pgx5://app:p%40ss@db:5433/workshops?sslmode=disable", cfg.MigrationURL())
}
