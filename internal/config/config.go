// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	Timezone    string `envconfig:"TIMEZONE" default:"Europe/Zurich"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"workshops"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// SMS settings. SMS is only attempted when SMSEnabled is set and the
	// runtime toggle stored in site_settings is on.
	SMSEnabled        bool   `envconfig:"SMS_ENABLED" default:"false"`
	TwilioAccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`

	// Mail settings
	MailServer        string `envconfig:"MAIL_SERVER" default:"localhost"`
	MailPort          int    `envconfig:"MAIL_PORT" default:"25"`
	MailUsername      string `envconfig:"MAIL_USERNAME"`
	MailPassword      string `envconfig:"MAIL_PASSWORD"`
	MailUseSSL        bool   `envconfig:"MAIL_USE_SSL" default:"false"`
	MailDefaultSender string `envconfig:"MAIL_DEFAULT_SENDER" default:"noreply@example.ch"`
	MailReplyTo       string `envconfig:"MAIL_REPLY_TO"`
	MailSuppressSend  bool   `envconfig:"MAIL_SUPPRESS_SEND" default:"false"`

	AdminPhone string `envconfig:"ADMIN_PHONE"`
	AdminEmail string `envconfig:"ADMIN_EMAIL"`

	// SweepInterval runs the scheduled-message sweep inside `serve`. Zero
	// leaves it to an external cron calling `send-scheduled`. Both may run;
	// sweeps take a database advisory lock and never overlap.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"0"`

	TracingEnabled  bool   `envconfig:"TRACING_ENABLED" default:"false"`
	TracingExporter string `envconfig:"TRACING_EXPORTER" default:"stdout"`
	OTLPEndpoint    string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves the configured time zone used for course dates and
// reminder times.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN builds a libpq-compatible connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// MigrationURL builds the pgx5:// URL golang-migrate expects.
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}
