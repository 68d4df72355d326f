package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/pilltime/internal/push"
)

// Config captures environment driven configuration values for the reminder service.
type Config struct {
	HTTPPort    int
	SQLiteDSN   string
	Timezone    string
	PushTimeout time.Duration
	VAPID       push.VAPIDConfig
}

// Load parses configuration values from the current process environment. A
// .env file in the working directory is read first when present; real
// environment variables take precedence over it.
//
// The loader applies sensible defaults for optional fields and aggregates all
// invalid values into a single error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:    8080,
		SQLiteDSN:   "file:pilltime.db",
		PushTimeout: 10 * time.Second,
		VAPID: push.VAPIDConfig{
			Subject:    "mailto:admin@pilltime.local",
			PublicKey:  strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY")),
			PrivateKey: strings.TrimSpace(os.Getenv("VAPID_PRIVATE_KEY")),
		},
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("PILLTIME_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "PILLTIME_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("PILLTIME_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("PILLTIME_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "PILLTIME_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("PILLTIME_PUSH_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "PILLTIME_PUSH_TIMEOUT")
		} else {
			cfg.PushTimeout = timeout
		}
	}

	if subject := strings.TrimSpace(os.Getenv("VAPID_SUBJECT")); subject != "" {
		cfg.VAPID.Subject = subject
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to the supplied
// default when none was set.
func (c Config) Location(fallback *time.Location) *time.Location {
	if c.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
