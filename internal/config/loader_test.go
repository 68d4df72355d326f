package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"PILLTIME_HTTP_PORT",
			"PILLTIME_SQLITE_DSN",
			"PILLTIME_TIMEZONE",
			"PILLTIME_PUSH_TIMEOUT",
			"VAPID_SUBJECT",
			"VAPID_PUBLIC_KEY",
			"VAPID_PRIVATE_KEY",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:pilltime.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.PushTimeout != 10*time.Second {
			t.Fatalf("expected default push timeout 10s, got %s", cfg.PushTimeout)
		}
		if cfg.VAPID.Configured() {
			t.Fatalf("expected push delivery to be unconfigured by default")
		}
		if cfg.VAPID.Subject != "mailto:admin@pilltime.local" {
			t.Fatalf("unexpected default VAPID subject: %q", cfg.VAPID.Subject)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("PILLTIME_HTTP_PORT", "9090")
		t.Setenv("PILLTIME_SQLITE_DSN", "file:/tmp/pilltime.db")
		t.Setenv("PILLTIME_TIMEZONE", "Asia/Tokyo")
		t.Setenv("PILLTIME_PUSH_TIMEOUT", "30s")
		t.Setenv("VAPID_SUBJECT", "mailto:ops@example.com")
		t.Setenv("VAPID_PUBLIC_KEY", "pub-key")
		t.Setenv("VAPID_PRIVATE_KEY", "priv-key")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/pilltime.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Timezone != "Asia/Tokyo" {
			t.Fatalf("unexpected timezone: %q", cfg.Timezone)
		}
		if cfg.PushTimeout != 30*time.Second {
			t.Fatalf("expected push timeout 30s, got %s", cfg.PushTimeout)
		}
		if !cfg.VAPID.Configured() {
			t.Fatalf("expected push delivery to be configured")
		}
		if cfg.VAPID.Subject != "mailto:ops@example.com" {
			t.Fatalf("unexpected VAPID subject: %q", cfg.VAPID.Subject)
		}
	})

	t.Run("aggregates invalid values into one error", func(t *testing.T) {
		t.Setenv("PILLTIME_HTTP_PORT", "not-a-port")
		t.Setenv("PILLTIME_TIMEZONE", "Mars/Olympus")
		t.Setenv("PILLTIME_PUSH_TIMEOUT", "10s")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: PILLTIME_HTTP_PORT, PILLTIME_TIMEZONE"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("resolves configured location with fallback", func(t *testing.T) {
		cfg := Config{Timezone: "UTC"}
		if loc := cfg.Location(time.Local); loc != time.UTC {
			t.Fatalf("expected UTC location, got %v", loc)
		}
		empty := Config{}
		if loc := empty.Location(time.Local); loc != time.Local {
			t.Fatalf("expected fallback location, got %v", loc)
		}
	})
}
