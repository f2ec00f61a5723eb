package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("OTP_MAX_ATTEMPTS", "")

	cfg := LoadConfig()

	if cfg.SQLitePath != "./data/timetrack.db" {
		t.Fatalf("expected default sqlite path, got %q", cfg.SQLitePath)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m access ttl, got %s", cfg.AccessTokenTTL)
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Fatalf("expected 5 otp attempts, got %d", cfg.OTPMaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected development defaults to validate, got %v", err)
	}
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := &Config{
		Environment:     "production",
		Port:            "3000",
		JWTSecret:       defaultJWTSecret,
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		OTPMaxAttempts:  3,
		PostgresDSN:     "postgres://localhost/db",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default secret to be rejected in production")
	}

	cfg.JWTSecret = "a-real-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}

	cfg.PostgresDSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing database to be rejected")
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	content := "# comment\nTT_EXISTING=from-file\nTT_FRESH=\"quoted value\"\nbroken-line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("TT_EXISTING", "from-env")
	t.Setenv("TT_FRESH", "")

	loadEnvFile(path)

	if got := os.Getenv("TT_EXISTING"); got != "from-env" {
		t.Fatalf("expected existing variable to win, got %q", got)
	}
	if got := os.Getenv("TT_FRESH"); got != "quoted value" {
		t.Fatalf("expected quotes to be stripped, got %q", got)
	}
}
