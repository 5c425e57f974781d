package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Fatalf("expected default api prefix, got %q", cfg.APIPrefix)
	}
	if cfg.AccessTokenTTLMinutes != 30 {
		t.Fatalf("expected 30 minute access tokens, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.CORSOrigins != "*" {
		t.Fatalf("expected wildcard cors")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("API_PREFIX", "/v2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.AccessTokenTTLMinutes != 5 {
		t.Fatalf("expected override ttl")
	}
	if cfg.APIPrefix != "/v2" || cfg.LogLevel != "debug" {
		t.Fatalf("expected override prefix and log level")
	}
}
