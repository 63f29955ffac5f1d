package config

import "testing"

func TestLoadDoesNotInjectWeakSecretDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty JWT_SECRET when unset, got %q", cfg.JWTSecret)
	}
}

func TestLoadTokenTTLFallback(t *testing.T) {
	t.Setenv("TOKEN_TTL_HOURS", "not-a-number")

	cfg := Load()
	if cfg.TokenTTLHours != 168 {
		t.Fatalf("expected TTL fallback 168, got %d", cfg.TokenTTLHours)
	}
}
