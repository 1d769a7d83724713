package session

import (
	"errors"
	"testing"
	"time"
)

const (
	testAccessKeyHex  = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"
	testRefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITFOLIO_ACCESS_KEY_HEX", testAccessKeyHex)
	t.Setenv("GITFOLIO_REFRESH_SECRET", testRefreshSecret)
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.Issuer != "gitfolio" {
		t.Errorf("Issuer = %q, want %q", cfg.Issuer, "gitfolio")
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", cfg.RefreshTokenTTL)
	}
	if cfg.ClockSkew != 30*time.Second {
		t.Errorf("ClockSkew = %v, want 30s", cfg.ClockSkew)
	}
	if cfg.AccessKeyHex != testAccessKeyHex {
		t.Errorf("AccessKeyHex not loaded from env")
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GITFOLIO_AUTH_ISSUER", "gitfolio-staging")
	t.Setenv("GITFOLIO_AUTH_ACCESS_TTL", "5m")
	t.Setenv("GITFOLIO_AUTH_REFRESH_TTL", "48h")
	t.Setenv("GITFOLIO_AUTH_CLOCK_SKEW", "10s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.Issuer != "gitfolio-staging" {
		t.Errorf("Issuer = %q", cfg.Issuer)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 48*time.Hour {
		t.Errorf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.ClockSkew != 10*time.Second {
		t.Errorf("ClockSkew = %v", cfg.ClockSkew)
	}
}

func TestLoadConfigFromEnvRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing access key",
			env: map[string]string{
				"GITFOLIO_REFRESH_SECRET": testRefreshSecret,
			},
		},
		{
			name: "access key wrong length",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX": "abcd",
				"GITFOLIO_REFRESH_SECRET": testRefreshSecret,
			},
		},
		{
			name: "refresh secret too short",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX": testAccessKeyHex,
				"GITFOLIO_REFRESH_SECRET": "short",
			},
		},
		{
			name: "same secret for both token families",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX": testAccessKeyHex,
				"GITFOLIO_REFRESH_SECRET": testAccessKeyHex,
			},
		},
		{
			name: "access ttl not shorter than refresh ttl",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX":   testAccessKeyHex,
				"GITFOLIO_REFRESH_SECRET":   testRefreshSecret,
				"GITFOLIO_AUTH_ACCESS_TTL":  "48h",
				"GITFOLIO_AUTH_REFRESH_TTL": "24h",
			},
		},
		{
			name: "unparseable duration",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX":  testAccessKeyHex,
				"GITFOLIO_REFRESH_SECRET":  testRefreshSecret,
				"GITFOLIO_AUTH_ACCESS_TTL": "fifteen minutes",
			},
		},
		{
			name: "negative clock skew",
			env: map[string]string{
				"GITFOLIO_ACCESS_KEY_HEX":  testAccessKeyHex,
				"GITFOLIO_REFRESH_SECRET":  testRefreshSecret,
				"GITFOLIO_AUTH_CLOCK_SKEW": "-5s",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GITFOLIO_ACCESS_KEY_HEX", "")
			t.Setenv("GITFOLIO_REFRESH_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfigFromEnv()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessKeyHex = testAccessKeyHex
	cfg.RefreshSecret = testRefreshSecret
	return cfg
}
