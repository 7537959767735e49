package rolegate

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt ttl zero",
			mutate: func(c *Config) {
				c.JWT.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 short key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "argon memory too low",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "salt too short",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "zero sign-in attempts",
			mutate: func(c *Config) {
				c.Security.MaxSignInAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "zero cooldown",
			mutate: func(c *Config) {
				c.Security.SignInCooldown = 0
			},
			wantValid: false,
		},
		{
			name: "prefix with colon",
			mutate: func(c *Config) {
				c.Security.RateLimitPrefix = "rg:prod"
			},
			wantValid: false,
		},
		{
			name: "blank cookie name",
			mutate: func(c *Config) {
				c.Security.CookieName = "  "
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled without buffer",
			mutate: func(c *Config) {
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigProductionMode(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("production mode must reject hs256")
	}

	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = make([]byte, 64)
	cfg.JWT.PublicKey = make([]byte, 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}

	cfg.Security.SameSitePolicy = http.SameSiteNoneMode
	if err := cfg.Validate(); err == nil {
		t.Fatal("production mode must reject SameSite=None")
	}

	cfg.Security.SameSitePolicy = http.SameSiteLaxMode
	cfg.Security.RequireSecureCookies = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("production mode must require secure cookies")
	}
}

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config has no signing keys and must not validate")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(t, func(c *Config, _ *Builder) { *c = cfg })

	cfg.JWT.PrivateKey[0] = 'X'
	got := env.engine.Config()
	if got.JWT.PrivateKey[0] != '0' {
		t.Fatal("engine config aliases caller key bytes")
	}
	got.JWT.PrivateKey[1] = 'Y'
	if env.engine.Config().JWT.PrivateKey[1] != '1' {
		t.Fatal("Config() exposes internal key bytes")
	}
}
