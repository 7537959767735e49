package rolegate

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config holds every engine setting. It is copied at Build time and treated
// as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the session token codec.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory          uint32
	Time            uint32
	Parallelism     uint8
	SaltLength      uint32
	KeyLength       uint32
	UpgradeOnSignIn bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig covers sign-in throttling and the session cookie.
type SecurityConfig struct {
	ProductionMode       bool
	EnableIPThrottle     bool
	MaxSignInAttempts    int
	SignInCooldown       time.Duration
	RateLimitPrefix      string
	RequireSecureCookies bool
	SameSitePolicy       http.SameSite
	CookieName           string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration. The caller must still
// supply signing keys before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           8 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "rolegate",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:          65536,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			UpgradeOnSignIn: true,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			EnableIPThrottle:     true,
			MaxSignInAttempts:    5,
			SignInCooldown:       15 * time.Minute,
			RateLimitPrefix:      "rg",
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteStrictMode,
			CookieName:           "rg_session",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.MaxSignInAttempts <= 0 {
		return errors.New("Security MaxSignInAttempts must be > 0")
	}
	if c.Security.SignInCooldown <= 0 {
		return errors.New("Security SignInCooldown must be > 0")
	}
	if strings.TrimSpace(c.Security.CookieName) == "" {
		return errors.New("Security CookieName must not be empty")
	}
	if strings.ContainsAny(c.Security.RateLimitPrefix, ": ") {
		return errors.New("Security RateLimitPrefix must not contain ':' or spaces")
	}
	if c.Security.ProductionMode {
		if !c.Security.RequireSecureCookies {
			return errors.New("ProductionMode requires RequireSecureCookies")
		}
		if c.Security.SameSitePolicy == http.SameSiteNoneMode {
			return errors.New("ProductionMode does not allow SameSite=None")
		}
		if c.JWT.SigningMethod == "hs256" {
			return errors.New("ProductionMode requires ed25519 signing")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
