package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration is the daemon configuration read from rolegated.yaml and
// ROLEGATE_* environment variables.
type Configuration struct {
	Server    ServerConfiguration
	Log       LogConfiguration
	Store     StoreConfiguration
	Redis     RedisConfiguration
	Postgres  PostgresConfiguration
	JWT       JWTConfiguration
	Security  SecurityConfiguration
	Bootstrap BootstrapConfiguration
}

// ServerConfiguration controls the HTTP listener.
type ServerConfiguration struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type LogConfiguration struct {
	Level string
}

// StoreConfiguration selects the backing store: memory, redis, or postgres.
type StoreConfiguration struct {
	Driver string
}

type RedisConfiguration struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Throttle moves sign-in throttling to Redis even when the store is not Redis.
	Throttle bool
}

type PostgresConfiguration struct {
	DSN     string
	Migrate bool
}

// JWTConfiguration selects the token signing method and lifetime.
type JWTConfiguration struct {
	Method string
	// Ed25519Seed is a base64 32-byte seed. Empty generates a key per process.
	Ed25519Seed string
	HMACSecret  string
	TTL         time.Duration
	Issuer      string
}

type SecurityConfiguration struct {
	ProductionMode bool
	SecureCookies  bool
	Audit          bool
}

// BootstrapConfiguration seeds a SUPER_ADMIN on first start.
type BootstrapConfiguration struct {
	AdminEmail    string
	AdminPassword string
}

func loadConfig(path string) (*Configuration, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rolegate")
		v.SetConfigName("rolegated")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ROLEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdowntimeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "rg")
	v.SetDefault("redis.throttle", false)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("jwt.method", "ed25519")
	v.SetDefault("jwt.ttl", "8h")
	v.SetDefault("jwt.issuer", "rolegate")
	v.SetDefault("security.productionmode", false)
	v.SetDefault("security.securecookies", true)
	v.SetDefault("security.audit", true)

	// Keys only set through the environment must be known to Unmarshal.
	for _, key := range []string{
		"redis.password", "postgres.dsn", "jwt.ed25519seed", "jwt.hmacsecret",
		"bootstrap.adminemail", "bootstrap.adminpassword",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, err
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
