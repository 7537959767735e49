// Command rolegated serves the rolegate HTTP API.
//
// Configuration comes from rolegated.yaml (or -config) and ROLEGATE_*
// environment variables, for example ROLEGATE_STORE_DRIVER=postgres and
// ROLEGATE_POSTGRES_DSN.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/httpapi"
	rgprom "github.com/MrEthical07/rolegate/metrics/export/prometheus"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
	"github.com/MrEthical07/rolegate/store/memstore"
	"github.com/MrEthical07/rolegate/store/pgstore"
	"github.com/MrEthical07/rolegate/store/redisstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("rolegated stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *Configuration, log *zap.Logger) error {
	var rdb redis.UniversalClient
	if cfg.Store.Driver == "redis" || cfg.Redis.Throttle {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	st, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SeedRoles(ctx, st, permission.DefaultRoles()); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	engineCfg, err := engineConfig(cfg, log)
	if err != nil {
		return err
	}
	builder := rolegate.New().
		WithConfig(engineCfg).
		WithStore(st).
		WithLogger(log).
		WithAuditSink(rolegate.NewZapSink(log))
	if cfg.Redis.Throttle && rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := bootstrapAdmin(ctx, engine, cfg.Bootstrap, log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		rgprom.NewCollector(engine),
	)
	api, err := httpapi.New(engine, httpapi.Options{Logger: log, Registerer: reg})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", api.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *Configuration, rdb redis.UniversalClient) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory", "":
		return memstore.New(), func() {}, nil
	case "redis":
		s := redisstore.New(rdb, cfg.Redis.Prefix)
		if err := s.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return s, func() {}, nil
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, nil, errors.New("postgres.dsn is required")
		}
		s, err := pgstore.Open(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func engineConfig(cfg *Configuration, log *zap.Logger) (rolegate.Config, error) {
	out := rolegate.DefaultConfig()
	out.JWT.TTL = cfg.JWT.TTL
	out.JWT.Issuer = cfg.JWT.Issuer
	out.JWT.SigningMethod = cfg.JWT.Method
	out.Security.ProductionMode = cfg.Security.ProductionMode
	out.Security.RequireSecureCookies = cfg.Security.SecureCookies
	out.Security.RateLimitPrefix = cfg.Redis.Prefix
	out.Audit.Enabled = cfg.Security.Audit

	switch cfg.JWT.Method {
	case "hs256":
		out.JWT.PrivateKey = []byte(cfg.JWT.HMACSecret)
	case "ed25519":
		var seed []byte
		if cfg.JWT.Ed25519Seed == "" {
			if cfg.Security.ProductionMode {
				return rolegate.Config{}, errors.New("jwt.ed25519seed is required in production mode")
			}
			seed = make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				return rolegate.Config{}, err
			}
			log.Warn("no signing key configured, sessions will not survive a restart")
		} else {
			decoded, err := base64.StdEncoding.DecodeString(cfg.JWT.Ed25519Seed)
			if err != nil || len(decoded) != ed25519.SeedSize {
				return rolegate.Config{}, errors.New("jwt.ed25519seed must be base64 of 32 bytes")
			}
			seed = decoded
		}
		priv := ed25519.NewKeyFromSeed(seed)
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = priv.Public().(ed25519.PublicKey)
	}
	return out, out.Validate()
}

func bootstrapAdmin(ctx context.Context, engine *rolegate.Engine, cfg BootstrapConfiguration, log *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	ident, err := engine.CreateIdentity(ctx, rolegate.NewIdentity{
		Email:    cfg.AdminEmail,
		Name:     "Administrator",
		Password: cfg.AdminPassword,
		RoleID:   permission.RoleSuperAdmin,
	})
	switch {
	case errors.Is(err, rolegate.ErrConflict):
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Info("bootstrap admin created", zap.String("identity_id", ident.ID))
	return nil
}
