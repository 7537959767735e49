package rolegate

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
	"github.com/MrEthical07/rolegate/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxSignInAttempts = 3
	cfg.Security.SignInCooldown = time.Minute
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *memstore.Store
	sink   *ChannelSink
}

func newTestEnv(t *testing.T, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()

	st := memstore.New()
	if err := store.SeedRoles(context.Background(), st, permission.DefaultRoles()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	cfg := testConfig()
	sink := NewChannelSink(256)
	b := New().WithStore(st).WithAuditSink(sink)
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: st, sink: sink}
}

func (env *testEnv) createIdentity(t *testing.T, email, roleID string) Identity {
	t.Helper()
	ident, err := env.engine.CreateIdentity(context.Background(), NewIdentity{
		Email:    email,
		Name:     "Test User",
		Password: testPassword,
		RoleID:   roleID,
	})
	if err != nil {
		t.Fatalf("CreateIdentity(%s): %v", email, err)
	}
	return ident
}

func (env *testEnv) signIn(t *testing.T, email string) (string, Claims) {
	t.Helper()
	token, claims, err := env.engine.SignIn(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("SignIn(%s): %v", email, err)
	}
	return token, claims
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}
