package rolegate

import (
	"context"
	"testing"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
	"github.com/MrEthical07/rolegate/store/memstore"
)

func newBenchmarkEngine(b *testing.B) (*Engine, string) {
	b.Helper()

	st := memstore.New()
	if err := store.SeedRoles(context.Background(), st, permission.DefaultRoles()); err != nil {
		b.Fatalf("seed roles: %v", err)
	}
	engine, err := New().WithConfig(testConfig()).WithStore(st).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	b.Cleanup(engine.Close)

	if _, err := engine.CreateIdentity(context.Background(), NewIdentity{
		Email: "bench@example.com", Password: testPassword, RoleID: permission.RoleMarketer,
	}); err != nil {
		b.Fatalf("CreateIdentity: %v", err)
	}
	token, _, err := engine.SignIn(context.Background(), "bench@example.com", testPassword)
	if err != nil {
		b.Fatalf("SignIn: %v", err)
	}
	return engine, token
}

func BenchmarkAuthenticate(b *testing.B) {
	engine, token := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st, _, err := engine.Authenticate(context.Background(), token)
		if err != nil || !st.Authenticated() {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkRevalidate(b *testing.B) {
	engine, token := newBenchmarkEngine(b)
	st, _, _ := engine.Authenticate(context.Background(), token)
	claims, _ := st.Claims()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Revalidate(context.Background(), claims)
	}
}

func BenchmarkAuthorize(b *testing.B) {
	engine, token := newBenchmarkEngine(b)
	st, _, _ := engine.Authenticate(context.Background(), token)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := engine.Authorize(st, "campaigns:create"); err != nil {
			b.Fatalf("authorize: %v", err)
		}
	}
}
