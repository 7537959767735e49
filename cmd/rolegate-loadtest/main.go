// Command rolegate-loadtest drives concurrent session revalidation against a
// Redis-backed store while a writer keeps replacing the MARKETER role's
// permissions. It fails if any revalidation observes an empty permission
// set or rejects a session.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
	"github.com/MrEthical07/rolegate/store"
	"github.com/MrEthical07/rolegate/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var editSets = [][]string{
	{"campaigns:view", "campaigns:create", "campaigns:edit"},
	{"campaigns:view", "templates:view"},
}

func main() {
	var (
		identities  = flag.Int("identities", 2000, "number of MARKETER identities to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "revalidations to run")
		editEvery   = flag.Duration("edit-every", 5*time.Millisecond, "interval between role edits")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rgload", "store key prefix")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 || *editEvery <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, ops, and edit-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	st := redisstore.New(client, *prefix)
	if err := store.SeedRoles(ctx, st, permission.DefaultRoles()); err != nil {
		fmt.Fprintf(os.Stderr, "seed roles failed: %v\n", err)
		os.Exit(1)
	}

	engine, err := buildEngine(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d identities...\n", *identities)
	startSeed := time.Now()
	claims := make([]rolegate.Claims, *identities)
	for i := range claims {
		ident, err := st.CreateIdentity(ctx, store.Identity{
			Email:  fmt.Sprintf("load-%d@example.com", i),
			Status: store.StatusActive,
			RoleID: permission.RoleMarketer,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create identity failed: %v\n", err)
			os.Exit(1)
		}
		c, err := engine.Mint(ctx, ident)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mint failed: %v\n", err)
			os.Exit(1)
		}
		claims[i] = c
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	stopEdits := make(chan struct{})
	var edits atomic.Int64
	var editWG sync.WaitGroup
	editWG.Add(1)
	go func() {
		defer editWG.Done()
		runEditor(ctx, engine, *editEvery, stopEdits, &edits)
	}()

	stats := runRevalidatePhase(ctx, engine, claims, *ops, *concurrency)
	close(stopEdits)
	editWG.Wait()

	fmt.Println("---- results ----")
	fmt.Printf("role edits: %d\n", edits.Load())
	printStats("revalidate", stats)
	fmt.Printf("valid=%d requires_logout=%d invalid=%d empty_sets=%d\n",
		stats.valid, stats.requiresLogout, stats.failures, stats.emptySets)

	if stats.failures > 0 || stats.emptySets > 0 {
		os.Exit(1)
	}
}

func buildEngine(st store.Store) (*rolegate.Engine, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	cfg := rolegate.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = key
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.EnableLatencyHistograms = true
	return rolegate.New().WithConfig(cfg).WithStore(st).Build()
}

func runEditor(ctx context.Context, engine *rolegate.Engine, every time.Duration, stop <-chan struct{}, edits *atomic.Int64) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := engine.ReplacePermissions(ctx, permission.RoleMarketer, editSets[i%len(editSets)]); err != nil {
				fmt.Fprintf(os.Stderr, "edit failed: %v\n", err)
				continue
			}
			edits.Add(1)
		}
	}
}

func runRevalidatePhase(ctx context.Context, engine *rolegate.Engine, claims []rolegate.Claims, ops, concurrency int) phaseStats {
	var (
		wg             sync.WaitGroup
		cursor         int64
		failures       int64
		emptySets      int64
		valid          int64
		requiresLogout int64
		latencies      = make([]time.Duration, 0, ops)
		mu             sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := claims[r.Intn(len(claims))]
				t0 := time.Now()
				st := engine.Revalidate(ctx, c)
				d := time.Since(t0)

				switch st.Kind() {
				case session.KindValid:
					atomic.AddInt64(&valid, 1)
				case session.KindRequiresLogout:
					atomic.AddInt64(&requiresLogout, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
				if st.Authenticated() && st.Permissions().Len() == 0 {
					atomic.AddInt64(&emptySets, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	stats.emptySets = emptySets
	stats.valid = valid
	stats.requiresLogout = requiresLogout
	return stats
}

type phaseStats struct {
	total          time.Duration
	ops            int
	failures       int64
	emptySets      int64
	valid          int64
	requiresLogout int64
	p50            time.Duration
	p95            time.Duration
	p99            time.Duration
	opsPerS        float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
