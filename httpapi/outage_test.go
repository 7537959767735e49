package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/rolegate/store"
	"github.com/MrEthical07/rolegate/store/memstore"
	"github.com/MrEthical07/rolegate/watchdog"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connection refused")

// flakyStore fails identity lookups while down is set.
type flakyStore struct {
	store.Store
	down atomic.Bool
}

func (s *flakyStore) FindIdentity(ctx context.Context, id string) (store.Identity, error) {
	if s.down.Load() {
		return store.Identity{}, errConnRefused
	}
	return s.Store.FindIdentity(ctx, id)
}

func TestSessionEndpointStoreOutage(t *testing.T) {
	st := &flakyStore{Store: memstore.New()}
	ts := newTestServerWithStore(t, st)
	token := ts.signIn(t, "marketer@example.com")

	st.down.Store(true)
	resp := ts.do(t, http.MethodGet, "/api/auth/session", token, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 during outage, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/campaigns", token, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected protected route to fail closed with 503, got %d", resp.StatusCode)
	}

	st.down.Store(false)
	resp = ts.do(t, http.MethodGet, "/api/auth/session", token, "")
	if resp.StatusCode != http.StatusOK || decodeStatus(t, resp) != "ok" {
		t.Fatalf("expected session ok after recovery, got %d", resp.StatusCode)
	}
}

func TestWatchdogSurvivesStoreOutage(t *testing.T) {
	st := &flakyStore{Store: memstore.New()}
	ts := newTestServerWithStore(t, st)
	token := ts.signIn(t, "marketer@example.com")
	st.down.Store(true)

	var signedOut atomic.Bool
	poller := watchdog.NewHTTPPoller(ts.srv.Client(), ts.srv.URL+"/api/auth/session", token)
	w := watchdog.New(poller,
		watchdog.PromptFunc(func(context.Context) error { return nil }),
		watchdog.SignOutFunc(func(context.Context) error { signedOut.Store(true); return nil }),
		watchdog.Config{Interval: 10 * time.Millisecond},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		w.Navigate()
		time.Sleep(10 * time.Millisecond)
	}
	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Run to end with the context, got %v", err)
	}
	if w.State() != watchdog.Watching || signedOut.Load() {
		t.Fatalf("store outage must not sign out: state=%s signedOut=%v", w.State(), signedOut.Load())
	}
}
