package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/rolegate/session"
	"go.uber.org/zap"
)

// DefaultInterval is the heartbeat period.
const DefaultInterval = 2 * time.Minute

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("watchdog: already running")

// State is the watchdog lifecycle.
type State int

const (
	Watching State = iota
	Prompting
	SignedOut
)

func (s State) String() string {
	switch s {
	case Watching:
		return "watching"
	case Prompting:
		return "prompting"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Poller asks the server for the current session status.
type Poller interface {
	Poll(ctx context.Context) (session.Status, error)
}

// Prompter tells the user the session must end and blocks until they act.
type Prompter interface {
	Prompt(ctx context.Context) error
}

// SignOuter ends the client session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// SignOutFunc adapts a function to [SignOuter].
type SignOutFunc func(ctx context.Context) error

func (f SignOutFunc) SignOut(ctx context.Context) error { return f(ctx) }

// PromptFunc adapts a function to [Prompter].
type PromptFunc func(ctx context.Context) error

func (f PromptFunc) Prompt(ctx context.Context) error { return f(ctx) }

// Config tunes a Watchdog. Zero values take defaults.
type Config struct {
	Interval    time.Duration
	PollTimeout time.Duration
	Logger      *zap.Logger
}

type pollResult struct {
	seq    uint64
	status session.Status
	err    error
}

// Watchdog is safe for concurrent use. Navigate and SetVisible may be called
// from any goroutine before or during Run.
type Watchdog struct {
	poller   Poller
	prompter Prompter
	signOut  SignOuter
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	pollReq  chan struct{}
	visible  chan bool
	results  chan pollResult
	stopCh   chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	state       State
	running     bool
	seq         uint64
	lastApplied uint64
	discarded   uint64
}

// New returns a Watchdog in the Watching state with the client visible.
func New(p Poller, pr Prompter, so SignOuter, cfg Config) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Watchdog{
		poller:   p,
		prompter: pr,
		signOut:  so,
		interval: cfg.Interval,
		timeout:  cfg.PollTimeout,
		log:      log.Named("watchdog"),
		pollReq:  make(chan struct{}, 1),
		visible:  make(chan bool, 1),
		results:  make(chan pollResult, 8),
		stopCh:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Navigate schedules one status poll. It never blocks and never polls on the
// caller's goroutine.
func (w *Watchdog) Navigate() {
	select {
	case w.pollReq <- struct{}{}:
	default:
	}
}

// SetVisible starts or stops the heartbeat.
func (w *Watchdog) SetVisible(visible bool) {
	// Keep only the latest value.
	for {
		select {
		case w.visible <- visible:
			return
		default:
		}
		select {
		case <-w.visible:
		default:
		}
	}
}

// Stop ends Run without signing out. A pending prompt still finishes and
// signs out.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Run polls once, then on every Navigate and heartbeat tick, until the
// session is signed out, ctx is done, or Stop is called.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		ticker    *time.Ticker
		tick      <-chan time.Time
		promptEnd chan struct{}
	)
	startTicker := func() {
		if ticker == nil {
			ticker = time.NewTicker(w.interval)
			tick = ticker.C
		}
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	startTicker()
	w.startPoll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.awaitPrompt(promptEnd)
			return ctx.Err()

		case <-w.stopCh:
			cancel()
			w.awaitPrompt(promptEnd)
			return nil

		case <-w.pollReq:
			if w.State() == Watching {
				w.startPoll(ctx)
			}

		case <-tick:
			if w.State() == Watching {
				w.startPoll(ctx)
			}

		case v := <-w.visible:
			if v && w.State() == Watching {
				startTicker()
			} else {
				stopTicker()
			}

		case res := <-w.results:
			if w.apply(res) {
				stopTicker()
				promptEnd = make(chan struct{})
				go w.prompt(ctx, promptEnd)
			}

		case <-promptEnd:
			return nil
		}
	}
}

func (w *Watchdog) startPoll(ctx context.Context) {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	go func() {
		pctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		status, err := w.poller.Poll(pctx)
		select {
		case w.results <- pollResult{seq: seq, status: status, err: err}:
		case <-ctx.Done():
		}
	}()
}

// apply records res and reports whether it moved the watchdog to Prompting.
// Results older than the newest applied one are dropped.
func (w *Watchdog) apply(res pollResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Watching {
		return false
	}
	if res.err != nil {
		w.log.Warn("session poll failed", zap.Uint64("seq", res.seq), zap.Error(res.err))
		return false
	}
	if res.seq <= w.lastApplied {
		w.discarded++
		w.log.Debug("stale session poll discarded", zap.Uint64("seq", res.seq), zap.Uint64("applied", w.lastApplied))
		return false
	}
	w.lastApplied = res.seq

	switch res.status {
	case session.StatusRequiresLogout, session.StatusUnauthenticated:
		w.state = Prompting
		w.log.Info("session ended on server", zap.String("status", string(res.status)))
		return true
	default:
		return false
	}
}

func (w *Watchdog) prompt(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	if err := w.prompter.Prompt(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.log.Warn("prompt failed", zap.Error(err))
	}
	if err := w.signOut.SignOut(context.WithoutCancel(ctx)); err != nil {
		w.log.Warn("sign-out failed", zap.Error(err))
	}

	w.mu.Lock()
	w.state = SignedOut
	w.mu.Unlock()
	w.log.Info("signed out")
}

func (w *Watchdog) awaitPrompt(done <-chan struct{}) {
	if done != nil {
		<-done
	}
}
