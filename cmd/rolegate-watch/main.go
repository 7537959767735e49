// Command rolegate-watch is a terminal client for the session watchdog. It
// polls a rolegated session endpoint and, once the server flags the session,
// prompts on stdin before signing out.
//
// Commands read from stdin while watching:
//
//	n  navigate (poll now)
//	h  hide (pause the heartbeat)
//	v  show (resume the heartbeat)
//	q  quit without signing out
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/rolegate/watchdog"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	env := envDefaults()
	var (
		baseURL  = flag.String("url", env.GetString("url"), "rolegated base URL (ROLEGATE_URL)")
		token    = flag.String("token", env.GetString("token"), "session token (ROLEGATE_TOKEN)")
		interval = flag.Duration("interval", env.GetDuration("watch_interval"), "heartbeat interval (ROLEGATE_WATCH_INTERVAL)")
		timeout  = flag.Duration("timeout", env.GetDuration("watch_timeout"), "per-poll timeout (ROLEGATE_WATCH_TIMEOUT)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a session token is required (-token or ROLEGATE_TOKEN)")
		os.Exit(2)
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := strings.TrimRight(*baseURL, "/")
	client := &http.Client{Timeout: *timeout}
	poller := watchdog.NewHTTPPoller(client, base+"/api/auth/session", *token)

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	ack := make(chan struct{}, 1)

	prompter := watchdog.PromptFunc(func(ctx context.Context) error {
		fmt.Println("Your role changed. Press Enter to sign out.")
		select {
		case <-ack:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	signOut := watchdog.SignOutFunc(func(ctx context.Context) error {
		return postSignOut(ctx, client, base+"/api/auth/signout", poller.Token())
	})

	w := watchdog.New(poller, prompter, signOut, watchdog.Config{
		Interval:    *interval,
		PollTimeout: *timeout,
		Logger:      log,
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for {
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watchdog stopped", zap.Error(err))
				os.Exit(1)
			}
			if w.State() == watchdog.SignedOut {
				fmt.Println("Signed out.")
			}
			return
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if w.State() != watchdog.Watching {
				select {
				case ack <- struct{}{}:
				default:
				}
				continue
			}
			switch strings.TrimSpace(line) {
			case "n":
				w.Navigate()
			case "h":
				w.SetVisible(false)
			case "v":
				w.SetVisible(true)
			case "q":
				w.Stop()
			}
		}
	}
}

// envDefaults supplies flag defaults from ROLEGATE_* variables.
func envDefaults() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ROLEGATE")
	v.AutomaticEnv()
	v.SetDefault("url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("watch_interval", watchdog.DefaultInterval)
	v.SetDefault("watch_timeout", 10*time.Second)
	return v
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func postSignOut(ctx context.Context, client *http.Client, url, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sign out: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
