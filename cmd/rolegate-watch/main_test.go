package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPostSignOutSendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := postSignOut(context.Background(), srv.Client(), srv.URL, "tok-1"); err != nil {
		t.Fatalf("postSignOut: %v", err)
	}
	if got != "Bearer tok-1" {
		t.Fatalf("unexpected authorization %q", got)
	}
}

func TestPostSignOutServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := postSignOut(context.Background(), srv.Client(), srv.URL, "tok-1"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestReadLinesClosesOnEOF(t *testing.T) {
	out := make(chan string)
	go readLines(strings.NewReader("n\nq\n"), out)

	var lines []string
	for l := range out {
		lines = append(lines, l)
	}
	if len(lines) != 2 || lines[0] != "n" || lines[1] != "q" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("ROLEGATE_WATCH_INTERVAL", "30s")
	t.Setenv("ROLEGATE_TOKEN", "tok-env")

	v := envDefaults()
	if got := v.GetDuration("watch_interval"); got != 30*time.Second {
		t.Fatalf("unexpected interval %s", got)
	}
	if got := v.GetString("token"); got != "tok-env" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := v.GetDuration("watch_timeout"); got != 10*time.Second {
		t.Fatalf("unexpected timeout default %s", got)
	}
}
