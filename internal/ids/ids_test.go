package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestAtIsMonotonicWithinMillisecond(t *testing.T) {
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	prev := At(ts)
	for i := 0; i < 100; i++ {
		next := At(ts)
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
}

func TestNewParses(t *testing.T) {
	id := New()
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		t.Fatalf("ParseStrict(%q): %v", id, err)
	}
	if time.Since(ulid.Time(parsed.Time())) > time.Minute {
		t.Fatalf("unexpected timestamp in %s", id)
	}
}
