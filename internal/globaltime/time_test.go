package globaltime

import (
	"testing"
	"time"
)

func TestFreeze(t *testing.T) {
	pinned := time.Date(2025, 2, 14, 9, 30, 0, 0, time.FixedZone("EET", 2*60*60))
	restore := Freeze(pinned)

	if got := UTC(); !got.Equal(pinned) || got.Location() != time.UTC {
		t.Fatalf("unexpected frozen time: %s", got)
	}
	if got := Since(pinned.Add(-time.Minute)); got != time.Minute {
		t.Fatalf("unexpected elapsed time: %s", got)
	}

	restore()
	if got := Now(); got.Sub(pinned) < time.Hour {
		t.Fatalf("expected the real clock after restore, got %s", got)
	}
}
