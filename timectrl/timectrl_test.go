package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerRunInvokesListenersInOrder(t *testing.T) {
	tc := NewTimeController(0, Accelerated)

	var calls []string
	tc.AddListener(func(_ context.Context, tick uint64) {
		calls = append(calls, "a"+string(rune('0'+tick)))
	})
	tc.AddListener(func(_ context.Context, tick uint64) {
		if got := tc.Now(); got != tick {
			t.Fatalf("Now() = %d inside listener, want %d", got, tick)
		}
		calls = append(calls, "b"+string(rune('0'+tick)))
	})

	if err := tc.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"a0", "b0", "a1", "b1", "a2", "b2"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
	if got := tc.Now(); got != 2 {
		t.Fatalf("Now() after run = %d, want 2", got)
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(0, Accelerated)
	ctx, cancel := context.WithCancel(context.Background())

	ticks := 0
	tc.AddListener(func(_ context.Context, tick uint64) {
		ticks++
		if tick == 4 {
			cancel()
		}
	})

	err := tc.Run(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}
}

func TestTimeControllerRealTimePaces(t *testing.T) {
	tc := NewTimeController(5*time.Millisecond, RealTime)
	ticks := 0
	tc.AddListener(func(context.Context, uint64) { ticks++ })

	start := time.Now()
	if err := tc.Run(context.Background(), 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("real-time run finished in %v, expected at least 3 intervals", elapsed)
	}
	if ticks != 4 {
		t.Fatalf("ticks = %d, want 4", ticks)
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("realtime") != RealTime {
		t.Fatalf("realtime should parse to RealTime")
	}
	if ParseMode("accelerated") != Accelerated || ParseMode("bogus") != Accelerated {
		t.Fatalf("unexpected fallback mode")
	}
}
