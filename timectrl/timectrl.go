package timectrl

import (
	"context"
	"sync"
	"time"
)

// TickClock exposes the current simulation tick. Entities receive the tick
// explicitly; this interface is for observers such as the health server.
type TickClock interface {
	// Now returns the index of the tick currently executing, or of the last
	// completed tick once the run has ended.
	Now() uint64
}

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime waits Interval of wall-clock time between ticks.
	RealTime Mode = iota
	// Accelerated runs ticks back to back.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// ParseMode maps "realtime" / "accelerated" onto a Mode. Unknown strings fall
// back to Accelerated.
func ParseMode(s string) Mode {
	if s == "realtime" || s == "real-time" {
		return RealTime
	}
	return Accelerated
}

// TimeController drives simulation ticks and notifies registered listeners.
// Listeners run synchronously on the controller's goroutine in registration
// order, so every listener observes the same tick value and no listener is
// preempted by another mid-tick.
type TimeController struct {
	mu       sync.RWMutex
	Interval time.Duration
	Mode     Mode

	current uint64

	listeners []func(ctx context.Context, tick uint64)
}

// NewTimeController constructs a controller.
func NewTimeController(interval time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Interval: interval,
		Mode:     mode,
	}
}

// Now returns the current tick. Implements TickClock.
func (tc *TimeController) Now() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(ctx context.Context, tick uint64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run advances the clock through ticks 0..iterations-1, invoking every
// listener once per tick. It returns ctx.Err() if the context is cancelled
// between ticks and nil once all iterations have run.
func (tc *TimeController) Run(ctx context.Context, iterations int) error {
	tc.mu.RLock()
	listeners := append([]func(context.Context, uint64){}, tc.listeners...)
	tc.mu.RUnlock()

	var pace <-chan time.Time
	if tc.Mode == RealTime && tc.Interval > 0 {
		ticker := time.NewTicker(tc.Interval)
		defer ticker.Stop()
		pace = ticker.C
	}

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pace != nil && i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		}

		tick := uint64(i)
		tc.mu.Lock()
		tc.current = tick
		tc.mu.Unlock()

		for _, fn := range listeners {
			fn(ctx, tick)
		}
	}
	return nil
}
