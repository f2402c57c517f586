// Package refresh drives periodic recomputation of one-time codes for
// a presentation layer. The scheduler knows nothing about rendering:
// each tick it derives the current code for every entry plus the
// seconds left in the window and hands the result to a sink callback.
// Cancelling the context stops the ticks.
package refresh

import (
	"context"
	"time"

	"github.com/keyfob/keyfob/internal/totp"
)

// Entry is one secret the scheduler derives codes for.
type Entry struct {
	Name   string
	Secret string
}

// Frame is the per-entry result of a tick. Err is set when the secret
// fails to decode; Code is then empty, never a placeholder.
type Frame struct {
	Name string
	Code string
	Err  error
}

// Sink receives the frames of one tick together with the seconds
// remaining in the current window.
type Sink func(frames []Frame, remaining int)

// Scheduler recomputes codes once per tick interval.
type Scheduler struct {
	Digits   int
	Period   int
	Interval time.Duration // defaults to one second

	// Entries supplies the current secrets on every tick, so the view
	// follows store mutations without restarting the scheduler.
	Entries func() []Entry

	// now is swappable for tests.
	now func() time.Time
}

// Run emits one tick immediately, then one per interval, until ctx is
// cancelled. It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, sink Sink) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}

	s.tick(sink)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(sink)
		}
	}
}

func (s *Scheduler) tick(sink Sink) {
	at := time.Now()
	if s.now != nil {
		at = s.now()
	}

	var entries []Entry
	if s.Entries != nil {
		entries = s.Entries()
	}

	frames := make([]Frame, 0, len(entries))
	for _, e := range entries {
		code, err := totp.GenerateAt(e.Secret, s.Digits, s.Period, at)
		frames = append(frames, Frame{Name: e.Name, Code: code, Err: err})
	}
	sink(frames, totp.SecondsRemaining(s.Period, at))
}
