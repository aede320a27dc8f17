package authflow

import (
	"context"
	"sync"
	"time"
)

// debouncer coalesces rapid re-submits of the OTP trigger into one
// execution after a quiet period. Callers that arrive while a fire is
// pending share the eventual result. A caller whose context ends while
// waiting detaches; once no waiters remain the pending fire is dropped
// so no upstream call runs for nobody.
type debouncer struct {
	quiet time.Duration

	mu      sync.Mutex
	pending func(ctx context.Context) (*OTPChallenge, error)
	timer   *time.Timer
	waiters []chan fireResult
}

type fireResult struct {
	challenge *OTPChallenge
	err       error
}

func newDebouncer(quiet time.Duration) *debouncer {
	return &debouncer{quiet: quiet}
}

// Do schedules fn after the quiet period and blocks until it runs or ctx
// is done. A second Do arriving before the fire replaces fn and joins the
// same fire, resetting the quiet period. The result reaches each waiter
// through its own channel, never through variables shared with the timer
// goroutine.
func (d *debouncer) Do(ctx context.Context, fn func(ctx context.Context) (*OTPChallenge, error)) (*OTPChallenge, error) {
	if d.quiet <= 0 {
		return fn(ctx)
	}

	done := make(chan fireResult, 1)

	d.mu.Lock()
	d.pending = fn
	d.waiters = append(d.waiters, done)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
	d.mu.Unlock()

	select {
	case res := <-done:
		return res.challenge, res.err
	case <-ctx.Done():
		d.detach(done)
		return nil, ctx.Err()
	}
}

// detach removes a cancelled waiter and, when it was the last one, drops
// the pending fire.
func (d *debouncer) detach(done chan fireResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, w := range d.waiters {
		if w == done {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			break
		}
	}
	if len(d.waiters) == 0 {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.pending = nil
	}
}

func (d *debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	waiters := d.waiters
	d.pending = nil
	d.waiters = nil
	d.timer = nil
	d.mu.Unlock()

	if fn == nil || len(waiters) == 0 {
		return
	}
	challenge, err := fn(context.Background())
	for _, w := range waiters {
		w <- fireResult{challenge: challenge, err: err}
	}
}
