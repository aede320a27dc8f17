package authflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// categoryDefaultPolicies is the per-category retry budget applied when no
// per-code override is configured. Non-recoverable categories carry a zero
// policy and never reach the delay path.
var categoryDefaultPolicies = map[ErrorCategory]RetryPolicy{
	CategoryNetwork:    {MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, BackoffMultiplier: 2, Exponential: true},
	CategoryRateLimit:  {MaxAttempts: 2, BaseDelay: 2 * time.Second, BackoffMultiplier: 2, Exponential: true},
	CategorySystem:     {MaxAttempts: 2, BaseDelay: time.Second, BackoffMultiplier: 2, Exponential: true},
	CategoryThirdParty: {MaxAttempts: 2, BaseDelay: time.Second},
}

type ledgerKey struct {
	code  string
	scope string
}

type breakerEntry struct {
	failures    int
	lastFailure time.Time
}

// recoverer owns the retry ledger and the per-code circuit breaker. One
// instance lives for the lifetime of a [Flow]; the ledger is flow-local and
// never persisted.
type recoverer struct {
	cfg RecoveryConfig

	mu      sync.Mutex
	ledger  map[ledgerKey]int
	breaker map[string]*breakerEntry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newRecoverer(cfg RecoveryConfig) *recoverer {
	return &recoverer{
		cfg:     cfg,
		ledger:  make(map[ledgerKey]int),
		breaker: make(map[string]*breakerEntry),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CanRecover reports whether the classified error is eligible for the
// retry path at all. The breaker and the attempt budget are checked later,
// inside Recover.
func (r *recoverer) CanRecover(cerr *ClassifiedError) bool {
	if cerr == nil {
		return false
	}
	return cerr.Retryable
}

// Recover blocks for the computed backoff delay and returns nil when the
// caller may retry. It returns a terminal error when the error is not
// recoverable, the per-code circuit breaker is open, or the attempt budget
// is exhausted (which itself records a breaker failure).
func (r *recoverer) Recover(ctx context.Context, cerr *ClassifiedError, scope string) error {
	if cerr == nil || !cerr.Retryable {
		return ErrNotRecoverable
	}

	r.mu.Lock()
	if r.breakerOpenLocked(cerr.Code) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cerr.Code)
	}

	policy := r.policyFor(cerr)
	key := ledgerKey{code: cerr.Code, scope: scope}
	attempt := r.ledger[key] + 1
	if attempt > policy.MaxAttempts {
		r.recordBreakerFailureLocked(cerr.Code)
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMaxRetriesExceeded, cerr.Code)
	}
	r.ledger[key] = attempt
	r.mu.Unlock()

	return r.sleep(ctx, retryDelay(policy, attempt))
}

// RecordFailure feeds the circuit breaker outside the retry path, e.g. when
// a retried call fails again after the ledger is already spent.
func (r *recoverer) RecordFailure(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordBreakerFailureLocked(code)
}

// ClearScope drops the ledger entries for one attempt scope. Called on step
// success so the next failure starts from attempt one.
func (r *recoverer) ClearScope(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.ledger {
		if key.scope == scope {
			delete(r.ledger, key)
		}
	}
}

func (r *recoverer) policyFor(cerr *ClassifiedError) RetryPolicy {
	if policy, ok := r.cfg.PolicyOverrides[cerr.Code]; ok {
		return policy
	}
	if policy, ok := categoryDefaultPolicies[cerr.Category]; ok {
		return policy
	}
	return RetryPolicy{}
}

func retryDelay(policy RetryPolicy, attempt int) time.Duration {
	if !policy.Exponential || policy.BackoffMultiplier <= 1 {
		return policy.BaseDelay
	}
	delay := float64(policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= policy.BackoffMultiplier
	}
	return time.Duration(delay)
}

// breakerOpenLocked also expires stale entries: once the window has passed
// since the last failure the entry is deleted and the next failure counts
// as failure one again.
func (r *recoverer) breakerOpenLocked(code string) bool {
	entry, ok := r.breaker[code]
	if !ok {
		return false
	}
	if r.now().Sub(entry.lastFailure) >= r.cfg.BreakerWindow {
		delete(r.breaker, code)
		return false
	}
	return entry.failures >= r.cfg.BreakerThreshold
}

func (r *recoverer) recordBreakerFailureLocked(code string) {
	now := r.now()
	entry, ok := r.breaker[code]
	if !ok || now.Sub(entry.lastFailure) >= r.cfg.BreakerWindow {
		r.breaker[code] = &breakerEntry{failures: 1, lastFailure: now}
		return
	}
	entry.failures++
	entry.lastFailure = now
}
