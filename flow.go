package authflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/paygate-labs/authflow/internal/track"
)

// Retry ledger scopes. Each logical operation tracks its attempt budget
// independently.
const (
	scopeOTPTrigger  = "otp_trigger"
	scopeTokenLogin  = "token_login"
	scopeTokenSignup = "token_signup"
)

// Flow defines a public type used by authflow APIs.
//
// A Flow models one user's authentication attempt. Transitions are computed
// from an event plus the previous state snapshot taken under the flow lock;
// there is no shadow mutable reference for callbacks to read. Network calls
// run outside the lock and their results are discarded when the step
// sequence has moved on in the meantime.
type Flow struct {
	config  Config
	scopeID string

	mu            sync.Mutex
	state         FlowState
	bundle        CredentialBundle
	whatsAppOptIn bool
	otpFailures   int
	assistChecked bool
	assistOffered bool
	signedUp      bool
	grant         *TokenGrant
	inFlight      [4]bool
	stepSeq       uint64

	tokenEndpoint TokenEndpoint
	otpEndpoint   OTPEndpoint
	featureGate   FeatureGate
	pending       *pendingStore
	recovery      *recoverer
	otpDebounce   *debouncer
	track         *track.Dispatcher
	metrics       *Metrics

	now func() time.Time
}

// State returns the current step of the attempt.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ScopeID returns the identifier the pending record and terminal markers
// are keyed under. Callers carry it across the redirect boundary.
func (f *Flow) ScopeID() string {
	return f.scopeID
}

// Grant returns the issued token, or nil before [StateTokenIssued].
func (f *Flow) Grant() *TokenGrant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grant
}

// SignedUp reports whether the issued token came out of the signup path.
// False until [StateTokenIssued].
func (f *Flow) SignedUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedUp
}

// Credentials returns a snapshot of the current credential bundle.
func (f *Flow) Credentials() CredentialBundle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bundle
}

// Close describes the close operation and its observable behavior.
func (f *Flow) Close() {
	if f == nil {
		return
	}
	if f.track != nil {
		f.track.Close()
	}
}

// TrackDropped reports tracking events dropped under dispatcher backpressure.
func (f *Flow) TrackDropped() uint64 {
	if f == nil {
		return 0
	}
	return f.track.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (f *Flow) MetricsSnapshot() MetricsSnapshot {
	if f == nil || f.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return f.metrics.Snapshot()
}

func (f *Flow) metricInc(id MetricID) {
	if f == nil || f.metrics == nil {
		return
	}
	f.metrics.Inc(id)
}

func (f *Flow) warn(msg string) {
	log.Println(msg)
}

// beginStep validates the current state and takes the per-step in-flight
// guard. It returns the step sequence the caller must present back to
// applyStep, plus a snapshot of the bundle for use outside the lock.
func (f *Flow) beginStep(want FlowState) (uint64, CredentialBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != want {
		return 0, CredentialBundle{}, ErrInvalidState
	}
	if f.inFlight[want] {
		return 0, CredentialBundle{}, ErrSubmitInFlight
	}
	f.inFlight[want] = true
	return f.stepSeq, f.bundle, nil
}

// applyStep re-takes the lock after the network call, releases the
// in-flight guard, and reports whether the result is still current. A
// false return means the state machine moved on (abandon, resume, another
// transition) and the result must be discarded; the lock is already
// released. A true return leaves the lock held for the caller to apply
// the transition and unlock.
func (f *Flow) applyStep(step FlowState, seq uint64) bool {
	f.mu.Lock()
	f.inFlight[step] = false
	if f.stepSeq != seq {
		f.mu.Unlock()
		return false
	}
	return true
}

// releaseStep drops the in-flight guard without applying a transition.
// Used when validation fails after beginStep but before any network call.
func (f *Flow) releaseStep(step FlowState) {
	f.mu.Lock()
	f.inFlight[step] = false
	f.mu.Unlock()
}

// transitionLocked moves the state machine and invalidates any in-flight
// results from the previous step.
func (f *Flow) transitionLocked(next FlowState) {
	f.state = next
	f.stepSeq++
}

// requestToken performs one logical token call: classify on failure, feed
// the breaker, and loop through bounded backoff-delayed retries while the
// recovery engine allows it. The returned error is always classified.
func (f *Flow) requestToken(ctx context.Context, req TokenRequest, scope string) (*TokenGrant, *ClassifiedError) {
	for {
		start := time.Now()
		grant, err := f.tokenEndpoint.RequestToken(ctx, req)
		if f.metrics != nil {
			f.metrics.Observe(MetricTokenLatency, time.Since(start))
		}
		if err == nil {
			f.recovery.ClearScope(scope)
			return finalizeGrant(grant, f.now()), nil
		}

		cerr := Classify(err)
		if !f.recovery.CanRecover(cerr) {
			return nil, cerr
		}

		f.recovery.RecordFailure(cerr.Code)
		if rerr := f.recovery.Recover(ctx, cerr, scope); rerr != nil {
			f.noteRecoveryTerminal(ctx, rerr, cerr)
			return nil, cerr
		}

		f.metricInc(MetricRetryAttempt)
		f.emitTrack(ctx, trackEventRetryScheduled, f.State(), false, cerr, func() map[string]string {
			return map[string]string{
				"code":  cerr.Code,
				"scope": scope,
			}
		})
	}
}

// triggerOTP performs one logical OTP trigger with the same recovery loop
// as requestToken.
func (f *Flow) triggerOTP(ctx context.Context, req OTPRequest, scope string) (*OTPChallenge, *ClassifiedError) {
	for {
		challenge, err := f.otpEndpoint.TriggerOTP(ctx, req)
		if err == nil {
			f.recovery.ClearScope(scope)
			return challenge, nil
		}

		cerr := Classify(err)
		if !f.recovery.CanRecover(cerr) {
			return nil, cerr
		}

		f.recovery.RecordFailure(cerr.Code)
		if rerr := f.recovery.Recover(ctx, cerr, scope); rerr != nil {
			f.noteRecoveryTerminal(ctx, rerr, cerr)
			return nil, cerr
		}

		f.metricInc(MetricRetryAttempt)
		f.emitTrack(ctx, trackEventRetryScheduled, f.State(), false, cerr, func() map[string]string {
			return map[string]string{
				"code":  cerr.Code,
				"scope": scope,
			}
		})
	}
}

func (f *Flow) noteRecoveryTerminal(ctx context.Context, terminal error, cerr *ClassifiedError) {
	switch {
	case errors.Is(terminal, ErrCircuitOpen):
		f.metricInc(MetricCircuitOpen)
		f.emitTrack(ctx, trackEventCircuitOpen, f.State(), false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
	case errors.Is(terminal, ErrMaxRetriesExceeded):
		f.metricInc(MetricRetryExhausted)
		f.emitTrack(ctx, trackEventRetryExhausted, f.State(), false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
	}
}

// acrInput assembles the ACR builder input from config and the bundle
// snapshot. The MFA supplemental code rides in the qType/qValue pair.
func (f *Flow) acrInput(bundle CredentialBundle, isSignup bool, mfaCode string) ACRInput {
	in := ACRInput{
		IsOTP:       true,
		IsSignup:    isSignup,
		Version:     f.config.ACR.Version,
		CountryCode: f.config.ACR.CountryCode,
		Mobile:      bundle.Mobile,
		Email:       bundle.Email,
		OTPID:       bundle.OTPID,

		LoanApplicationID:   f.config.ACR.LoanApplicationID,
		MerchantID:          f.config.ACR.MerchantID,
		EncryptedMerchantID: f.config.ACR.EncryptedMerchantID,
		MerchantCustomerID:  f.config.ACR.MerchantCustomerID,
		LoginContext:        f.config.ACR.LoginContext,
	}
	if bundle.MFAChallenge && mfaCode != "" {
		in.QType = f.config.ACR.QType
		in.QValue = mfaCode
	}
	return in
}

// completeTokenIssued runs the terminal side effects: drop the pending
// record, persist the contact number and signed-up marker, record the
// grant. Marker writes are best-effort; a failed write degrades downstream
// personalization, never the issued token.
func (f *Flow) completeTokenIssued(ctx context.Context, grant *TokenGrant, signedUp bool) *StepResult {
	if err := f.pending.Clear(ctx, f.scopeID); err != nil {
		f.warn("authflow: pending record clear failed after token issuance")
	}
	if err := f.pending.SetTerminalMarkers(ctx, f.scopeID, f.bundle.Mobile, signedUp); err != nil {
		f.warn("authflow: terminal marker write failed")
	}

	f.grant = grant
	f.signedUp = signedUp
	f.transitionLocked(StateTokenIssued)

	return &StepResult{State: StateTokenIssued, Token: grant}
}

// resetToMobileLocked abandons the current attempt: the credential bundle
// is discarded, which is the only path that unfreezes the accepted mobile
// number.
func (f *Flow) resetToMobileLocked() {
	f.bundle = CredentialBundle{}
	f.whatsAppOptIn = false
	f.otpFailures = 0
	f.transitionLocked(StateEnteringMobile)
}

// Resume rehydrates the flow after a full-page navigation. Entering the
// email route with a fresh pending record restores [StateCollectingEmail]
// with the original freshness window still counting; anything else lands
// on [StateEnteringMobile].
func (f *Flow) Resume(ctx context.Context, route Route) error {
	if f == nil {
		return ErrFlowNotReady
	}

	if route != RouteEmail {
		f.mu.Lock()
		f.resetToMobileLocked()
		f.mu.Unlock()
		return nil
	}

	record, err := f.pending.Load(ctx, f.scopeID)
	if err != nil {
		f.mu.Lock()
		f.resetToMobileLocked()
		f.mu.Unlock()

		f.metricInc(MetricSessionStale)
		f.emitTrack(ctx, trackEventSessionStale, StateEnteringMobile, false, nil, nil)
		return ErrPendingSessionMissing
	}

	// Re-save preserving IssuedAt so the redirect bounce does not extend
	// the freshness window.
	if serr := f.pending.Save(ctx, f.scopeID, record, true); serr != nil {
		f.warn("authflow: pending record refresh failed on resume")
	}

	f.mu.Lock()
	f.bundle = record.Credentials
	f.whatsAppOptIn = record.WhatsAppOptIn
	f.otpFailures = 0
	f.transitionLocked(StateCollectingEmail)
	f.mu.Unlock()

	f.metricInc(MetricSessionResumed)
	f.emitTrack(ctx, trackEventSessionResumed, StateCollectingEmail, true, nil, nil)
	return nil
}
