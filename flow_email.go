package authflow

import (
	"context"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SubmitEmail completes signup with the user's email address. Consent to
// the terms is mandatory. The stored OTP credentials from the pending
// record are replayed together with the email in the ACR string; the
// email never becomes the token username.
//
// Outcomes:
//   - token issued: account created, flow reaches [StateTokenIssued] and
//     the pending record plus terminal markers are written.
//   - email in use: the flow stays in [StateCollectingEmail] with the
//     entered email discarded; the pending record remains valid.
//   - session expired or code replayed: the stored credentials are dead,
//     the record is dropped and the flow resets to [StateEnteringMobile].
func (f *Flow) SubmitEmail(ctx context.Context, email string, consent bool) (*StepResult, error) {
	if f == nil {
		return nil, ErrFlowNotReady
	}

	if !consent {
		return nil, newValidationError(CodeConsentMissing, ErrConsentRequired)
	}
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return nil, newValidationError(CodeEmailMalformed, ErrInvalidEmail)
	}

	seq, bundle, err := f.beginStep(StateCollectingEmail)
	if err != nil {
		return nil, err
	}

	bundle.Email = email

	creds := deriveTokenCredentials(bundle, modeSignup)
	req := TokenRequest{
		Username:  creds.Username,
		Password:  creds.Password,
		ACRValues: BuildACR(f.acrInput(bundle, true, "")),
	}

	grant, cerr := f.requestToken(ctx, req, scopeTokenSignup)

	if !f.applyStep(StateCollectingEmail, seq) {
		return nil, ErrInvalidState
	}
	defer f.mu.Unlock()

	if cerr == nil {
		f.bundle = bundle
		f.metricInc(MetricSignupSuccess)
		result := f.completeTokenIssued(ctx, grant, true)
		f.emitTrack(ctx, trackEventSignupCompleted, StateTokenIssued, true, nil, nil)
		return result, nil
	}

	switch cerr.Code {
	case CodeEmailInUse:
		// The record keeps the verified OTP credentials; only the email
		// is discarded so the user can enter a different one.
		f.metricInc(MetricEmailConflict)
		f.emitTrack(ctx, trackEventEmailConflict, StateCollectingEmail, false, cerr, nil)
		return nil, cerr

	case CodeSessionExpired, CodeOTPReplayed, CodeOTPExpired:
		if clearErr := f.pending.Clear(ctx, f.scopeID); clearErr != nil {
			f.warn("authflow: pending record clear failed after dead session")
		}
		f.resetToMobileLocked()
		f.emitTrack(ctx, trackEventSessionStale, StateEnteringMobile, false, cerr, nil)
		return nil, cerr

	default:
		return nil, cerr
	}
}

// AbandonEmail handles the user backing out of the email step. It only
// acts when the caller confirms; an unconfirmed call is a no-op so the UI
// can show its own confirmation prompt first.
func (f *Flow) AbandonEmail(ctx context.Context, confirmed bool) error {
	if f == nil {
		return ErrFlowNotReady
	}
	if !confirmed {
		return nil
	}

	f.mu.Lock()
	if f.state != StateCollectingEmail {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.resetToMobileLocked()
	f.mu.Unlock()

	if err := f.pending.Clear(ctx, f.scopeID); err != nil {
		f.warn("authflow: pending record clear failed on email abandon")
	}

	f.metricInc(MetricFlowAbandoned)
	f.emitTrack(ctx, trackEventFlowAbandoned, StateEnteringMobile, true, nil, nil)
	return nil
}

// BeginAssistedEmail checks whether the assisted email capture surface is
// available for this flow and, if so, returns its redirect URL. The
// feature-gate lookup runs once per flow; gate failures silently disable
// the surface, they never block the manual email path.
//
// The pending record is re-saved with its original timestamp preserved so
// the redirect hop does not extend the freshness window.
func (f *Flow) BeginAssistedEmail(ctx context.Context) (string, error) {
	if f == nil {
		return "", ErrFlowNotReady
	}

	f.mu.Lock()
	if f.state != StateCollectingEmail {
		f.mu.Unlock()
		return "", ErrInvalidState
	}
	checked := f.assistChecked
	offered := f.assistOffered
	f.mu.Unlock()

	if !checked {
		offered = f.checkAssistGate(ctx)
		f.mu.Lock()
		f.assistChecked = true
		f.assistOffered = offered
		f.mu.Unlock()
	}

	if !offered {
		return "", ErrAssistNotOffered
	}

	record, err := f.pending.Load(ctx, f.scopeID)
	if err != nil {
		return "", ErrPendingSessionMissing
	}
	if serr := f.pending.Save(ctx, f.scopeID, record, true); serr != nil {
		f.warn("authflow: pending record refresh failed before assisted redirect")
	}

	f.metricInc(MetricAssistOffered)
	f.emitTrack(ctx, trackEventAssistOffered, StateCollectingEmail, true, nil, nil)

	return f.config.Assist.RedirectURL, nil
}

func (f *Flow) checkAssistGate(ctx context.Context) bool {
	if !f.config.Assist.Enabled || f.featureGate == nil {
		return false
	}

	version, err := f.featureGate.GetFeatureVersion(ctx, f.config.Assist.FlagID, f.scopeID)
	if err != nil {
		f.warn("authflow: assist feature gate lookup failed")
		return false
	}
	return version >= f.config.Assist.MinVersion
}
