package authflow

import (
	"context"
)

// degradedOTPMessage replaces the per-code message once the cosmetic
// failure limit is exceeded, nudging the user toward a resend instead of
// another blind retry.
const degradedOTPMessage = "We're unable to verify this code. Request a new code and try again."

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// SubmitOTP verifies the delivered code against the token endpoint. When
// the flow carries an MFA challenge, mfaCode must hold the supplemental
// answer; it travels in the ACR qType/qValue pair, never as a credential.
//
// Outcomes:
//   - token issued: existing account, flow reaches [StateTokenIssued].
//   - account not found: credentials are persisted to the pending store
//     and the flow advances to [StateCollectingEmail].
//   - incorrect code: the flow stays in [StateAwaitingOTP]; after the
//     cosmetic failure limit the user message degrades to a generic one.
//   - any other error: the flow stays in [StateAwaitingOTP] with the
//     classified error; a dead or replayed session is cured by a resend.
func (f *Flow) SubmitOTP(ctx context.Context, otpCode, mfaCode string) (*StepResult, error) {
	if f == nil {
		return nil, ErrFlowNotReady
	}

	if len(otpCode) != f.config.OTP.CodeDigits || !allDigits(otpCode) {
		return nil, newValidationError(CodeOTPMalformed, ErrInvalidOTP)
	}

	seq, bundle, err := f.beginStep(StateAwaitingOTP)
	if err != nil {
		return nil, err
	}

	if bundle.MFAChallenge {
		if mfaCode == "" {
			f.releaseStep(StateAwaitingOTP)
			return nil, newValidationError(CodeMFAChallengeMismatch, ErrMFACodeRequired)
		}
		if len(mfaCode) != f.config.OTP.MFACodeDigits || !allDigits(mfaCode) {
			f.releaseStep(StateAwaitingOTP)
			return nil, newValidationError(CodeMFAChallengeMismatch, ErrInvalidMFACode)
		}
	}

	bundle.OTPCode = otpCode

	creds := deriveTokenCredentials(bundle, modeOTPLogin)
	req := TokenRequest{
		Username:  creds.Username,
		Password:  creds.Password,
		ACRValues: BuildACR(f.acrInput(bundle, false, mfaCode)),
	}

	grant, cerr := f.requestToken(ctx, req, scopeTokenLogin)

	if !f.applyStep(StateAwaitingOTP, seq) {
		return nil, ErrInvalidState
	}
	defer f.mu.Unlock()

	if cerr == nil {
		f.bundle = bundle
		f.metricInc(MetricOTPVerifySuccess)
		f.metricInc(MetricLoginSuccess)
		f.emitTrack(ctx, trackEventOTPVerified, StateAwaitingOTP, true, nil, nil)
		result := f.completeTokenIssued(ctx, grant, false)
		f.emitTrack(ctx, trackEventLoginCompleted, StateTokenIssued, true, nil, nil)
		return result, nil
	}

	switch cerr.Code {
	case CodeAccountNotFound:
		return f.beginSignupLocked(ctx, bundle)

	case CodeOTPIncorrect, CodeMFAChallengeMismatch:
		f.otpFailures++
		f.metricInc(MetricOTPVerifyFailure)
		f.emitTrack(ctx, trackEventOTPRejected, StateAwaitingOTP, false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
		if f.otpFailures > f.config.OTP.CosmeticFailureLimit {
			degraded := *cerr
			degraded.UserMessage = degradedOTPMessage
			return nil, &degraded
		}
		return nil, cerr

	default:
		// Session-expired, replay, and expired codes stay here too: the
		// frozen mobile number is still good and a resend mints a fresh
		// challenge. Only the email step tears the attempt down.
		f.metricInc(MetricOTPVerifyFailure)
		f.emitTrack(ctx, trackEventOTPRejected, StateAwaitingOTP, false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
		return nil, cerr
	}
}

// beginSignupLocked persists the verified credentials to the pending store
// and advances to email collection. Called with the flow lock held.
func (f *Flow) beginSignupLocked(ctx context.Context, bundle CredentialBundle) (*StepResult, error) {
	record := &PendingSession{
		Credentials:   bundle,
		WhatsAppOptIn: f.whatsAppOptIn,
	}
	if err := f.pending.Save(ctx, f.scopeID, record, false); err != nil {
		// Without the pending record the email step cannot survive the
		// redirect. Surface the store failure instead of advancing.
		return nil, newValidationError(codeGenericSystem, ErrStoreUnavailable)
	}

	f.bundle = bundle
	f.transitionLocked(StateCollectingEmail)

	f.metricInc(MetricSignupRequired)
	f.metricInc(MetricSessionPersisted)
	f.emitTrack(ctx, trackEventSignupRequired, StateCollectingEmail, true, nil, nil)
	f.emitTrack(ctx, trackEventSessionPersisted, StateCollectingEmail, true, nil, nil)

	return &StepResult{State: StateCollectingEmail}, nil
}
