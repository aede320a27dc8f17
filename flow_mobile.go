package authflow

import (
	"context"
	"regexp"
	"strings"
)

var mobilePattern = regexp.MustCompile(`^[5-9]\d{9}$`)

// normalizeMobile strips spaces and a leading country prefix so the
// pattern check sees the bare ten-digit subscriber number.
func normalizeMobile(raw, countryCode string) string {
	m := strings.TrimSpace(raw)
	m = strings.ReplaceAll(m, " ", "")
	m = strings.ReplaceAll(m, "-", "")
	if countryCode != "" {
		m = strings.TrimPrefix(m, countryCode)
	}
	m = strings.TrimPrefix(m, "0")
	return m
}

// SubmitMobile accepts the user's mobile number, triggers OTP delivery,
// and advances the flow to [StateAwaitingOTP]. The number is frozen once
// accepted: changing it requires abandoning the attempt and starting over.
//
// OTP triggering is debounced. Rapid repeated submissions within the quiet
// window collapse into a single upstream request; every caller observes
// that one request's outcome.
func (f *Flow) SubmitMobile(ctx context.Context, mobile string, whatsAppOptIn bool) (*StepResult, error) {
	if f == nil {
		return nil, ErrFlowNotReady
	}

	normalized := normalizeMobile(mobile, f.config.ACR.CountryCode)
	if !mobilePattern.MatchString(normalized) {
		return nil, newValidationError(CodeMobileMalformed, ErrInvalidMobile)
	}

	seq, _, err := f.beginStep(StateEnteringMobile)
	if err != nil {
		return nil, err
	}

	f.emitTrack(ctx, trackEventMobileSubmitted, StateEnteringMobile, true, nil, nil)

	challenge, derr := f.otpDebounce.Do(ctx, func(inner context.Context) (*OTPChallenge, error) {
		f.metricInc(MetricOTPRequested)
		ch, terr := f.triggerOTP(inner, OTPRequest{
			Mobile:     normalized,
			MerchantID: f.config.ACR.MerchantID,
		}, scopeOTPTrigger)
		if terr != nil {
			return nil, terr
		}
		return ch, nil
	})
	var cerr *ClassifiedError
	if derr != nil {
		cerr = Classify(derr)
	}

	if !f.applyStep(StateEnteringMobile, seq) {
		return nil, ErrInvalidState
	}
	defer f.mu.Unlock()

	if cerr != nil {
		f.metricInc(MetricOTPRequestFailure)
		f.emitTrack(ctx, trackEventOTPRequestFailed, StateEnteringMobile, false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
		return nil, cerr
	}

	f.bundle = CredentialBundle{
		Mobile: normalized,
	}
	f.whatsAppOptIn = whatsAppOptIn
	f.otpFailures = 0
	if challenge != nil {
		f.bundle.OTPID = challenge.OTPID
		f.bundle.MFAChallenge = challenge.ShowMFAChallenge
	}
	f.transitionLocked(StateAwaitingOTP)

	f.emitTrack(ctx, trackEventOTPRequested, StateAwaitingOTP, true, nil, nil)

	return &StepResult{State: StateAwaitingOTP}, nil
}

// ResendOTP re-triggers OTP delivery for the frozen mobile number. Only
// valid while awaiting verification. Resends share the same debounce
// window as the initial trigger.
func (f *Flow) ResendOTP(ctx context.Context) error {
	if f == nil {
		return ErrFlowNotReady
	}

	seq, bundle, err := f.beginStep(StateAwaitingOTP)
	if err != nil {
		return err
	}

	challenge, derr := f.otpDebounce.Do(ctx, func(inner context.Context) (*OTPChallenge, error) {
		f.metricInc(MetricOTPRequested)
		ch, terr := f.triggerOTP(inner, OTPRequest{
			Mobile:     bundle.Mobile,
			MerchantID: f.config.ACR.MerchantID,
		}, scopeOTPTrigger)
		if terr != nil {
			return nil, terr
		}
		return ch, nil
	})
	var cerr *ClassifiedError
	if derr != nil {
		cerr = Classify(derr)
	}

	if !f.applyStep(StateAwaitingOTP, seq) {
		return ErrInvalidState
	}
	defer f.mu.Unlock()

	if cerr != nil {
		f.metricInc(MetricOTPRequestFailure)
		f.emitTrack(ctx, trackEventOTPRequestFailed, StateAwaitingOTP, false, cerr, func() map[string]string {
			return map[string]string{"code": cerr.Code}
		})
		return cerr
	}

	// A resend supersedes the previous challenge.
	if challenge != nil {
		f.bundle.OTPID = challenge.OTPID
		f.bundle.MFAChallenge = challenge.ShowMFAChallenge
	}
	f.otpFailures = 0

	f.emitTrack(ctx, trackEventOTPRequested, StateAwaitingOTP, true, nil, nil)
	return nil
}

// Abandon discards the attempt and returns the flow to
// [StateEnteringMobile]. This is the only way to change an accepted
// mobile number. The pending record, if any, is removed.
func (f *Flow) Abandon(ctx context.Context) {
	if f == nil {
		return
	}

	if err := f.pending.Clear(ctx, f.scopeID); err != nil {
		f.warn("authflow: pending record clear failed on abandon")
	}

	f.mu.Lock()
	f.resetToMobileLocked()
	f.mu.Unlock()

	f.metricInc(MetricFlowAbandoned)
	f.emitTrack(ctx, trackEventFlowAbandoned, StateEnteringMobile, true, nil, nil)
}
