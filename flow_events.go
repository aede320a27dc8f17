package authflow

import (
	"context"
	"time"
)

const (
	trackEventMobileSubmitted  = "mobile_submitted"
	trackEventOTPRequested     = "otp_requested"
	trackEventOTPRequestFailed = "otp_request_failed"
	trackEventOTPVerified      = "otp_verified"
	trackEventOTPRejected      = "otp_rejected"
	trackEventSignupRequired   = "signup_required"
	trackEventSignupCompleted  = "signup_completed"
	trackEventLoginCompleted   = "login_completed"
	trackEventEmailConflict    = "email_conflict"
	trackEventSessionPersisted = "session_persisted"
	trackEventSessionResumed   = "session_resumed"
	trackEventSessionStale     = "session_stale"
	trackEventFlowAbandoned    = "flow_abandoned"
	trackEventRetryScheduled   = "retry_scheduled"
	trackEventRetryExhausted   = "retry_exhausted"
	trackEventCircuitOpen      = "circuit_open"
	trackEventAssistOffered    = "assist_offered"
)

// emitTrack forwards one event to the tracking dispatcher. The metadata
// closure is only invoked when tracking is enabled, so call sites can build
// maps lazily.
func (f *Flow) emitTrack(
	ctx context.Context,
	eventType string,
	state FlowState,
	success bool,
	cause error,
	metadata func() map[string]string,
) {
	if f == nil || f.track == nil {
		return
	}

	event := TrackEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		FlowID:    f.scopeID,
		State:     state.String(),
		DeviceID:  deviceIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	f.track.Emit(ctx, event)
}
