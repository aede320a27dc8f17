package authflow

import "errors"

var (
	// ErrFlowNotReady is an exported constant or variable used by the flow engine.
	ErrFlowNotReady = errors.New("flow not initialized")
	// ErrInvalidState is an exported constant or variable used by the flow engine.
	ErrInvalidState = errors.New("operation not valid in current flow state")
	// ErrInvalidMobile is an exported constant or variable used by the flow engine.
	ErrInvalidMobile = errors.New("invalid mobile number")
	// ErrMobileImmutable is an exported constant or variable used by the flow engine.
	ErrMobileImmutable = errors.New("mobile number already accepted for this attempt")
	// ErrInvalidOTP is an exported constant or variable used by the flow engine.
	ErrInvalidOTP = errors.New("invalid otp code format")
	// ErrMFACodeRequired is an exported constant or variable used by the flow engine.
	ErrMFACodeRequired = errors.New("mfa supplemental code required")
	// ErrInvalidMFACode is an exported constant or variable used by the flow engine.
	ErrInvalidMFACode = errors.New("invalid mfa supplemental code format")
	// ErrInvalidEmail is an exported constant or variable used by the flow engine.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrConsentRequired is an exported constant or variable used by the flow engine.
	ErrConsentRequired = errors.New("explicit consent required")
	// ErrSubmitInFlight is an exported constant or variable used by the flow engine.
	ErrSubmitInFlight = errors.New("submit already in flight for this step")
	// ErrPendingSessionMissing is an exported constant or variable used by the flow engine.
	ErrPendingSessionMissing = errors.New("pending session record missing or stale")
	// ErrAssistNotOffered is an exported constant or variable used by the flow engine.
	ErrAssistNotOffered = errors.New("assisted email path not offered")
	// ErrMaxRetriesExceeded is an exported constant or variable used by the flow engine.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrCircuitOpen is an exported constant or variable used by the flow engine.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNotRecoverable is an exported constant or variable used by the flow engine.
	ErrNotRecoverable = errors.New("error not recoverable")
	// ErrStoreUnavailable is an exported constant or variable used by the flow engine.
	ErrStoreUnavailable = errors.New("pending store unavailable")
)
