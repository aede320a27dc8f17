package authflow

import (
	"context"
	"io"
	"strconv"
	"time"

	internaltrack "github.com/paygate-labs/authflow/internal/track"
)

// FlowState represents the current step of an authentication attempt.
type FlowState uint8

const (
	// StateEnteringMobile is an exported constant or variable used by the flow engine.
	StateEnteringMobile FlowState = iota
	// StateAwaitingOTP is an exported constant or variable used by the flow engine.
	StateAwaitingOTP
	// StateCollectingEmail is an exported constant or variable used by the flow engine.
	StateCollectingEmail
	// StateTokenIssued is an exported constant or variable used by the flow engine.
	StateTokenIssued
)

// String describes the string operation and its observable behavior.
func (s FlowState) String() string {
	switch s {
	case StateEnteringMobile:
		return "entering_mobile"
	case StateAwaitingOTP:
		return "awaiting_otp"
	case StateCollectingEmail:
		return "collecting_email"
	case StateTokenIssued:
		return "token_issued"
	default:
		return "unknown"
	}
}

// Route identifies the UI route a flow is being resumed into. The email
// route is the fixed callback target of the third-party redirect bounce.
type Route uint8

const (
	// RouteMobile is an exported constant or variable used by the flow engine.
	RouteMobile Route = iota
	// RouteEmail is an exported constant or variable used by the flow engine.
	RouteEmail
)

// CredentialBundle is the mutable credential set held by a [Flow] for the
// duration of one attempt. The mobile number, once accepted, stays fixed
// until the attempt is abandoned or completes.
type CredentialBundle struct {
	Mobile       string
	Email        string
	OTPCode      string
	OTPID        string
	MFAChallenge bool
}

// PendingSession is the serialized snapshot persisted when the backend
// reports no account for the confirmed mobile number. It carries the
// attempt across the email step's full-page redirect.
type PendingSession struct {
	Credentials   CredentialBundle
	WhatsAppOptIn bool
	IssuedAt      int64
}

// TokenCredentials is the username/password pair sent to the token
// endpoint, derived from a [CredentialBundle] by deriveTokenCredentials.
type TokenCredentials struct {
	Username string
	Password string
}

// TokenRequest is the input to [TokenEndpoint.RequestToken].
type TokenRequest struct {
	Username  string
	Password  string
	ACRValues string
}

// TokenGrant is the successful result of a token request. ExpiresAt is
// derived from expires_in when present, else from the token claims.
type TokenGrant struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	ExpiresAt   time.Time
}

// OTPRequest is the input to [OTPEndpoint.TriggerOTP].
type OTPRequest struct {
	Mobile     string
	MerchantID string
}

// OTPChallenge is returned by a successful OTP trigger. ShowMFAChallenge
// signals that the account requires a supplemental short code alongside
// the OTP.
type OTPChallenge struct {
	OTPID            string
	ShowMFAChallenge bool
}

// TokenEndpoint is the token backend collaborator. Implementations return
// either a grant or an error; HTTP-level failures should be surfaced as
// [*RequestError] so the classifier can read the error body.
type TokenEndpoint interface {
	RequestToken(ctx context.Context, req TokenRequest) (*TokenGrant, error)
}

// OTPEndpoint triggers delivery of a one-time code to a mobile number.
type OTPEndpoint interface {
	TriggerOTP(ctx context.Context, req OTPRequest) (*OTPChallenge, error)
}

// FeatureGate is consulted once per flow to decide whether the third-party
// email-assist path is offered. Lookup failures are non-fatal and default
// to "not offered".
type FeatureGate interface {
	GetFeatureVersion(ctx context.Context, flagID, subjectID string) (int, error)
}

// RequestError is a non-2xx backend response carried to the classifier
// with its raw body intact.
type RequestError struct {
	StatusCode int
	Body       []byte
}

// Error describes the error operation and its observable behavior.
func (e *RequestError) Error() string {
	return "backend request failed: status " + strconv.Itoa(e.StatusCode)
}

// StepResult is returned by the submit operations. Token is non-nil only
// when State is [StateTokenIssued].
type StepResult struct {
	State FlowState
	Token *TokenGrant
}

// TrackEvent is a structured flow event emitted by the tracking dispatcher.
type TrackEvent = internaltrack.Event

// TrackSink receives [TrackEvent] values from the flow's dispatcher.
type TrackSink = internaltrack.Sink

// NoOpSink is a [TrackSink] that silently discards all events.
type NoOpSink = internaltrack.NoOpSink

// ChannelSink is a buffered channel-based [TrackSink].
type ChannelSink = internaltrack.ChannelSink

// JSONWriterSink is a [TrackSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internaltrack.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internaltrack.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internaltrack.NewJSONWriterSink(w)
}
