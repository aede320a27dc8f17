package internaldefs

import (
	authflow "github.com/paygate-labs/authflow"
)

// CounterDef defines a public type used by authflow APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authflow APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the flow engine.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricOTPRequested, Name: "authflow_otp_requested_total", Help: "OTP delivery triggers."},
	{ID: authflow.MetricOTPRequestFailure, Name: "authflow_otp_request_failure_total", Help: "Failed OTP delivery triggers."},
	{ID: authflow.MetricOTPVerifySuccess, Name: "authflow_otp_verify_success_total", Help: "Successful OTP verifications."},
	{ID: authflow.MetricOTPVerifyFailure, Name: "authflow_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Completed logins for existing accounts."},
	{ID: authflow.MetricSignupRequired, Name: "authflow_signup_required_total", Help: "Flows diverted to signup after account-not-found."},
	{ID: authflow.MetricSignupSuccess, Name: "authflow_signup_success_total", Help: "Completed signups."},
	{ID: authflow.MetricEmailConflict, Name: "authflow_email_conflict_total", Help: "Signup attempts rejected for an email already in use."},
	{ID: authflow.MetricSessionPersisted, Name: "authflow_session_persisted_total", Help: "Pending session records written."},
	{ID: authflow.MetricSessionResumed, Name: "authflow_session_resumed_total", Help: "Flows resumed from a fresh pending record."},
	{ID: authflow.MetricSessionStale, Name: "authflow_session_stale_total", Help: "Resume attempts that found no fresh pending record."},
	{ID: authflow.MetricRetryAttempt, Name: "authflow_retry_attempt_total", Help: "Recovery retries scheduled."},
	{ID: authflow.MetricRetryExhausted, Name: "authflow_retry_exhausted_total", Help: "Operations that spent their retry budget."},
	{ID: authflow.MetricCircuitOpen, Name: "authflow_circuit_open_total", Help: "Operations rejected by an open circuit breaker."},
	{ID: authflow.MetricAssistOffered, Name: "authflow_assist_offered_total", Help: "Assisted email capture redirects offered."},
	{ID: authflow.MetricFlowAbandoned, Name: "authflow_flow_abandoned_total", Help: "Attempts abandoned before token issuance."},
}

// HistogramDefs is an exported constant or variable used by the flow engine.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricTokenLatency, Name: "authflow_token_latency_seconds", Help: "Token request latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the flow engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the flow engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
