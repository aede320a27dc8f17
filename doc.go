// Package authflow implements the client side of a phone-number identity flow:
// a user submits a mobile number, confirms a one-time code, optionally supplies
// an email to complete registration, and ends with an issued access token.
//
// The package owns the step state machine, the Redis-backed pending-session
// record that survives full-page redirects, the positional ACR
// (Authentication Context Reference) string consumed by the token backend,
// backend error classification, and bounded retry with per-code circuit
// breaking. Flow methods are safe to call from multiple goroutines after
// initialization through [Builder.Build], though a flow models a single
// user's attempt and rejects re-entrant submits within a step.
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Flow], [Builder], [Config],
// and value types (ClassifiedError, PendingSession, TokenGrant, etc.).
// Event buffering lives under internal/track and is never exported directly.
// The backends are collaborators behind [TokenEndpoint], [OTPEndpoint], and
// [FeatureGate]; httpapi provides default HTTP implementations.
//
// # What this package must NOT do
//
//   - Render UI or decide message presentation beyond the inline/modal
//     surface hint on [ClassifiedError].
//   - Compose URLs or headers for the backends (collaborator concern).
//   - Let a raw transport error reach the caller unclassified.
package authflow
