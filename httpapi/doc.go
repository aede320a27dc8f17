// Package httpapi implements the authflow backend collaborators over HTTP.
//
// [Client] satisfies [authflow.TokenEndpoint], [authflow.OTPEndpoint] and
// [authflow.FeatureGate]. Failed responses are returned as
// [*authflow.RequestError] with the raw body preserved so the flow's error
// classifier can extract the embedded error code.
//
// # What this package must NOT do
//
//   - Interpret backend error codes — classification belongs to authflow.
//   - Retry requests — recovery policy belongs to the flow.
package httpapi
