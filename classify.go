package authflow

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrorCategory groups backend error codes by the handling they require.
type ErrorCategory uint8

const (
	// CategoryAuthentication is an exported constant or variable used by the flow engine.
	CategoryAuthentication ErrorCategory = iota
	// CategoryValidation is an exported constant or variable used by the flow engine.
	CategoryValidation
	// CategoryNetwork is an exported constant or variable used by the flow engine.
	CategoryNetwork
	// CategoryThirdParty is an exported constant or variable used by the flow engine.
	CategoryThirdParty
	// CategorySystem is an exported constant or variable used by the flow engine.
	CategorySystem
	// CategoryRateLimit is an exported constant or variable used by the flow engine.
	CategoryRateLimit
	// CategorySecurity is an exported constant or variable used by the flow engine.
	CategorySecurity
)

// String describes the string operation and its observable behavior.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryAuthentication:
		return "authentication"
	case CategoryValidation:
		return "validation"
	case CategoryNetwork:
		return "network"
	case CategoryThirdParty:
		return "third_party"
	case CategorySystem:
		return "system"
	case CategoryRateLimit:
		return "rate_limit"
	case CategorySecurity:
		return "security"
	default:
		return "unknown"
	}
}

// ErrorSurface hints where the UI should render a classified error.
type ErrorSurface uint8

const (
	// SurfaceInline is an exported constant or variable used by the flow engine.
	SurfaceInline ErrorSurface = iota
	// SurfaceModal is an exported constant or variable used by the flow engine.
	SurfaceModal
)

// codeNamespacePrefix is the 5-character prefix every backend error code in
// the domain namespace carries. Codes without it classify as generic System.
const codeNamespacePrefix = "AUTH-"

// Backend error codes. The thousands digit encodes the category: 1xxx
// Authentication, 2xxx Validation, 3xxx Network, 4xxx ThirdParty, 5xxx
// System, 6xxx RateLimit, 7xxx Security.
const (
	// CodeInvalidCredentials is an exported constant or variable used by the flow engine.
	CodeInvalidCredentials = "AUTH-1001"
	// CodeOTPIncorrect is an exported constant or variable used by the flow engine.
	CodeOTPIncorrect = "AUTH-1002"
	// CodeOTPExpired is an exported constant or variable used by the flow engine.
	CodeOTPExpired = "AUTH-1003"
	// CodeSessionExpired is an exported constant or variable used by the flow engine.
	CodeSessionExpired = "AUTH-1004"
	// CodeAccountNotFound is an exported constant or variable used by the flow engine.
	CodeAccountNotFound = "AUTH-1005"
	// CodeEmailInUse is an exported constant or variable used by the flow engine.
	CodeEmailInUse = "AUTH-1006"
	// CodeMFAChallengeMismatch is an exported constant or variable used by the flow engine.
	CodeMFAChallengeMismatch = "AUTH-1007"
	// CodeOTPReplayed is an exported constant or variable used by the flow engine.
	CodeOTPReplayed = "AUTH-1008"

	// CodeMobileMalformed is an exported constant or variable used by the flow engine.
	CodeMobileMalformed = "AUTH-2001"
	// CodeEmailMalformed is an exported constant or variable used by the flow engine.
	CodeEmailMalformed = "AUTH-2002"
	// CodeOTPMalformed is an exported constant or variable used by the flow engine.
	CodeOTPMalformed = "AUTH-2003"
	// CodeConsentMissing is an exported constant or variable used by the flow engine.
	CodeConsentMissing = "AUTH-2004"

	// CodeUpstreamTimeout is an exported constant or variable used by the flow engine.
	CodeUpstreamTimeout = "AUTH-3001"
	// CodeConnectionReset is an exported constant or variable used by the flow engine.
	CodeConnectionReset = "AUTH-3002"

	// CodeProviderUnavailable is an exported constant or variable used by the flow engine.
	CodeProviderUnavailable = "AUTH-4001"
	// CodeProviderRejected is an exported constant or variable used by the flow engine.
	CodeProviderRejected = "AUTH-4002"

	// CodeInternalError is an exported constant or variable used by the flow engine.
	CodeInternalError = "AUTH-5001"
	// CodeServiceUnavailable is an exported constant or variable used by the flow engine.
	CodeServiceUnavailable = "AUTH-5002"

	// CodeTooManyRequests is an exported constant or variable used by the flow engine.
	CodeTooManyRequests = "AUTH-6001"

	// CodeSignatureInvalid is an exported constant or variable used by the flow engine.
	CodeSignatureInvalid = "AUTH-7001"
	// CodeTokenBindingViolation is an exported constant or variable used by the flow engine.
	CodeTokenBindingViolation = "AUTH-7002"

	// codeGenericSystem is the fall-through for codes outside the namespace
	// and unparseable bodies.
	codeGenericSystem = "AUTH-5001"
	// codeGenericNetwork is the fall-through for transport-level failures
	// that never produced a response body.
	codeGenericNetwork = "AUTH-3001"
)

// ClassifiedError is the single error shape the flow hands to callers for
// backend failures. It is derived per failure and never persisted.
type ClassifiedError struct {
	Code        string
	Category    ErrorCategory
	Retryable   bool
	Surface     ErrorSurface
	UserMessage string

	cause error
}

// Error describes the error operation and its observable behavior.
func (e *ClassifiedError) Error() string {
	return e.Code + " (" + e.Category.String() + "): " + e.UserMessage
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

type catalogEntry struct {
	category  ErrorCategory
	surface   ErrorSurface
	message   string
	retryable *bool // nil = category default
}

var (
	retryableTrue  = true
	retryableFalse = false
)

// errorCatalog is the authoritative code→classification table. Every code
// in the namespace must have an entry; unknown codes degrade to the generic
// System entry.
var errorCatalog = map[string]catalogEntry{
	CodeInvalidCredentials:   {category: CategoryAuthentication, surface: SurfaceInline, message: "The details you entered are incorrect. Please try again."},
	CodeOTPIncorrect:         {category: CategoryAuthentication, surface: SurfaceInline, message: "That code doesn't match. Please check and re-enter it."},
	CodeOTPExpired:           {category: CategoryAuthentication, surface: SurfaceInline, message: "Your code has expired. Request a new one to continue."},
	CodeSessionExpired:       {category: CategoryAuthentication, surface: SurfaceModal, message: "Your session has expired. Please start again with your mobile number."},
	CodeAccountNotFound:      {category: CategoryAuthentication, surface: SurfaceInline, message: "We couldn't find an account for this number."},
	CodeEmailInUse:           {category: CategoryAuthentication, surface: SurfaceModal, message: "This email is already linked to another account."},
	CodeMFAChallengeMismatch: {category: CategoryAuthentication, surface: SurfaceInline, message: "The verification details don't match our records."},
	CodeOTPReplayed:          {category: CategoryAuthentication, surface: SurfaceModal, message: "This code was already used. Please start again."},

	CodeMobileMalformed: {category: CategoryValidation, surface: SurfaceInline, message: "Enter a valid 10-digit mobile number."},
	CodeEmailMalformed:  {category: CategoryValidation, surface: SurfaceInline, message: "Enter a valid email address."},
	CodeOTPMalformed:    {category: CategoryValidation, surface: SurfaceInline, message: "Enter the 6-digit code we sent you."},
	CodeConsentMissing:  {category: CategoryValidation, surface: SurfaceInline, message: "Please accept the terms to continue."},

	CodeUpstreamTimeout: {category: CategoryNetwork, surface: SurfaceInline, message: "We're having trouble connecting. Please try again."},
	CodeConnectionReset: {category: CategoryNetwork, surface: SurfaceInline, message: "The connection was interrupted. Please try again."},

	CodeProviderUnavailable: {category: CategoryThirdParty, surface: SurfaceInline, message: "Our verification partner is unavailable right now."},
	CodeProviderRejected:    {category: CategoryThirdParty, surface: SurfaceInline, message: "Verification could not be completed. Please try again.", retryable: &retryableFalse},

	CodeInternalError:      {category: CategorySystem, surface: SurfaceInline, message: "Something went wrong on our side. Please try again."},
	CodeServiceUnavailable: {category: CategorySystem, surface: SurfaceInline, message: "The service is temporarily unavailable."},

	CodeTooManyRequests: {category: CategoryRateLimit, surface: SurfaceInline, message: "Too many attempts. Please wait a moment and try again."},

	CodeSignatureInvalid:      {category: CategorySecurity, surface: SurfaceModal, message: "We couldn't verify this request. Please start again."},
	CodeTokenBindingViolation: {category: CategorySecurity, surface: SurfaceModal, message: "We couldn't verify this request. Please start again."},
}

func categoryDefaultRetryable(c ErrorCategory) bool {
	switch c {
	case CategoryNetwork, CategoryRateLimit, CategorySystem, CategoryThirdParty:
		return true
	default:
		return false
	}
}

type backendErrorBody struct {
	ErrorDescription string `json:"error_description"`
	Message          string `json:"Message"`
	ErrorField       string `json:"error"`
}

// Classify normalizes any failure into a [*ClassifiedError]. It is total:
// malformed bodies, missing fields, and codes outside the AUTH- namespace
// all yield a classified result, never a panic or a nil.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		// Transport-level failure with no backend body.
		return classifyCode(codeGenericNetwork, err)
	}

	code, ok := extractCode(reqErr.Body)
	if !ok {
		return classifyCode(codeGenericSystem, err)
	}
	return classifyCode(code, err)
}

// newValidationError classifies a locally detected input problem so
// callers see the same error shape for client-side and backend rejections.
func newValidationError(code string, cause error) *ClassifiedError {
	return classifyCode(code, cause)
}

func classifyCode(code string, cause error) *ClassifiedError {
	entry, ok := errorCatalog[code]
	if !ok {
		code = codeGenericSystem
		entry = errorCatalog[codeGenericSystem]
	}

	retryable := categoryDefaultRetryable(entry.category)
	if entry.retryable != nil {
		retryable = *entry.retryable
	}

	return &ClassifiedError{
		Code:        code,
		Category:    entry.category,
		Retryable:   retryable,
		Surface:     entry.surface,
		UserMessage: entry.message,
		cause:       cause,
	}
}

// extractCode pulls the error code out of a raw backend body. The primary
// path reads error_description (falling back to Message); third-party
// errors arrive under an "error" field instead but follow the identical
// delimiter and prefix rules.
func extractCode(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}

	var parsed backendErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}

	raw := parsed.ErrorDescription
	if raw == "" {
		raw = parsed.Message
	}
	if raw == "" {
		raw = parsed.ErrorField
	}
	if raw == "" {
		return "", false
	}

	code := raw
	if idx := strings.IndexByte(raw, '|'); idx >= 0 {
		code = raw[:idx]
	}
	code = strings.TrimSpace(code)

	if len(code) < len(codeNamespacePrefix) || code[:len(codeNamespacePrefix)] != codeNamespacePrefix {
		return "", false
	}
	return code, true
}
