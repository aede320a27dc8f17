package authflow

import (
	"errors"
	"testing"
)

func TestClassifyKnownCode(t *testing.T) {
	err := backendError(401, "AUTH-1002|the otp did not match")
	cerr := Classify(err)

	if cerr.Code != CodeOTPIncorrect {
		t.Fatalf("Code = %q", cerr.Code)
	}
	if cerr.Category != CategoryAuthentication {
		t.Fatalf("Category = %v", cerr.Category)
	}
	if cerr.Retryable {
		t.Fatal("authentication errors must not be retryable")
	}
	if cerr.UserMessage == "" {
		t.Fatal("empty user message")
	}
	if !errors.As(error(cerr), new(*RequestError)) {
		t.Fatal("cause chain lost")
	}
}

func TestClassifyThirdPartyErrorField(t *testing.T) {
	// Third-party errors arrive under "error" instead of error_description.
	err := &RequestError{StatusCode: 502, Body: []byte(`{"error":"AUTH-4001|provider down"}`)}
	cerr := Classify(err)

	if cerr.Code != CodeProviderUnavailable {
		t.Fatalf("Code = %q", cerr.Code)
	}
	if !cerr.Retryable {
		t.Fatal("provider-unavailable should be retryable")
	}
}

func TestClassifyProviderRejectedOverride(t *testing.T) {
	cerr := Classify(backendError(502, "AUTH-4002|rejected"))
	if cerr.Category != CategoryThirdParty {
		t.Fatalf("Category = %v", cerr.Category)
	}
	if cerr.Retryable {
		t.Fatal("AUTH-4002 overrides the category default to non-retryable")
	}
}

func TestClassifyMessageFieldFallback(t *testing.T) {
	err := &RequestError{StatusCode: 500, Body: []byte(`{"Message":"AUTH-5002|down"}`)}
	if got := Classify(err).Code; got != CodeServiceUnavailable {
		t.Fatalf("Code = %q", got)
	}
}

func TestClassifyDegradesGracefully(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transport error", errors.New("dial tcp: connection refused"), codeGenericNetwork},
		{"empty body", &RequestError{StatusCode: 500}, codeGenericSystem},
		{"not json", &RequestError{StatusCode: 500, Body: []byte("<html>oops</html>")}, codeGenericSystem},
		{"no known fields", &RequestError{StatusCode: 500, Body: []byte(`{"detail":"x"}`)}, codeGenericSystem},
		{"wrong prefix", backendError(500, "OOPS-1234|nope"), codeGenericSystem},
		{"short code", backendError(500, "AU"), codeGenericSystem},
		{"unknown code in namespace", backendError(500, "AUTH-9999|future"), codeGenericSystem},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cerr := Classify(tc.err)
			if cerr == nil {
				t.Fatal("Classify returned nil")
			}
			if cerr.Code != tc.want {
				t.Fatalf("Code = %q, want %q", cerr.Code, tc.want)
			}
			if cerr.UserMessage == "" {
				t.Fatal("empty user message")
			}
		})
	}
}

func TestClassifyTrimsAndSplits(t *testing.T) {
	cerr := Classify(backendError(401, "  AUTH-1004  |session gone|extra"))
	if cerr.Code != CodeSessionExpired {
		t.Fatalf("Code = %q", cerr.Code)
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	original := newValidationError(CodeMobileMalformed, ErrInvalidMobile)
	if got := Classify(original); got != original {
		t.Fatal("already-classified errors must pass through unchanged")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) must return nil")
	}
}

func TestCategoryDefaultRetryable(t *testing.T) {
	retryable := []ErrorCategory{CategoryNetwork, CategoryRateLimit, CategorySystem, CategoryThirdParty}
	for _, c := range retryable {
		if !categoryDefaultRetryable(c) {
			t.Fatalf("%v should default retryable", c)
		}
	}
	terminal := []ErrorCategory{CategoryAuthentication, CategoryValidation, CategorySecurity}
	for _, c := range terminal {
		if categoryDefaultRetryable(c) {
			t.Fatalf("%v should default non-retryable", c)
		}
	}
}

func TestErrorCatalogComplete(t *testing.T) {
	codes := []string{
		CodeInvalidCredentials, CodeOTPIncorrect, CodeOTPExpired, CodeSessionExpired,
		CodeAccountNotFound, CodeEmailInUse, CodeMFAChallengeMismatch, CodeOTPReplayed,
		CodeMobileMalformed, CodeEmailMalformed, CodeOTPMalformed, CodeConsentMissing,
		CodeUpstreamTimeout, CodeConnectionReset,
		CodeProviderUnavailable, CodeProviderRejected,
		CodeInternalError, CodeServiceUnavailable,
		CodeTooManyRequests,
		CodeSignatureInvalid, CodeTokenBindingViolation,
	}
	for _, code := range codes {
		entry, ok := errorCatalog[code]
		if !ok {
			t.Fatalf("catalog missing %s", code)
		}
		if entry.message == "" {
			t.Fatalf("catalog entry %s has no message", code)
		}
	}
}
