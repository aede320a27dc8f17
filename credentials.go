package authflow

// tokenMode selects which credential pair a token call presents.
type tokenMode uint8

const (
	modeOTPLogin tokenMode = iota
	modeSignup
)

// deriveTokenCredentials is the single transformation applied before every
// token call. Both call sites (OTP login and email signup) go through it so
// the clearing rule cannot silently diverge: in signup mode the email never
// rides in the credential pair — it travels only inside the ACR string —
// and the pair stays the confirmed mobile number plus OTP code that the
// backend already validated in the previous step.
func deriveTokenCredentials(bundle CredentialBundle, mode tokenMode) TokenCredentials {
	creds := TokenCredentials{
		Username: bundle.Mobile,
		Password: bundle.OTPCode,
	}
	if mode == modeSignup {
		// Explicitly nothing extra: the email from the bundle is dropped
		// here, not at the call site.
		return creds
	}
	return creds
}
