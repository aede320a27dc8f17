package authflow

import (
	"strconv"
	"strings"
)

// acrVersion2 drops the explicit isSignup/isLogin pair and appends an
// explicit version marker instead.
const acrVersion2 = 2

// ACRInput is the credential bundle and flow flags consumed by [BuildACR].
type ACRInput struct {
	IsOTP        bool
	IsSignup     bool
	IsThirdParty bool
	Version      int

	CountryCode string
	Mobile      string
	Email       string
	OTPID       string

	LoanApplicationID   string
	MerchantID          string
	EncryptedMerchantID string
	MerchantCustomerID  string
	LoginContext        string

	QType  string
	QValue string
}

// BuildACR assembles the authentication-context string sent as acr_values.
// The backend parses it positionally, so the entry order and the gating
// conditions below are part of the wire contract. Rebuilding the same input
// always yields an identical string; fields whose gate is false never
// appear, even when the input carries a value for them.
func BuildACR(in ACRInput) string {
	var b strings.Builder
	b.Grow(160)

	appendEntry(&b, "isOtp", strconv.FormatBool(in.IsOTP))

	if in.Version != acrVersion2 {
		appendEntry(&b, "isSignup", strconv.FormatBool(in.IsSignup))
		appendEntry(&b, "isLogin", strconv.FormatBool(!in.IsSignup))
	}

	appendEntry(&b, "isThirdParty", strconv.FormatBool(in.IsThirdParty))

	// The mobile and email gates are deliberately asymmetric: an OTP or
	// third-party login always identifies by mobile, a plain login by
	// email, and signup includes whichever of the two the bundle holds.
	includeMobile := ((in.IsOTP || in.IsThirdParty) && !in.IsSignup) ||
		(in.IsSignup && in.Mobile != "")
	if includeMobile && in.Mobile != "" {
		appendEntry(&b, "mobile", in.CountryCode+in.Mobile)
	}

	includeEmail := (!in.IsOTP && !in.IsThirdParty && !in.IsSignup) ||
		(in.IsSignup && in.Email != "")
	if includeEmail && in.Email != "" {
		appendEntry(&b, "email", in.Email)
	}

	if in.IsOTP && in.OTPID != "" {
		appendEntry(&b, "otpId", in.OTPID)
	}

	if in.LoanApplicationID != "" {
		appendEntry(&b, "loanApplicationId", in.LoanApplicationID)
	}
	if in.MerchantID != "" {
		appendEntry(&b, "merchantId", in.MerchantID)
	}
	if in.EncryptedMerchantID != "" {
		appendEntry(&b, "encryptedMerchantId", in.EncryptedMerchantID)
	}
	if in.MerchantCustomerID != "" {
		appendEntry(&b, "merchantCustomerId", in.MerchantCustomerID)
	}
	if in.LoginContext != "" {
		appendEntry(&b, "loginContext", in.LoginContext)
	}

	if in.Version == acrVersion2 {
		appendEntry(&b, "version", strconv.Itoa(in.Version))
	}

	if in.QType != "" && in.QValue != "" {
		appendEntry(&b, "qType", in.QType)
		appendEntry(&b, "qValue", in.QValue)
	}

	return b.String()
}

func appendEntry(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(key)
	b.WriteByte(':')
	b.WriteString(value)
}
