package authflow

import (
	"strings"
	"testing"
)

func TestBuildACROTPLogin(t *testing.T) {
	got := BuildACR(ACRInput{
		IsOTP:       true,
		Version:     1,
		CountryCode: "+91",
		Mobile:      "9876543210",
		OTPID:       "otp-77",
	})
	want := "isOtp:true isSignup:false isLogin:true isThirdParty:false mobile:+919876543210 otpId:otp-77"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestBuildACRSignupCarriesBoth(t *testing.T) {
	got := BuildACR(ACRInput{
		IsOTP:       true,
		IsSignup:    true,
		Version:     1,
		CountryCode: "+91",
		Mobile:      "9876543210",
		Email:       "a@b.co",
		OTPID:       "otp-77",
	})
	for _, want := range []string{"isSignup:true", "isLogin:false", "mobile:+919876543210", "email:a@b.co", "otpId:otp-77"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	// Mobile must precede email, email precede otpId.
	if strings.Index(got, "mobile:") > strings.Index(got, "email:") {
		t.Fatalf("mobile after email: %q", got)
	}
	if strings.Index(got, "email:") > strings.Index(got, "otpId:") {
		t.Fatalf("email after otpId: %q", got)
	}
}

func TestBuildACRPlainLoginUsesEmail(t *testing.T) {
	got := BuildACR(ACRInput{
		Version:     1,
		CountryCode: "+91",
		Mobile:      "9876543210",
		Email:       "a@b.co",
	})
	if strings.Contains(got, "mobile:") {
		t.Fatalf("plain login must not carry mobile: %q", got)
	}
	if !strings.Contains(got, "email:a@b.co") {
		t.Fatalf("plain login must carry email: %q", got)
	}
}

func TestBuildACRVersion2(t *testing.T) {
	got := BuildACR(ACRInput{
		IsOTP:       true,
		Version:     2,
		CountryCode: "+91",
		Mobile:      "9876543210",
	})
	if strings.Contains(got, "isSignup:") || strings.Contains(got, "isLogin:") {
		t.Fatalf("version 2 must omit the signup/login pair: %q", got)
	}
	if !strings.Contains(got, "version:2") {
		t.Fatalf("version 2 must carry the version marker: %q", got)
	}
	if !strings.HasSuffix(got, "version:2") {
		t.Fatalf("version marker must come after context fields: %q", got)
	}
}

func TestBuildACRQPairGating(t *testing.T) {
	base := ACRInput{IsOTP: true, Version: 1, CountryCode: "+91", Mobile: "9876543210"}

	half := base
	half.QType = "pan4"
	if got := BuildACR(half); strings.Contains(got, "qType:") {
		t.Fatalf("qType without qValue must be omitted: %q", got)
	}

	full := base
	full.QType = "pan4"
	full.QValue = "4321"
	got := BuildACR(full)
	if !strings.HasSuffix(got, "qType:pan4 qValue:4321") {
		t.Fatalf("q pair must terminate the string: %q", got)
	}
}

func TestBuildACRContextFields(t *testing.T) {
	got := BuildACR(ACRInput{
		IsOTP:               true,
		Version:             1,
		CountryCode:         "+91",
		Mobile:              "9876543210",
		LoanApplicationID:   "loan-1",
		MerchantID:          "m-1",
		EncryptedMerchantID: "em-1",
		MerchantCustomerID:  "mc-1",
		LoginContext:        "checkout",
	})
	want := []string{"loanApplicationId:loan-1", "merchantId:m-1", "encryptedMerchantId:em-1", "merchantCustomerId:mc-1", "loginContext:checkout"}
	last := -1
	for _, entry := range want {
		idx := strings.Index(got, entry)
		if idx < 0 {
			t.Fatalf("missing %q in %q", entry, got)
		}
		if idx < last {
			t.Fatalf("entry %q out of order in %q", entry, got)
		}
		last = idx
	}
}

func TestBuildACRDeterministic(t *testing.T) {
	in := ACRInput{
		IsOTP:       true,
		IsSignup:    true,
		Version:     1,
		CountryCode: "+91",
		Mobile:      "9876543210",
		Email:       "a@b.co",
		OTPID:       "otp-77",
		MerchantID:  "m-1",
	}
	first := BuildACR(in)
	for i := 0; i < 10; i++ {
		if got := BuildACR(in); got != first {
			t.Fatalf("non-deterministic output: %q vs %q", got, first)
		}
	}
}

func TestBuildACRSeparator(t *testing.T) {
	got := BuildACR(ACRInput{IsOTP: true, Version: 1, CountryCode: "+91", Mobile: "9876543210"})
	if strings.Contains(got, "  ") {
		t.Fatalf("double space in %q", got)
	}
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Fatalf("leading/trailing space in %q", got)
	}
	for _, entry := range strings.Split(got, " ") {
		if !strings.Contains(entry, ":") {
			t.Fatalf("entry %q missing key:value shape", entry)
		}
	}
}
