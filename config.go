package authflow

import (
	"errors"
	"time"
)

// Config defines a public type used by authflow APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	ACR      ACRConfig
	Session  SessionConfig
	Recovery RecoveryConfig
	OTP      OTPConfig
	Assist   AssistConfig
	Tracking TrackingConfig
	Metrics  MetricsConfig
}

/*
====================================
ACR CONFIG
====================================
*/

// ACRConfig defines a public type used by authflow APIs.
//
// ACRConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ACRConfig struct {
	Version     int    // 1 (legacy, explicit isSignup/isLogin) or 2
	CountryCode string // prepended to the mobile entry, default "+91"
	QType       string // MFA supplemental code label, default "pan4"

	LoginContext        string
	LoanApplicationID   string
	MerchantID          string
	EncryptedMerchantID string
	MerchantCustomerID  string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authflow APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix     string
	FreshnessWindow time.Duration
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RetryPolicy bounds the recovery attempts for one error code.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	Exponential       bool
}

// RecoveryConfig defines a public type used by authflow APIs.
//
// RecoveryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RecoveryConfig struct {
	BreakerThreshold int
	BreakerWindow    time.Duration

	// PolicyOverrides replaces the category-default policy for specific
	// error codes.
	PolicyOverrides map[string]RetryPolicy
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by authflow APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	CodeDigits    int
	MFACodeDigits int

	// CosmeticFailureLimit is the number of otp-incorrect responses after
	// which the user message degrades to a generic retry text. The state
	// machine never locks the step; the gating is presentation only.
	CosmeticFailureLimit int

	// DebounceQuiet is the quiet period coalescing rapid OTP trigger
	// re-submits into one backend call.
	DebounceQuiet time.Duration
}

/*
====================================
ASSIST CONFIG
====================================
*/

// AssistConfig controls the optional third-party email-assist path offered
// during the email step.
type AssistConfig struct {
	Enabled     bool
	FlagID      string
	MinVersion  int
	RedirectURL string
}

/*
====================================
TRACKING / METRICS CONFIG
====================================
*/

// TrackingConfig defines a public type used by authflow APIs.
//
// TrackingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrackingConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authflow APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration used by [New]. Callers
// adjust fields and pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		ACR: ACRConfig{
			Version:     1,
			CountryCode: "+91",
			QType:       "pan4",
		},
		Session: SessionConfig{
			RedisPrefix:     "pnd",
			FreshnessWindow: 5 * time.Minute,
		},
		Recovery: RecoveryConfig{
			BreakerThreshold: 5,
			BreakerWindow:    60 * time.Second,
		},
		OTP: OTPConfig{
			CodeDigits:           6,
			MFACodeDigits:        4,
			CosmeticFailureLimit: 3,
			DebounceQuiet:        500 * time.Millisecond,
		},
		Tracking: TrackingConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Recovery.PolicyOverrides != nil {
		out.Recovery.PolicyOverrides = make(map[string]RetryPolicy, len(cfg.Recovery.PolicyOverrides))
		for code, policy := range cfg.Recovery.PolicyOverrides {
			out.Recovery.PolicyOverrides[code] = policy
		}
	}
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.ACR.Version != 1 && c.ACR.Version != 2 {
		return errors.New("ACR Version must be 1 or 2")
	}
	if c.ACR.CountryCode == "" {
		return errors.New("ACR CountryCode must be set")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.FreshnessWindow <= 0 {
		return errors.New("Session FreshnessWindow must be positive")
	}
	if c.Recovery.BreakerThreshold <= 0 {
		return errors.New("Recovery BreakerThreshold must be positive")
	}
	if c.Recovery.BreakerWindow <= 0 {
		return errors.New("Recovery BreakerWindow must be positive")
	}
	for code, policy := range c.Recovery.PolicyOverrides {
		if policy.MaxAttempts < 0 {
			return errors.New("Recovery PolicyOverrides MaxAttempts negative for " + code)
		}
		if policy.Exponential && policy.BackoffMultiplier <= 1 {
			return errors.New("Recovery PolicyOverrides BackoffMultiplier must exceed 1 for " + code)
		}
	}
	if c.OTP.CodeDigits <= 0 {
		return errors.New("OTP CodeDigits must be positive")
	}
	if c.OTP.MFACodeDigits <= 0 {
		return errors.New("OTP MFACodeDigits must be positive")
	}
	if c.OTP.DebounceQuiet < 0 {
		return errors.New("OTP DebounceQuiet must not be negative")
	}
	if c.Assist.Enabled {
		if c.Assist.FlagID == "" {
			return errors.New("Assist FlagID must be set when Assist is enabled")
		}
		if c.Assist.RedirectURL == "" {
			return errors.New("Assist RedirectURL must be set when Assist is enabled")
		}
	}
	return nil
}
