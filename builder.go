package authflow

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/paygate-labs/authflow/internal/track"
)

// Builder defines a public type used by authflow APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	tokenEndpoint TokenEndpoint
	otpEndpoint   OTPEndpoint
	featureGate   FeatureGate
	trackingSink  TrackSink

	scopeID string

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithTokenEndpoint describes the withtokenendpoint operation and its observable behavior.
//
// WithTokenEndpoint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenEndpoint(ep TokenEndpoint) *Builder {
	b.tokenEndpoint = ep
	return b
}

// WithOTPEndpoint describes the withotpendpoint operation and its observable behavior.
//
// WithOTPEndpoint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOTPEndpoint(ep OTPEndpoint) *Builder {
	b.otpEndpoint = ep
	return b
}

// WithFeatureGate describes the withfeaturegate operation and its observable behavior.
//
// WithFeatureGate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithFeatureGate(g FeatureGate) *Builder {
	b.featureGate = g
	return b
}

// WithTrackingSink describes the withtrackingsink operation and its observable behavior.
//
// WithTrackingSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTrackingSink(sink TrackSink) *Builder {
	b.trackingSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithScopeID pins the flow scope identifier instead of generating one.
// Required when resuming a flow persisted by an earlier process.
func (b *Builder) WithScopeID(id string) *Builder {
	b.scopeID = id
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Flow, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.tokenEndpoint == nil {
		return nil, errors.New("token endpoint required")
	}
	if b.otpEndpoint == nil {
		return nil, errors.New("otp endpoint required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scopeID := b.scopeID
	if scopeID == "" {
		scopeID = uuid.NewString()
	}

	flow := &Flow{
		config:  cloneConfig(cfg),
		scopeID: scopeID,
		state:   StateEnteringMobile,

		tokenEndpoint: b.tokenEndpoint,
		otpEndpoint:   b.otpEndpoint,
		featureGate:   b.featureGate,

		now: time.Now,
	}

	flow.pending = newPendingStore(b.redis, cfg.Session)
	flow.recovery = newRecoverer(cfg.Recovery)
	flow.otpDebounce = newDebouncer(cfg.OTP.DebounceQuiet)
	flow.metrics = NewMetrics(cfg.Metrics)

	flow.track = track.NewDispatcher(track.Config{
		Enabled:    cfg.Tracking.Enabled,
		BufferSize: cfg.Tracking.BufferSize,
		DropIfFull: cfg.Tracking.DropIfFull,
	}, b.trackingSink)

	b.built = true
	return flow, nil
}
