package authflow

import (
	"context"
	"testing"
	"time"
)

func collectEvents(t *testing.T, sink *ChannelSink, n int) []TrackEvent {
	t.Helper()

	events := make([]TrackEvent, 0, n)
	deadline := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		case <-deadline:
			t.Fatalf("collected %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestFlowEmitsTrackEvents(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(64)
	backend := &fakeBackend{}

	cfg := DefaultConfig()
	cfg.OTP.DebounceQuiet = 0

	flow, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTokenEndpoint(backend).
		WithOTPEndpoint(backend).
		WithTrackingSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer flow.Close()
	flow.recovery.sleep = func(context.Context, time.Duration) error { return nil }

	ctx := WithDeviceID(WithClientIP(context.Background(), "203.0.113.9"), "device-42")

	if _, err := flow.SubmitMobile(ctx, "9876543210", false); err != nil {
		t.Fatalf("SubmitMobile failed: %v", err)
	}
	if _, err := flow.SubmitOTP(ctx, "123456", ""); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}

	// mobile_submitted, otp_requested, otp_verified, login_completed.
	events := collectEvents(t, sink, 4)

	byType := make(map[string]TrackEvent, len(events))
	for _, event := range events {
		byType[event.EventType] = event
	}
	for _, want := range []string{"mobile_submitted", "otp_requested", "otp_verified", "login_completed"} {
		if _, ok := byType[want]; !ok {
			t.Fatalf("missing event %q, got %+v", want, byType)
		}
	}

	verified := byType["otp_verified"]
	if verified.FlowID != flow.ScopeID() {
		t.Fatalf("FlowID = %q", verified.FlowID)
	}
	if verified.DeviceID != "device-42" || verified.IP != "203.0.113.9" {
		t.Fatalf("context carriers lost: %+v", verified)
	}
	if verified.Timestamp.IsZero() {
		t.Fatal("event timestamp not set")
	}
}

func TestContextCarriers(t *testing.T) {
	ctx := context.Background()
	if clientIPFromContext(ctx) != "" || deviceIDFromContext(ctx) != "" {
		t.Fatal("empty context must yield empty carriers")
	}

	ctx = WithClientIP(ctx, "198.51.100.1")
	ctx = WithDeviceID(ctx, "dev-1")
	if got := clientIPFromContext(ctx); got != "198.51.100.1" {
		t.Fatalf("client ip = %q", got)
	}
	if got := deviceIDFromContext(ctx); got != "dev-1" {
		t.Fatalf("device id = %q", got)
	}
}
