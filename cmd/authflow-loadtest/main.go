package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authflow "github.com/paygate-labs/authflow"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// loadBackend is a zero-latency stub: every OTP trigger succeeds and the
// token endpoint accepts the fixed code for known mobiles, diverting the
// rest to signup.
type loadBackend struct {
	signupEvery int64
	calls       atomic.Int64
}

func (b *loadBackend) TriggerOTP(_ context.Context, req authflow.OTPRequest) (*authflow.OTPChallenge, error) {
	return &authflow.OTPChallenge{OTPID: "otp-" + req.Mobile}, nil
}

func (b *loadBackend) RequestToken(_ context.Context, req authflow.TokenRequest) (*authflow.TokenGrant, error) {
	n := b.calls.Add(1)
	if b.signupEvery > 0 && n%b.signupEvery == 0 && !acrCarriesEmail(req.ACRValues) {
		body, _ := json.Marshal(map[string]string{"error_description": "AUTH-1005|no account"})
		return nil, &authflow.RequestError{StatusCode: 404, Body: body}
	}
	return &authflow.TokenGrant{AccessToken: "t", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func acrCarriesEmail(acr string) bool {
	for start := 0; start < len(acr); {
		end := start
		for end < len(acr) && acr[end] != ' ' {
			end++
		}
		if end-start >= 6 && acr[start:start+6] == "email:" {
			return true
		}
		start = end + 1
	}
	return false
}

func main() {
	var (
		flows       = flag.Int("flows", 50000, "number of full flows to run")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		signupEvery = flag.Int64("signup-every", 10, "every Nth flow goes through signup (0 disables)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *flows <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "flows and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var client *redis.Client
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := &loadBackend{signupEvery: *signupEvery}

	cfg := authflow.DefaultConfig()
	cfg.OTP.DebounceQuiet = 0
	cfg.Tracking.Enabled = false

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		signups   int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, *flows)
	)

	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= *flows {
					return
				}

				flowStart := time.Now()
				signedUp, err := runFlow(ctx, cfg, client, backend, i)
				elapsed := time.Since(flowStart)

				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				if signedUp {
					atomic.AddInt64(&signups, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	fmt.Println("---- results ----")
	fmt.Printf("flows:    %d (%d signup, %d failed)\n", *flows, signups, failures)
	fmt.Printf("elapsed:  %s (%.0f flows/s)\n", total.Round(time.Millisecond), float64(*flows)/total.Seconds())
	printLatencies(latencies)
}

func runFlow(ctx context.Context, cfg authflow.Config, client *redis.Client, backend *loadBackend, i int) (bool, error) {
	flow, err := authflow.New().
		WithConfig(cfg).
		WithRedis(client).
		WithTokenEndpoint(backend).
		WithOTPEndpoint(backend).
		Build()
	if err != nil {
		return false, err
	}
	defer flow.Close()

	mobile := fmt.Sprintf("9%09d", i%1000000000)
	if _, err := flow.SubmitMobile(ctx, mobile, false); err != nil {
		return false, err
	}

	result, err := flow.SubmitOTP(ctx, "123456", "")
	if err != nil {
		return false, err
	}
	if result.State == authflow.StateTokenIssued {
		return false, nil
	}

	if _, err := flow.SubmitEmail(ctx, fmt.Sprintf("user%d@example.com", i), true); err != nil {
		return true, err
	}
	return true, nil
}

func printLatencies(latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(a, b int) bool { return latencies[a] < latencies[b] })
	pct := func(p float64) time.Duration {
		idx := int(p * float64(len(latencies)-1))
		return latencies[idx]
	}
	fmt.Printf("latency:  p50=%s p95=%s p99=%s max=%s\n",
		pct(0.50).Round(time.Microsecond),
		pct(0.95).Round(time.Microsecond),
		pct(0.99).Round(time.Microsecond),
		latencies[len(latencies)-1].Round(time.Microsecond),
	)
}
