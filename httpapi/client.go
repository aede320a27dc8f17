package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authflow "github.com/paygate-labs/authflow"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response body is retained for
// classification.
const maxErrorBody = 64 << 10

// Config holds the backend endpoint URLs and optional transport overrides.
type Config struct {
	// TokenURL is the OAuth-style token endpoint accepting form-encoded
	// password grants with acr_values.
	TokenURL string

	// OTPTriggerURL accepts a JSON body requesting OTP delivery.
	OTPTriggerURL string

	// FeatureGateURL, when set, enables GetFeatureVersion lookups.
	FeatureGateURL string

	// ClientID is sent as the client_id form field on token requests.
	ClientID string

	// HTTPClient overrides the default client (15s timeout) when non-nil.
	HTTPClient *http.Client
}

// Client implements [authflow.TokenEndpoint], [authflow.OTPEndpoint] and
// [authflow.FeatureGate] against a real HTTP backend. Non-2xx responses
// surface as [*authflow.RequestError] with the raw body intact so the
// classifier can read the embedded error code.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient describes the newclient operation and its observable behavior.
//
// NewClient may return an error when input validation, dependency calls, or security checks fail.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("token url required")
	}
	if cfg.OTPTriggerURL == "" {
		return nil, errors.New("otp trigger url required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{cfg: cfg, http: httpClient}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RequestToken submits a password-grant token request with the flow's
// acr_values string.
func (c *Client) RequestToken(ctx context.Context, req authflow.TokenRequest) (*authflow.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", req.Username)
	form.Set("password", req.Password)
	form.Set("acr_values", req.ACRValues)
	if c.cfg.ClientID != "" {
		form.Set("client_id", c.cfg.ClientID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	return &authflow.TokenGrant{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
		ExpiresIn:   parsed.ExpiresIn,
	}, nil
}

type otpTriggerRequest struct {
	Mobile     string `json:"mobile"`
	MerchantID string `json:"merchantId,omitempty"`
}

type otpTriggerResponse struct {
	OTPID            string `json:"otpId"`
	ShowMFAChallenge bool   `json:"showMfaChallenge"`
}

// TriggerOTP requests delivery of a one-time code to the mobile number.
func (c *Client) TriggerOTP(ctx context.Context, req authflow.OTPRequest) (*authflow.OTPChallenge, error) {
	payload, err := json.Marshal(otpTriggerRequest{
		Mobile:     req.Mobile,
		MerchantID: req.MerchantID,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OTPTriggerURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var parsed otpTriggerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	return &authflow.OTPChallenge{
		OTPID:            parsed.OTPID,
		ShowMFAChallenge: parsed.ShowMFAChallenge,
	}, nil
}

type featureVersionResponse struct {
	Version int `json:"version"`
}

// GetFeatureVersion queries the feature-gate service for the rollout
// version of flagID as seen by subjectID.
func (c *Client) GetFeatureVersion(ctx context.Context, flagID, subjectID string) (int, error) {
	if c.cfg.FeatureGateURL == "" {
		return 0, errors.New("feature gate url not configured")
	}

	u, err := url.Parse(c.cfg.FeatureGateURL)
	if err != nil {
		return 0, err
	}
	q := u.Query()
	q.Set("flag", flagID)
	q.Set("subject", subjectID)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}

	body, err := c.do(httpReq)
	if err != nil {
		return 0, err
	}

	var parsed featureVersionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, err
	}
	return parsed.Version, nil
}

// do executes the request and returns the body on 2xx. Any other status
// becomes a [*authflow.RequestError] carrying the (capped) raw body.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &authflow.RequestError{
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}
	return body, nil
}
