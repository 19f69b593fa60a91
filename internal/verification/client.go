package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	verifyPath   = "/auth/v1/verify"
	referralPath = "/functions/v1/complete-referral"
)

// ErrorKind distinguishes token failures so the UI can offer
// "request a new link" vs. plain retry.
type ErrorKind string

const (
	KindExpired ErrorKind = "expired"
	KindInvalid ErrorKind = "invalid"
	KindGeneric ErrorKind = "generic"
)

// Error is a typed verification failure
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("verification failed (%s): %s", e.Kind, e.Message)
}

// Result is the success payload of a verification call
type Result struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message,omitempty"`
}

// Client calls the hosted auth service to exchange one-time email tokens
// for a confirmed-account state. The service itself is external; this
// client only owns the request/response contract.
type Client struct {
	baseURL   string
	client    *http.Client
	referrals *PendingReferralStore
}

// NewClient creates a verification client against the given base URL
func NewClient(baseURL string, referrals *PendingReferralStore) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		referrals: referrals,
	}
}

type verifyRequest struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

type verifyErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Verify exchanges a one-time token for a confirmed-account state.
// Failures come back as *Error with a Kind of expired, invalid, or generic.
func (c *Client) Verify(ctx context.Context, token, verifyType string) (*Result, error) {
	if token == "" {
		metrics.RecordVerification("invalid")
		return nil, &Error{Kind: KindInvalid, Message: "missing verification token"}
	}
	if verifyType == "" {
		verifyType = "signup"
	}

	payload, err := json.Marshal(verifyRequest{Type: verifyType, TokenHash: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordVerification("transport_error")
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.RecordVerification("success")
		return &Result{Verified: true}, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp verifyErrorResponse
	_ = json.Unmarshal(body, &errResp)

	kind := classify(resp.StatusCode, errResp.Error, errResp.ErrorDescription)
	metrics.RecordVerification(string(kind))

	message := errResp.ErrorDescription
	if message == "" {
		message = errResp.Error
	}
	if message == "" {
		message = fmt.Sprintf("verification service returned status %d", resp.StatusCode)
	}

	return nil, &Error{Kind: kind, Message: message}
}

// CompleteReferralAsync consumes the pending referral code for the user and
// fires the completion call in the background. Best effort: the code is
// cleared no matter how the call ends, failures are only logged, and the
// caller never waits.
func (c *Client) CompleteReferralAsync(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		code, err := c.referrals.Consume(ctx, userID)
		if err != nil {
			logger.Log.Warn("Failed to read pending referral code",
				zap.String("user_id", userID),
				zap.Error(err))
			return
		}
		if code == "" {
			return
		}

		if err := c.completeReferral(ctx, code); err != nil {
			logger.Log.Warn("Referral completion failed",
				zap.String("user_id", userID),
				zap.Error(err))
			return
		}

		logger.Log.Info("Referral completed",
			zap.String("user_id", userID))
	}()
}

type referralRequest struct {
	ReferralCode string `json:"referral_code"`
}

func (c *Client) completeReferral(ctx context.Context, code string) error {
	payload, err := json.Marshal(referralRequest{ReferralCode: code})
	if err != nil {
		return fmt.Errorf("failed to marshal referral request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+referralPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create referral request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("referral request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("referral service returned status %d", resp.StatusCode)
	}
	return nil
}

// classify maps a hosted-service error response onto an ErrorKind
func classify(status int, errCode, description string) ErrorKind {
	s := strings.ToLower(errCode + " " + description)
	switch {
	case strings.Contains(s, "expired"), status == http.StatusGone:
		return KindExpired
	case strings.Contains(s, "invalid"),
		strings.Contains(s, "already"),
		strings.Contains(s, "not found"),
		status == http.StatusNotFound,
		status == http.StatusUnauthorized:
		return KindInvalid
	default:
		return KindGeneric
	}
}
