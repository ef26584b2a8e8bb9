package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// FacilitatorClient handles communication with an x402 payment facilitator.
// The facilitator is the single external trust boundary for cryptographic
// correctness and fund movement; verify and settle can be slow and can fail
// independently of each other.
type FacilitatorClient struct {
	facilitatorURL string
	verifyEndpoint string
	settleEndpoint string
	httpClient     *http.Client
	config         *utils.ConfigManager
	logger         *utils.LogsManager
	maxRetries     int
	retryBackoff   time.Duration
}

// NewFacilitatorClient creates a new x402 facilitator client
func NewFacilitatorClient(config *utils.ConfigManager, logger *utils.LogsManager) *FacilitatorClient {
	timeout := time.Duration(config.GetConfigInt("x402_timeout_seconds", 10, 1, 60)) * time.Second
	maxRetries := config.GetConfigInt("x402_max_retries", 3, 0, 10)
	retryBackoff := time.Duration(config.GetConfigInt("x402_retry_backoff_ms", 1000, 100, 10000)) * time.Millisecond

	facilitatorURL := config.GetConfigWithDefault("x402_facilitator_url", "https://x402.org/facilitator")
	verifyEndpoint := config.GetConfigWithDefault("x402_verify_endpoint", "/verify")
	settleEndpoint := config.GetConfigWithDefault("x402_settle_endpoint", "/settle")

	client := &FacilitatorClient{
		facilitatorURL: facilitatorURL,
		verifyEndpoint: verifyEndpoint,
		settleEndpoint: settleEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:       config,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}

	logger.Info(fmt.Sprintf("Facilitator client initialized: url=%s, verify=%s, settle=%s",
		facilitatorURL, verifyEndpoint, settleEndpoint), "facilitator")

	return client
}

// Verify submits the decoded payload plus requirements to the facilitator and
// returns its validity verdict. Transport and 5xx failures are retried with
// exponential backoff and surfaced as infrastructure errors, never as
// "payment invalid"; an isValid=false verdict comes back without error.
func (c *FacilitatorClient) Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error) {
	if c.facilitatorURL == "" {
		return nil, ErrFacilitatorUnavailable
	}

	url := c.facilitatorURL + c.verifyEndpoint
	req := &FacilitatorRequest{
		X402Version:         X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

			c.logger.Info(fmt.Sprintf("Retrying payment verification (attempt %d/%d)", attempt+1, c.maxRetries+1), "facilitator")
		}

		body, status, err := c.post(ctx, url, req)
		if err != nil {
			lastErr = err
			continue
		}

		if status >= 500 {
			c.logger.Warn(fmt.Sprintf("Facilitator server error (HTTP %d), will retry", status), "facilitator")
			lastErr = ErrFacilitatorUnavailable
			continue
		}

		var resp VerifyResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse verify response: %v", err)
		}

		if status >= 400 {
			// Client error, not retryable
			c.logger.Warn(fmt.Sprintf("Facilitator rejected verify request (HTTP %d): %s", status, string(body)), "facilitator")
			if resp.InvalidReason != "" {
				return nil, fmt.Errorf("%w: %s", ErrFacilitatorRejected, resp.InvalidReason)
			}
			return nil, fmt.Errorf("%w: HTTP %d", ErrFacilitatorRejected, status)
		}

		return &resp, nil
	}

	c.logger.Error(fmt.Sprintf("Payment verification failed after %d attempts: %v", c.maxRetries+1, lastErr), "facilitator")
	return nil, lastErr
}

// Settle submits a verified payload for on-chain settlement. Unlike Verify this
// is a single attempt with no automatic retry: if the first attempt succeeded
// but the response was lost, a retry would risk a second on-chain transfer.
// Re-settling is an operator-level decision, not an automatic one.
func (c *FacilitatorClient) Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error) {
	if c.facilitatorURL == "" {
		return nil, ErrFacilitatorUnavailable
	}

	url := c.facilitatorURL + c.settleEndpoint
	req := &FacilitatorRequest{
		X402Version:         X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}

	body, status, err := c.post(ctx, url, req)
	if err != nil {
		return nil, err
	}

	if status >= 500 {
		c.logger.Error(fmt.Sprintf("Facilitator settle failed (HTTP %d): %s", status, string(body)), "facilitator")
		return nil, ErrFacilitatorUnavailable
	}

	var resp SettleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse settle response: %v", err)
	}

	if status >= 400 {
		c.logger.Warn(fmt.Sprintf("Facilitator rejected settle request (HTTP %d): %s", status, string(body)), "facilitator")
		if resp.ErrorReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrFacilitatorRejected, resp.ErrorReason)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrFacilitatorRejected, status)
	}

	if !resp.Success {
		return nil, fmt.Errorf("%w: %s %s", ErrSettlementFailed, resp.ErrorReason, resp.ErrorReasonDetail)
	}

	if resp.Transaction == "" {
		// Some settlement paths legitimately omit the transaction hash
		c.logger.Info("Settlement succeeded without a transaction hash", "facilitator")
	} else {
		c.logger.Info(fmt.Sprintf("Settlement successful: tx=%s, network=%s", resp.Transaction, resp.Network), "facilitator")
	}

	return &resp, nil
}

// post sends one JSON request and returns the raw response body and status.
// Transport failures map to the facilitator sentinel errors.
func (c *FacilitatorClient) post(ctx context.Context, url string, body interface{}) ([]byte, int, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "inkwell-node/1.0")

	c.logger.Debug(fmt.Sprintf("Facilitator request: POST %s", url), "facilitator")
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(fmt.Sprintf("Facilitator HTTP request failed: %v (ctx.Err=%v)", err, ctx.Err()), "facilitator")
		if ctx.Err() == context.DeadlineExceeded {
			return nil, 0, ErrFacilitatorTimeout
		}
		return nil, 0, ErrFacilitatorUnavailable
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %v", err)
	}

	c.logger.Debug(fmt.Sprintf("Facilitator response: HTTP %d, Body: %s", httpResp.StatusCode, string(respBody)), "facilitator")
	return respBody, httpResp.StatusCode, nil
}
