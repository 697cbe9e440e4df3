// Package whatsapp provides REST access to the WhatsApp messaging vendor API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/harmonia-saude/leadops-cli/internal/phone"
	"github.com/harmonia-saude/leadops-cli/internal/resilience"
)

// Client defines the vendor API operations used by the outbound flows.
type Client interface {
	SendText(ctx context.Context, canonical, body string) (*SendResult, error)
	SendTemplate(ctx context.Context, canonical, template string, params map[string]string) (*SendResult, error)
	SendAudio(ctx context.Context, canonical, mediaURL string) (*SendResult, error)
}

// SendResult is the vendor's acknowledgment of an accepted message.
type SendResult struct {
	MessageID string `json:"id"`
	Status    string `json:"status"`
}

// sendRequest is the vendor wire format. The vendor addresses recipients by
// bare country-code-prefixed digits, never E.164 with the plus sign.
type sendRequest struct {
	To       string            `json:"to"`
	From     string            `json:"from,omitempty"`
	Type     string            `json:"type"`
	Body     string            `json:"body,omitempty"`
	Template string            `json:"template,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	MediaURL string            `json:"media_url,omitempty"`
}

// ClientOption configures the vendor client.
type ClientOption func(*restClient)

// WithRateLimit sets a per-second rate limit for vendor API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *restClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *restClient) { c.http = hc }
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *restClient) { c.retry = cfg }
}

// WithCircuitBreaker shields the vendor from hammering while it is down.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *restClient) { c.breaker = cb }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *restClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type restClient struct {
	http     *http.Client
	baseURL  string
	token    string
	senderID string
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewClient creates a vendor API client.
func NewClient(baseURL, token, senderID string, opts ...ClientOption) Client {
	c := &restClient{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		token:    token,
		senderID: senderID,
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *restClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *restClient) SendText(ctx context.Context, canonical, body string) (*SendResult, error) {
	return c.send(ctx, sendRequest{
		To:   phone.VendorFormat(canonical),
		Type: "text",
		Body: body,
	})
}

func (c *restClient) SendTemplate(ctx context.Context, canonical, template string, params map[string]string) (*SendResult, error) {
	return c.send(ctx, sendRequest{
		To:       phone.VendorFormat(canonical),
		Type:     "template",
		Template: template,
		Params:   params,
	})
}

func (c *restClient) SendAudio(ctx context.Context, canonical, mediaURL string) (*SendResult, error) {
	return c.send(ctx, sendRequest{
		To:       phone.VendorFormat(canonical),
		Type:     "audio",
		MediaURL: mediaURL,
	})
}

func (c *restClient) send(ctx context.Context, req sendRequest) (*SendResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "whatsapp: rate limit")
	}
	req.From = c.senderID

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "whatsapp: encode request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SendResult, error) {
		var result SendResult
		call := func(ctx context.Context) error {
			return c.post(ctx, payload, &result)
		}
		var callErr error
		if c.breaker != nil {
			callErr = c.breaker.Execute(ctx, call)
		} else {
			callErr = call(ctx)
		}
		if callErr != nil {
			return nil, callErr
		}
		return &result, nil
	})
}

func (c *restClient) post(ctx context.Context, payload []byte, out *SendResult) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "whatsapp: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "whatsapp: post")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := eris.New(fmt.Sprintf("whatsapp: status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "whatsapp: decode response")
	}
	return nil
}
