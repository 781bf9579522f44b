// Package gateway implements the JSON-over-HTTP wire client for an
// x402-secure gateway: risk session creation, agent trace submission
// and retrieval, and the verify/settle payment calls.
//
// The HTTP transport is injected through the Doer interface so tests
// can substitute a double without patching internals. Calls are never
// retried; the first failure is returned to the caller as-is.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/logger"
	"github.com/vitwit/x402-secure/metrics"
	"github.com/vitwit/x402-secure/types"
)

// Doer executes a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Gateway endpoint paths.
const (
	pathSession = "/risk/session"
	pathTrace   = "/risk/trace"
	pathVerify  = "/x402/verify"
	pathSettle  = "/x402/settle"
)

const (
	// DefaultTimeout bounds each HTTP exchange when the caller does
	// not inject its own client.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Config carries the collaborators a Client needs. Zero fields get
// safe defaults.
type Config struct {
	BaseURL    string
	HTTPClient Doer
	Logger     logger.Logger
	Metrics    metrics.Recorder
	UserAgent  string

	// Timeout applies only to the default HTTP client built when
	// HTTPClient is nil.
	Timeout time.Duration
}

// Client is a thin wire client for one gateway. It holds no per-call
// state; the embedded HTTP client is reused across sequential calls.
type Client struct {
	baseURL   string
	http      Doer
	logger    logger.Logger
	metrics   metrics.Recorder
	userAgent string
}

// New builds a gateway client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "x402-secure-go"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      httpClient,
		logger:    log,
		metrics:   rec,
		userAgent: ua,
	}
}

// CreateSession opens a risk session for the agent/app identity in req.
func (c *Client) CreateSession(ctx context.Context, req *types.SessionRequest) (*types.RiskSession, error) {
	var out types.RiskSession
	if err := c.do(ctx, "create_session", http.MethodPost, pathSession, req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTrace uploads an agent trace under its session and returns the
// gateway-issued trace id unmodified.
func (c *Client) SubmitTrace(ctx context.Context, req *types.TraceSubmission) (string, error) {
	var out types.TraceAck
	if err := c.do(ctx, "submit_trace", http.MethodPost, pathTrace, req, nil, &out); err != nil {
		return "", err
	}
	return out.TID, nil
}

// GetTrace fetches a stored trace back from the gateway.
func (c *Client) GetTrace(ctx context.Context, tid string) (*types.StoredTrace, error) {
	var out types.StoredTrace
	path := pathTrace + "/" + url.PathEscape(tid)
	if err := c.do(ctx, "get_trace", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the gateway to verify a payment. The envelope headers
// carry the encoded payload, the trace context and the session id.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest, env headers.Envelope) (*types.VerifyResponse, error) {
	var out types.VerifyResponse
	if err := c.do(ctx, "verify", http.MethodPost, pathVerify, req, &env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle asks the gateway to execute a verified payment.
func (c *Client) Settle(ctx context.Context, req *types.VerifyRequest, env headers.Envelope) (*types.SettleResponse, error) {
	var out types.SettleResponse
	if err := c.do(ctx, "settle", http.MethodPost, pathSettle, req, &env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, env *headers.Envelope, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &types.X402Error{
				Code:    types.ErrValidation,
				Message: fmt.Sprintf("failed to encode %s request", op),
				Err:     err,
			}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &types.X402Error{
			Code:    types.ErrTransportError,
			Message: fmt.Sprintf("failed to build %s request", op),
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if env != nil {
		env.Apply(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, "error", start)
		c.logger.Error("gateway request failed", map[string]any{
			"operation": op,
			"path":      path,
			"error":     err.Error(),
		})
		return &types.X402Error{
			Code:    types.ErrTransportError,
			Message: fmt.Sprintf("%s %s failed", method, path),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(op, "error", start)
		return &types.X402Error{
			Code:    types.ErrTransportError,
			Message: fmt.Sprintf("failed to read %s response", op),
			Err:     err,
		}
	}

	requestID := resp.Header.Get("X-Request-ID")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, strconv.Itoa(resp.StatusCode), start)
		detail := errorDetail(raw)
		c.logger.Warn("gateway returned error status", map[string]any{
			"operation":  op,
			"path":       path,
			"status":     resp.StatusCode,
			"detail":     detail,
			"request_id": requestID,
		})
		return &types.X402Error{
			Code:    types.ErrGatewayError,
			Message: fmt.Sprintf("gateway %s returned %d: %s", path, resp.StatusCode, detail),
			Data: map[string]interface{}{
				"status":     resp.StatusCode,
				"path":       path,
				"detail":     detail,
				"request_id": requestID,
			},
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.observe(op, "error", start)
			return &types.X402Error{
				Code:    types.ErrGatewayError,
				Message: fmt.Sprintf("gateway %s returned malformed JSON", path),
				Data:    map[string]interface{}{"path": path, "request_id": requestID},
				Err:     err,
			}
		}
	}

	c.observe(op, "ok", start)
	c.logger.Debug("gateway call complete", map[string]any{
		"operation":   op,
		"path":        path,
		"status":      resp.StatusCode,
		"request_id":  requestID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (c *Client) observe(op, status string, start time.Time) {
	labels := map[string]string{"operation": op, "status": status}
	c.metrics.IncCounter("gateway_request", labels)
	c.metrics.ObserveLatency(op, time.Since(start), labels)
}

// errorDetail extracts a human-readable reason from an error body.
// The gateway uses {"detail": …}; plain text bodies pass through
// truncated.
func errorDetail(raw []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
