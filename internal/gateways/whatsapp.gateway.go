package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcrm/engage/pkg/logger"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

var (
	ErrGatewayUnavailable = errors.New("whatsapp gateway unavailable")
)

// SendRequest is one outbound WhatsApp text, optionally with a media
// attachment reference the provider can fetch.
type SendRequest struct {
	MessageID int64  `json:"message_id"`
	To        string `json:"to"`
	Body      string `json:"body"`
	MediaRef  string `json:"media_ref,omitempty"`
}

type SendResponse struct {
	Accepted          bool      `json:"accepted"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ProcessedAt       time.Time `json:"processed_at"`
}

type GatewayMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{}
}

func (m *GatewayMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *GatewayMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *GatewayMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *GatewayMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type GatewayState int

const (
	StateHealthy GatewayState = iota
	StateDegraded
	StateCircuitOpen
)

type Config struct {
	BaseURL                 string
	AppKey                  string
	AuthKey                 string
	Sandbox                 bool
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// Client sends messages through a wasender-style WhatsApp HTTP API.
// The provider exposes one endpoint, POST {base}/public/api/create-message,
// taking a multipart form with appkey, authkey, to, message and an
// optional file field.
type Client struct {
	config           *Config
	client           *fasthttp.Client
	metrics          *GatewayMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64

	mu sync.RWMutex
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if !config.Sandbox && config.BaseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 200 * time.Millisecond
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}

	c := &Client{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		metrics: NewGatewayMetrics(),
	}
	c.state.Store(int32(StateHealthy))

	logger.Info("WhatsApp gateway client initialized", "base_url", config.BaseURL, "sandbox", config.Sandbox, "timeout", config.Timeout)

	return c, nil
}

func (c *Client) GetState() GatewayState {
	return GatewayState(c.state.Load())
}

func (c *Client) SetState(state GatewayState) {
	c.state.Store(int32(state))
}

func (c *Client) IsAvailable() bool {
	if c.GetState() == StateCircuitOpen {
		openUntil := c.circuitOpenUntil.Load()
		if time.Now().Unix() > openUntil {
			c.SetState(StateDegraded)
			return true
		}
		return false
	}
	return true
}

// Send delivers one message, retrying transient failures up to
// MaxRetries. In sandbox mode nothing leaves the process.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if c.config.Sandbox {
		logger.Info("sandbox send", "message_id", req.MessageID, "to", req.To)
		return &SendResponse{
			Accepted:          true,
			ProviderMessageID: "sandbox-" + uuid.NewString(),
			ProcessedAt:       time.Now().UTC(),
		}, nil
	}

	if !c.IsAvailable() {
		return nil, ErrGatewayUnavailable
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		startTime := time.Now()
		resp, err := c.doCreateMessage(ctx, req)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			c.metrics.RecordFailure()
			c.checkCircuitBreaker()

			logger.Warn("gateway send failed, retrying", "error", err, "message_id", req.MessageID, "attempt", attempt+1)

			lastErr = err
			continue
		}

		c.metrics.RecordSuccess(latency)

		logger.Info("message sent to gateway", "message_id", req.MessageID, "provider_message_id", resp.ProviderMessageID, "latency_ms", latency)

		return resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doCreateMessage(ctx context.Context, sr *SendRequest) (*SendResponse, error) {
	body, contentType, err := c.encodeForm(sr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/public/api/create-message")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	var payload struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &SendResponse{
		Accepted:          true,
		ProviderMessageID: payload.MessageID,
		ProcessedAt:       time.Now().UTC(),
	}, nil
}

func (c *Client) encodeForm(sr *SendRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"appkey":  c.config.AppKey,
		"authkey": c.config.AuthKey,
		"to":      sr.To,
		"message": sr.Body,
	}
	if sr.MediaRef != "" {
		fields["file"] = sr.MediaRef
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) checkCircuitBreaker() {
	consecutiveFails := c.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		c.SetState(StateCircuitOpen)
		openUntil := time.Now().Add(c.config.CircuitBreakerTimeout).Unix()
		c.circuitOpenUntil.Store(openUntil)

		logger.Warn("circuit breaker opened", "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

// GetStats returns a point-in-time view of the gateway health.
func (c *Client) GetStats() GatewayStats {
	return GatewayStats{
		BaseURL:          c.config.BaseURL,
		State:            stateString(c.GetState()),
		TotalRequests:    c.metrics.TotalRequests.Load(),
		SuccessfulReqs:   c.metrics.SuccessfulReqs.Load(),
		FailedReqs:       c.metrics.FailedReqs.Load(),
		SuccessRate:      c.metrics.SuccessRate(),
		AvgLatencyMs:     c.metrics.AvgLatencyMs(),
		LastLatencyMs:    c.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: c.metrics.ConsecutiveFails.Load(),
	}
}

type GatewayStats struct {
	BaseURL          string
	State            string
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func stateString(state GatewayState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
