// internal/driver/uia/client.go

// Package uia is an HTTP JSON-wire client for UIAutomator2-style device
// automation servers, implementing the driver boundary the pipeline
// consumes.
package uia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// response is the common JSON envelope used by the wire protocol.
type response struct {
	SessionID string              `json:"sessionId,omitempty"`
	Value     jsoniter.RawMessage `json:"value,omitempty"`
}

// wireError is the payload of an error response.
type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	// ConnectRetries bounds the exponential-backoff retry loop when
	// creating a session.
	ConnectRetries uint
	// FindTimeout and PollInterval control the coarse readiness wait in
	// FindElement: the lookup polls until a match appears or the timeout
	// elapses.
	FindTimeout  time.Duration
	PollInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://127.0.0.1:6790"
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.ConnectRetries == 0 {
		o.ConnectRetries = 3
	}
	if o.FindTimeout <= 0 {
		o.FindTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
}

// Client talks the JSON wire protocol to the automation server. One client
// owns at most one session.
type Client struct {
	http      *http.Client
	opts      Options
	sessionID string
	logger    *zap.Logger
}

// NewClient builds a client; call Connect to create the device session.
func NewClient(opts Options, logger *zap.Logger) *Client {
	opts.withDefaults()
	return &Client{
		http:   &http.Client{Timeout: opts.RequestTimeout},
		opts:   opts,
		logger: logger.Named("uia"),
	}
}

// SessionID returns the active wire session id, or "" before Connect.
func (c *Client) SessionID() string { return c.sessionID }

// Healthy checks the server status endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.request(ctx, http.MethodGet, "/status", nil)
	return err == nil
}

// Connect creates a session with the given capabilities, retrying with
// exponential backoff while the server comes up.
func (c *Client) Connect(ctx context.Context, capabilities map[string]any) error {
	if !c.Healthy(ctx) {
		c.logger.Warn("Automation server health check failed, attempting to connect anyway.",
			zap.String("base_url", c.opts.BaseURL))
	}

	body := map[string]any{"capabilities": map[string]any{"alwaysMatch": capabilities}}

	operation := func() error {
		raw, err := c.request(ctx, http.MethodPost, "/session", body)
		if err != nil {
			return err
		}
		var created struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			return backoff.Permanent(fmt.Errorf("decode session response: %w", err))
		}
		if created.SessionID == "" {
			return backoff.Permanent(errors.New("server returned empty session id"))
		}
		c.sessionID = created.SessionID
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.opts.ConnectRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("uia: connect to %s: %w", c.opts.BaseURL, err)
	}
	c.logger.Info("Session created.", zap.String("session_id", c.sessionID))
	return nil
}

// Close deletes the session. Safe to call twice.
func (c *Client) Close(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.request(ctx, http.MethodDelete, "/session/"+c.sessionID, nil)
	c.sessionID = ""
	return err
}

// sessionPath prefixes a path with the active session.
func (c *Client) sessionPath(path string) string {
	return "/session/" + c.sessionID + path
}

// request performs one wire call and returns the raw "value" payload.
// HTTP-level failures and error envelopes both come back as errors; the
// caller maps them onto the driver error taxonomy.
func (c *Client) request(ctx context.Context, method, path string, body any) (jsoniter.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Wire call failed.", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Wire call.",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var envelope response
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		var we wireError
		if len(envelope.Value) > 0 && json.Unmarshal(envelope.Value, &we) == nil && we.Error != "" {
			return nil, &protocolError{status: resp.StatusCode, code: we.Error, message: we.Message}
		}
		return nil, &protocolError{status: resp.StatusCode, message: strings.TrimSpace(string(respBody))}
	}

	return envelope.Value, nil
}

// protocolError is a raw wire-level failure before taxonomy mapping.
type protocolError struct {
	status  int
	code    string
	message string
}

func (e *protocolError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.status, e.code, e.message)
	}
	return fmt.Sprintf("server error %d: %s", e.status, e.message)
}
