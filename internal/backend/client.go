// Package backend implements the HTTP client for the assessment backend —
// the external collaborator that generates questions, transcribes and
// scores answers, and persists everything. The runtime only ever talks to
// it through this package.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/intervo-ai/intervo/internal/bus"
	"github.com/intervo-ai/intervo/internal/interview"
	"github.com/intervo-ai/intervo/internal/observe"
)

var (
	// ErrSessionUnavailable indicates the session could not be loaded
	// (missing, expired, or access denied). Terminal for the session page:
	// there is nothing useful to show without questions.
	ErrSessionUnavailable = errors.New("backend: interview session unavailable")

	// ErrSummaryNotReady indicates scoring is still in progress and the
	// summary should be polled again.
	ErrSummaryNotReady = errors.New("backend: interview summary not ready")
)

// AuthEvent is broadcast when the backend rejects a request for
// authentication reasons, so decoupled listeners (feed, logging) can react
// to the session's credentials going stale.
type AuthEvent struct {
	// Status is the HTTP status code that triggered the event (401 or 403).
	Status int
}

// defaultTimeout bounds any single backend request, including multipart
// submissions.
const defaultTimeout = 60 * time.Second

// summaryPollInterval matches the UI's historical 5-second result polling.
const summaryPollInterval = 5 * time.Second

// apiError is the backend's error body shape.
type apiError struct {
	Message string `json:"message"`
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithAuthBus sets the bus on which auth rejections are broadcast.
func WithAuthBus(b *bus.Bus[AuthEvent]) Option {
	return func(c *Client) {
		c.authBus = b
	}
}

// WithMetrics overrides the metrics instance (tests pass an isolated one).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithPollInterval overrides the summary polling cadence. Intended for
// tests that need a fast clock.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// Client talks to the assessment backend. Safe for concurrent use.
type Client struct {
	http         *resty.Client
	authBus      *bus.Bus[AuthEvent]
	metrics      *observe.Metrics
	pollInterval time.Duration
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend: baseURL must not be empty")
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout),
		pollInterval: summaryPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// FetchSession loads the session and its ordered question list.
// Any non-2xx response maps to [ErrSessionUnavailable]; 401/403 additionally
// broadcast an [AuthEvent].
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*interview.Session, error) {
	var sess interview.Session
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&sess).
		SetError(&apiErr).
		SetPathParam("id", sessionID).
		Get("/interview-sessions/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if resp.IsError() {
		c.notifyAuth(resp.StatusCode())
		return nil, fmt.Errorf("%w: %s", ErrSessionUnavailable, errMessage(apiErr, resp.StatusCode()))
	}
	return &sess, nil
}

// SaveAnswer persists one text answer, best-effort. The caller treats a
// failure as a non-blocking notification, never as a flow-control signal.
func (c *Client) SaveAnswer(ctx context.Context, sessionID, questionID, text string) error {
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"sessionId":           sessionID,
			"questionId":          questionID,
			"candidateAnswerText": text,
		}).
		SetError(&apiErr).
		Post("/interview-answer/save-answer")
	if err != nil {
		return fmt.Errorf("backend: save answer: %w", err)
	}
	if resp.IsError() {
		c.notifyAuth(resp.StatusCode())
		return fmt.Errorf("backend: save answer: %s", errMessage(apiErr, resp.StatusCode()))
	}
	return nil
}

// Submit finalizes the session server-side. With no video answers the body
// is plain JSON `{sessionId}`; with recorded clips it becomes a multipart
// request carrying the sessionId field plus one binary part per question,
// keyed by questionId. One transport, applied consistently.
func (c *Client) Submit(ctx context.Context, sessionID string, answers []interview.Answer) error {
	var apiErr apiError

	req := c.http.R().
		SetContext(ctx).
		SetError(&apiErr)

	clips := 0
	for _, ans := range answers {
		if ans.Kind != interview.AnswerVideo || len(ans.Video) == 0 {
			continue
		}
		clips++
		req.SetMultipartField(
			ans.QuestionID,
			ans.QuestionID+clipExtension(ans.MimeType),
			ans.MimeType,
			bytes.NewReader(ans.Video),
		)
	}
	if clips > 0 {
		req.SetMultipartFormData(map[string]string{"sessionId": sessionID})
	} else {
		req.SetBody(map[string]string{"sessionId": sessionID})
	}

	resp, err := req.Post("/interview-answer/submit")
	if err != nil {
		return fmt.Errorf("backend: submit session: %w", err)
	}
	if resp.IsError() {
		c.notifyAuth(resp.StatusCode())
		return fmt.Errorf("backend: submit session: %s", errMessage(apiErr, resp.StatusCode()))
	}
	return nil
}

// FetchSummary retrieves the scoring result for a completed session.
// Returns [ErrSummaryNotReady] while the backend is still scoring.
func (c *Client) FetchSummary(ctx context.Context, sessionID string) (*interview.Summary, error) {
	var summary interview.Summary
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summary).
		SetError(&apiErr).
		SetPathParam("id", sessionID).
		Get("/interview-summary/{id}")
	if err != nil {
		c.metrics.RecordSummaryPoll(ctx, "error")
		return nil, fmt.Errorf("backend: fetch summary: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound, resp.StatusCode() == http.StatusAccepted:
		c.metrics.RecordSummaryPoll(ctx, "pending")
		return nil, ErrSummaryNotReady
	case resp.IsError():
		c.notifyAuth(resp.StatusCode())
		c.metrics.RecordSummaryPoll(ctx, "error")
		return nil, fmt.Errorf("backend: fetch summary: %s", errMessage(apiErr, resp.StatusCode()))
	}

	c.metrics.RecordSummaryPoll(ctx, "ok")
	return &summary, nil
}

// WaitForSummary polls the summary until scoring completes, at the same
// cadence the original UI used. Cancelling ctx stops the polling; any error
// other than "not ready" is permanent.
func (c *Client) WaitForSummary(ctx context.Context, sessionID string) (*interview.Summary, error) {
	bo := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)

	return backoff.RetryWithData(func() (*interview.Summary, error) {
		summary, err := c.FetchSummary(ctx, sessionID)
		if err == nil {
			return summary, nil
		}
		if errors.Is(err, ErrSummaryNotReady) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, bo)
}

// Ping reports whether the backend answers HTTP at all. Any response,
// including an error status, counts as reachable; only transport failures
// are errors. Used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.http.R().SetContext(ctx).Get("/"); err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	return nil
}

// notifyAuth broadcasts an AuthEvent for credential-related rejections.
func (c *Client) notifyAuth(status int) {
	if c.authBus == nil {
		return
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.authBus.Publish(AuthEvent{Status: status})
	}
}

// errMessage prefers the backend's message body, falling back to the
// status code.
func errMessage(apiErr apiError, status int) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}

// clipExtension maps a clip mime type to a filename extension for the
// multipart part name.
func clipExtension(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	default:
		return ".webm"
	}
}
