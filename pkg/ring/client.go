package ring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
	"ringhist/pkg/ratelimit"
	"ringhist/pkg/retry"
)

// TokenSource supplies the current API access token. Implementations refresh
// the token as needed.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed access token
type StaticToken string

// AccessToken returns the fixed token
func (t StaticToken) AccessToken(ctx context.Context) (string, error) {
	return string(t), nil
}

// Client wraps HTTP communication with the Ring API. Every request passes
// through the rate limiter and carries the session's bearer token; transient
// failures are retried with backoff.
type Client struct {
	httpClient  *http.Client
	tokens      TokenSource
	rateLimiter ratelimit.Limiter
	retryConfig *retry.Config
	userAgent   string
	baseURL     string
	logger      logger.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig overrides the retry behavior
func WithRetryConfig(cfg *retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// NewClient creates a Ring API client
func NewClient(tokens TokenSource, limiter ratelimit.Limiter, userAgent string, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tokens:      tokens,
		rateLimiter: limiter,
		retryConfig: retry.DefaultConfig(),
		userAgent:   userAgent,
		baseURL:     BaseURL,
		logger:      log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest performs a single rate-limited request and validates the status.
// The caller owns the returned body.
func (c *Client) doRequest(ctx context.Context, method, url string) (*http.Response, error) {
	c.rateLimiter.Wait()

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeAuth, "failed to obtain access token: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.DebugWithFields("sending request", map[string]interface{}{
		"method": method,
		"url":    url,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "request failed: %v", err)
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// doRequestWithRetry wraps doRequest with the client's retry policy
func (c *Client) doRequestWithRetry(ctx context.Context, method, url string) (*http.Response, error) {
	cfg := *c.retryConfig
	cfg.Context = ctx
	cfg.Logger = c.logger

	return retry.DoWithResult(func() (*http.Response, error) {
		return c.doRequest(ctx, method, url)
	}, &cfg)
}

// checkResponseStatus maps an HTTP status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication rejected",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limited by server",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("server error: %s", resp.Status),
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status: %s", resp.Status),
			Code:    resp.StatusCode,
		}
	}
}

// GetJSON fetches a URL and decodes the JSON response into v
func (c *Client) GetJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errs.Newf(errs.ErrorTypeParsing, "failed to decode response: %v", err)
	}

	return nil
}

// FetchDevices returns every history-capable device on the account
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	var devices DevicesResponse
	if err := c.GetJSON(ctx, devicesEndpoint(c.baseURL), &devices); err != nil {
		return nil, err
	}
	return devices.All(), nil
}

// FetchHistoryPage fetches one page of the device's history feed, newest
// first. olderThan is the exclusive pagination cursor; empty starts at the
// newest events.
func (c *Client) FetchHistoryPage(ctx context.Context, deviceID int64, limit int, olderThan string) ([]Event, error) {
	url := historyEndpoint(c.baseURL, deviceID, limit, olderThan)

	var events []Event
	if err := c.GetJSON(ctx, url, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// DownloadRecording streams an event's recording to the writer callback. The
// server redirects to the storage location and the redirect is followed
// transparently.
func (c *Client) DownloadRecording(ctx context.Context, eventID int64, sink func(io.Reader) error) error {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, recordingEndpoint(c.baseURL, eventID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return sink(resp.Body)
}

// RecordingURL asks the API for the recording's storage URL without
// following the redirect
func (c *Client) RecordingURL(ctx context.Context, eventID int64) (string, error) {
	var payload RecordingURLResponse
	if err := c.GetJSON(ctx, recordingURLEndpoint(c.baseURL, eventID), &payload); err != nil {
		return "", err
	}

	if payload.URL == "" {
		return "", errs.New(errs.ErrorTypeNotFound, "no recording url in response")
	}
	return payload.URL, nil
}

// FetchURL streams an arbitrary pre-signed URL to the writer callback. No
// session headers are attached; pre-signed storage URLs reject them.
func (c *Client) FetchURL(ctx context.Context, url string, sink func(io.Reader) error) error {
	c.rateLimiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Newf(errs.ErrorTypeNetwork, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	return sink(resp.Body)
}
