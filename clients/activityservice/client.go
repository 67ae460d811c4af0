// Package activityservice provides a client for the activity-signup HTTP API.
//
// The service exposes four operations: listing the roster, signing a
// participant up, unregistering a participant and a credential probe that
// reuses the roster endpoint with a basic authentication header.
//
// Example usage:
//
//	client, err := activityservice.New("http://localhost:8000",
//		activityservice.WithLogger(logger))
//	roster, err := client.ListActivities(ctx)
//	msg, err := client.Signup(ctx, "Chess Club", "michael@mergington.edu")
package activityservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/signupdesk/metrics"
)

const (
	defaultTimeout = 10 * time.Second

	opList       = "list"
	opSignup     = "signup"
	opUnregister = "unregister"
	opVerify     = "verify"
)

var errNullRoster = errors.New("decoding roster: body is null")

// Client talks to an ActivityService instance.
type Client struct {
	Host     string
	Logger   *slog.Logger
	client   *http.Client
	requests metrics.CounterVec
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.Logger = logger
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.client = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.client.Timeout = d
		return nil
	}
}

// WithMetricsRegistry counts requests by operation and outcome.
func WithMetricsRegistry(reg metrics.Registry) Option {
	return func(c *Client) error {
		vec, err := reg.NewCounterVec(prometheus.CounterOpts{
			Name: "activityservice_requests_total",
			Help: "Requests sent to the activity service by operation and outcome.",
		}, []string{"operation", "outcome"})
		if err != nil {
			return fmt.Errorf("registering request counter: %w", err)
		}
		c.requests = vec
		return nil
	}
}

// New creates a Client for the service at host. The host must include the
// scheme, e.g. "http://localhost:8000".
func New(host string, opts ...Option) (*Client, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("host URL must include scheme and host: %q", host)
	}

	c := &Client{
		Host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// ListActivities fetches the full roster.
func (c *Client) ListActivities(ctx context.Context) (Roster, error) {
	resp, err := c.do(ctx, opList, http.MethodGet, c.Host+"/activities", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, c.serviceError(opList, resp)
	}

	var roster Roster
	if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil {
		c.record(opList, "decode_error")
		return nil, fmt.Errorf("decoding roster: %w", err)
	}
	if roster == nil {
		c.record(opList, "decode_error")
		return nil, errNullRoster
	}
	c.record(opList, "ok")
	return roster, nil
}

// Signup registers email for the named activity and returns the service's
// confirmation text.
func (c *Client) Signup(ctx context.Context, activity, email string) (string, error) {
	return c.mutate(ctx, opSignup, http.MethodPost, participantURL(c.Host, activity, "signup", email))
}

// Unregister removes email from the named activity and returns the service's
// confirmation text.
func (c *Client) Unregister(ctx context.Context, activity, email string) (string, error) {
	return c.mutate(ctx, opUnregister, http.MethodDelete, participantURL(c.Host, activity, "unregister", email))
}

// VerifyCredentials probes the roster endpoint with a basic authentication
// header. It returns nil when the service accepts the request. Nothing about
// the credentials is retained.
func (c *Client) VerifyCredentials(ctx context.Context, username, password string) error {
	resp, err := c.do(ctx, opVerify, http.MethodGet, c.Host+"/activities", func(req *http.Request) {
		req.SetBasicAuth(username, password)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Any rejection means the credentials were refused; the body is not
	// inspected.
	if resp.StatusCode/100 != 2 {
		c.record(opVerify, "rejected")
		io.Copy(io.Discard, resp.Body)
		return &ServiceError{Operation: opVerify, StatusCode: resp.StatusCode}
	}
	io.Copy(io.Discard, resp.Body)
	c.record(opVerify, "ok")
	return nil
}

func (c *Client) mutate(ctx context.Context, op, method, target string) (string, error) {
	resp, err := c.do(ctx, op, method, target, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", c.serviceError(op, resp)
	}

	var conf confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		c.record(op, "decode_error")
		return "", fmt.Errorf("decoding %s response: %w", op, err)
	}
	c.record(op, "ok")
	return conf.Message, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, decorate func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	if decorate != nil {
		decorate(req)
	}

	c.Logger.Debug("sending request", "operation", op, "method", method, "url", req.URL.Redacted())
	resp, err := c.client.Do(req)
	if err != nil {
		c.record(op, "transport_error")
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	return resp, nil
}

// serviceError builds a ServiceError from a non-2xx response carrying a JSON
// body. The detail is taken from its "detail" field when that is a string. A
// body that is not JSON is reported as a plain error, like any other
// unreadable response.
func (c *Client) serviceError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail, err := parseDetail(body)
	if err != nil {
		c.record(op, "decode_error")
		c.Logger.Debug("unreadable error response", "operation", op, "status", resp.StatusCode, "error", err)
		return fmt.Errorf("decoding %s error response (status %d): %w", op, resp.StatusCode, err)
	}

	c.record(op, "rejected")
	svcErr := &ServiceError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Detail:     detail,
	}
	c.Logger.Debug("service rejected request", "operation", op, "status", resp.StatusCode, "detail", detail)
	return svcErr
}

// parseDetail returns the string "detail" of a JSON error body, or "" when the
// body is JSON without one.
func parseDetail(body []byte) (string, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if payload == nil {
		return "", errors.New("error body is null")
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", nil
	}
	detail, _ := obj["detail"].(string)
	return detail, nil
}

func (c *Client) record(op, outcome string) {
	if c.requests == nil {
		return
	}
	c.requests.With(prometheus.Labels{"operation": op, "outcome": outcome}).Inc()
}

// participantURL builds /activities/{name}/{action}?email={email} with the
// name and email percent-encoded.
func participantURL(host, activity, action, email string) string {
	q := url.Values{}
	q.Set("email", email)
	return host + "/activities/" + url.PathEscape(activity) + "/" + action + "?" + q.Encode()
}
