// Package fetch performs HTTP requests through the shared rate limiter and
// retries throttled and failed attempts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBase           = time.Second
	DefaultAttemptTimeout = 10 * time.Second

	// maxRetryAfter caps how long a server-provided Retry-After may stall us
	maxRetryAfter = 30 * time.Second

	maxBodySize = 16 << 20
)

var (
	// ErrThrottled means every attempt was answered with 429
	ErrThrottled = errors.New("rate limited by upstream")

	// ErrTransport means the final attempt produced no HTTP response
	ErrTransport = errors.New("transport failure")
)

// Scheduler admits one attempt at a time. *ratelimit.Scheduler implements it.
type Scheduler interface {
	Execute(ctx context.Context, task func(context.Context) error) error
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ExhaustedError is returned when retries ran out. It matches ErrThrottled or
// ErrTransport with errors.Is, as well as the last underlying error.
type ExhaustedError struct {
	URL      string
	Attempts int
	Reason   error
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: %v after %d attempts: %v", e.URL, e.Reason, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s: %v after %d attempts", e.URL, e.Reason, e.Attempts)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last != nil {
		return []error{e.Reason, e.Last}
	}
	return []error{e.Reason}
}

// Client sends requests through a Scheduler with retries.
// The zero value of each field selects its default.
type Client struct {
	HTTP           *http.Client
	Scheduler      Scheduler
	Logger         *slog.Logger
	MaxAttempts    int
	Base           time.Duration
	AttemptTimeout time.Duration

	// notify observes each scheduled retry
	notify func(attempt int, wait time.Duration, err error)
}

// NewClient creates a Client with default retry settings
func NewClient(scheduler Scheduler, logger *slog.Logger) *Client {
	return &Client{
		HTTP:      &http.Client{},
		Scheduler: scheduler,
		Logger:    logger,
	}
}

// Get fetches rawURL with the given headers
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.Do(ctx, req)
}

// Do sends req until it yields a non-429 response or attempts run out.
// Every attempt waits for admission from the Scheduler and has its own
// timeout. Requests with a body must set GetBody to be retried.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	sched := &schedule{base: c.base(), max: c.maxAttempts()}
	target := req.URL.Redacted()

	var resp *Response
	operation := func() error {
		sched.attempt++
		r, err := c.attempt(ctx, req)
		switch {
		case err != nil && ctx.Err() != nil:
			// Caller went away; nothing to retry for.
			return backoff.Permanent(ctx.Err())
		case err != nil:
			if errors.Is(err, errNotRetryable) {
				return backoff.Permanent(err)
			}
			sched.last = failTransport
			return err
		case r.StatusCode == http.StatusTooManyRequests:
			sched.last = failThrottled
			sched.retryAfter = parseRetryAfter(r.Header.Get("Retry-After"), time.Now())
			resp = r
			return errThrottledAttempt
		default:
			resp = r
			return nil
		}
	}

	notify := func(err error, wait time.Duration) {
		c.logger().Warn("retrying request",
			"url", target,
			"attempt", sched.attempt,
			"wait", wait,
			"error", err)
		if c.notify != nil {
			c.notify(sched.attempt, wait, err)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(sched, ctx), notify)
	switch {
	case err == nil:
		return resp, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, errThrottledAttempt):
		return nil, &ExhaustedError{URL: target, Attempts: sched.attempt, Reason: ErrThrottled}
	case sched.last == failTransport && !errors.Is(err, errNotRetryable):
		return nil, &ExhaustedError{URL: target, Attempts: sched.attempt, Reason: ErrTransport, Last: err}
	default:
		return nil, err
	}
}

var (
	errThrottledAttempt = errors.New("429 too many requests")
	errNotRetryable     = errors.New("request cannot be retried")
)

// attempt runs one admitted round trip and reads the whole body before the
// per-attempt deadline is released.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*Response, error) {
	var out *Response
	admitted := false
	err := c.execute(ctx, func(ctx context.Context) error {
		admitted = true
		actx, cancel := context.WithTimeout(ctx, c.attemptTimeout())
		defer cancel()

		r, err := cloneRequest(actx, req)
		if err != nil {
			return err
		}

		httpResp, err := c.httpClient().Do(r)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		out = &Response{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Header:     httpResp.Header,
			Body:       body,
		}
		return nil
	})
	if err != nil && !admitted {
		// Refused by the scheduler (closed or limiter deadline), not a network fault.
		return nil, fmt.Errorf("%w: %w", errNotRetryable, err)
	}
	return out, err
}

func (c *Client) execute(ctx context.Context, task func(context.Context) error) error {
	if c.Scheduler == nil {
		return task(ctx)
	}
	return c.Scheduler.Execute(ctx, task)
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%w: body without GetBody", errNotRetryable)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotRetryable, err)
	}
	r.Body = body
	return r, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c *Client) base() time.Duration {
	if c.Base <= 0 {
		return DefaultBase
	}
	return c.Base
}

func (c *Client) attemptTimeout() time.Duration {
	if c.AttemptTimeout <= 0 {
		return DefaultAttemptTimeout
	}
	return c.AttemptTimeout
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Zero means absent.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
