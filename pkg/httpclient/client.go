package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Backoff bounds the retries of a single logical call.
type Backoff struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

type BasicAuth struct {
	Username string
	Password string
}

type Options struct {
	Name      string
	BaseURL   string
	Timeout   time.Duration
	BasicAuth *BasicAuth
	// Backoff is read on every call so policy reloads apply immediately.
	Backoff    func() Backoff
	HTTPClient *http.Client
}

// Error is the only error a Client returns. StatusCode is zero when no
// response was received.
type Error struct {
	Client     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Client, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Client, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Client, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Client issues JSON requests and retries transport failures with
// exponential backoff. Responses are never retried, whatever their status.
type Client struct {
	name      string
	baseURL   string
	timeout   time.Duration
	basicAuth *BasicAuth
	backoff   func() Backoff
	http      *http.Client
	log       *zap.Logger
}

func New(opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	policy := opts.Backoff
	if policy == nil {
		policy = DefaultBackoff
	}
	return &Client{
		name:      opts.Name,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   timeout,
		basicAuth: opts.BasicAuth,
		backoff:   policy,
		http:      httpClient,
		log:       log.Named(opts.Name),
	}
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Client: c.name, Message: "encode request", Err: err}
		}
		payload = encoded
	}

	policy := c.backoff()
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.Multiplier = policy.Multiplier
	expo.MaxInterval = policy.MaxInterval

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return c.attempt(ctx, req, payload)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("retrying request",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		var clientErr *Error
		if errors.As(err, &clientErr) {
			return clientErr
		}
		return &Error{Client: c.name, Message: "request failed", Err: err}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Client: c.name, Message: "invalid response body", Err: err}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, backoff.Permanent(&Error{Client: c.name, Message: "build request", Err: err})
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if c.basicAuth != nil {
		httpReq.SetBasicAuth(c.basicAuth.Username, c.basicAuth.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&Error{Client: c.name, Message: "request canceled", Err: ctx.Err()})
		}
		// connection failures and per-attempt timeouts are retried
		return nil, &Error{Client: c.name, Message: "transport error", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Client: c.name, Message: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, backoff.Permanent(&Error{
			Client:     c.name,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		})
	}
	return body, nil
}
