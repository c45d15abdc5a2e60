// Package client is a thin, retry-aware session against one Elasticsearch endpoint
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
	"heckel.io/escli/config"
	"heckel.io/escli/util"
)

// DefaultTimeout applies to every single call unless overridden
const DefaultTimeout = 30 * time.Second

// Client is the session shared by all operations of one run. Endpoint and
// credentials are fixed at construction; a Client is safe for concurrent use.
type Client struct {
	endpoint    config.Endpoint
	credentials config.Credentials
	es          *elasticsearch.Client
	transport   http.RoundTripper
	log         *zap.Logger
	timeout     time.Duration
	backoff     util.Backoff
	sleep       util.SleepFunc
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithTimeout sets the per-call timeout; zero disables it
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithBackoff sets the retry schedule for reads
func WithBackoff(backoff util.Backoff) Option {
	return func(c *Client) { c.backoff = backoff }
}

func WithSleep(sleep util.SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) { c.transport = transport }
}

// New creates a session for a resolved connection
func New(conn *config.Connection, opts ...Option) (*Client, error) {
	c := &Client{
		endpoint:    conn.Endpoint,
		credentials: conn.Credentials,
		transport:   http.DefaultTransport,
		log:         zap.NewNop(),
		timeout:     DefaultTimeout,
		backoff:     util.DefaultBackoff,
		sleep:       util.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	cfg := elasticsearch.Config{
		Addresses:    []string{c.endpoint.URL()},
		DisableRetry: true, // retries are owned by callers
		Transport: &loggingTransport{
			transport: c.transport,
			log:       c.log,
		},
	}
	switch c.credentials.Kind() {
	case config.APIKeyAuth:
		cfg.APIKey = c.credentials.APIKey()
	case config.BasicAuth:
		cfg.Username, cfg.Password = c.credentials.UserPassword()
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot create client for %s: %w", c.endpoint, err)
	}
	c.es = es
	return c, nil
}

func (c *Client) Endpoint() config.Endpoint {
	return c.endpoint
}

func (c *Client) URL() string {
	return c.endpoint.URL()
}

type response struct {
	status int
	body   []byte
}

// perform runs a request built by newRequest, retrying transient failures when
// retry is set. newRequest is called once per attempt so bodies can be re-read.
func (c *Client) perform(ctx context.Context, op string, retry bool, newRequest func() esapi.Request) (*response, error) {
	backoff := c.backoff
	if !retry {
		backoff.Attempts = 1
	}
	var res *response
	err := util.Retry(ctx, backoff, c.sleep, Retryable, func(attempt int) error {
		var err error
		res, err = c.do(ctx, newRequest())
		if err != nil && attempt < backoff.Attempts && Retryable(err) {
			c.log.Warn("request failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff.Delay(attempt)),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, req esapi.Request) (*response, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := req.Do(callCtx, c.es)
	if err != nil {
		return nil, classify(ctx, callCtx, err)
	}
	var body []byte
	if res.Body != nil {
		defer res.Body.Close()
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return nil, classify(ctx, callCtx, err)
		}
	}
	if res.IsError() {
		return nil, backendError(res.StatusCode, body)
	}
	return &response{status: res.StatusCode, body: body}, nil
}

// loggingTransport logs every round trip at debug level
type loggingTransport struct {
	transport http.RoundTripper
	log       *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		t.log.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, err
	}
	t.log.Debug("request complete",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))
	return resp, nil
}
