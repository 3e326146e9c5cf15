package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
)

const (
	// UserAgent is sent with every request.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second

	maxErrorBody = 500
)

// retryStatus is the set of transient statuses worth another attempt.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options configures a Client. Zero values take the defaults.
type Options struct {
	RequestsPerSecond float64
	MaxRetries        int
	Backoff           time.Duration
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client is an HTTP client that paces requests, retries transient failures
// and bounds every attempt with a timeout.
type Client struct {
	http       *http.Client
	interval   time.Duration
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	log        *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		http:       opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		timeout:    opts.Timeout,
		log:        logger.OrNop(opts.Logger).Named("transport"),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond > 0 {
		c.interval = time.Duration(float64(time.Second) / opts.RequestsPerSecond)
	}
	return c
}

// Request describes one logical call. Body is replayed on every retry.
type Request struct {
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Username string
	Password string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Check returns a provider error for non-2xx responses.
func (r *Response) Check(op string) error {
	if r.OK() {
		return nil
	}
	body := string(r.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return apperrors.ProviderStatus(op, r.StatusCode, body)
}

// Do executes req with pacing and retries. Transient statuses that survive
// every retry are returned as a normal Response; callers use Check.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			if err := c.wait(ctx); err != nil {
				return nil, err
			}
		} else {
			delay := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt-1)))
			if err := Sleep(ctx, delay); err != nil {
				return nil, err
			}
			c.mark()
		}

		resp, err := c.once(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				c.log.Debug("request failed, retrying",
					zap.String("url", req.URL), zap.Int("attempt", attempt+1), zap.Error(err))
				continue
			}
			return nil, apperrors.Provider(req.Method+" "+req.URL, err)
		}

		if !retryStatus[resp.StatusCode] || attempt >= c.maxRetries {
			return resp, nil
		}
		c.log.Debug("transient status, retrying",
			zap.String("url", req.URL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
	}
}

// Fetch performs a GET and returns the body as text.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return "", err
	}
	if err := resp.Check("GET " + url); err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// PostJSON marshals payload and posts it with the given headers.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: h, Body: body})
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	}
	if req.Username != "" {
		httpReq.SetBasicAuth(req.Username, req.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
	}, nil
}

// wait blocks until the minimum interval since the previous request has passed.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	next := time.Now()
	if !c.lastRequest.IsZero() && c.interval > 0 {
		if earliest := c.lastRequest.Add(c.interval); earliest.After(next) {
			next = earliest
		}
	}
	c.lastRequest = next
	c.mu.Unlock()

	if delay := time.Until(next); delay > 0 {
		c.log.Debug("rate limiting", zap.Duration("wait", delay))
		return Sleep(ctx, delay)
	}
	return nil
}

func (c *Client) mark() {
	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
