package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/arrival-board/pkg/logger"
)

var (
	// ErrStatus is wrapped by Get when the upstream answers with a non-2xx status
	ErrStatus = errors.New("unexpected status code")

	// ErrBodyTooLarge is wrapped by Get when the body exceeds maxBodyBytes
	ErrBodyTooLarge = errors.New("response body too large")
)

// maxBodyBytes bounds a single response body
const maxBodyBytes int64 = 8 << 20

// Config holds the timeouts applied to every request
type Config struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	UserAgent      string
}

// Client issues single GET requests with bounded timeouts and no retries.
// The poll scheduler provides retry-by-next-tick.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logger.Logger
}

// NewClient creates a fetch client
func NewClient(cfg Config, log *logger.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.RequestTimeout

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		userAgent: cfg.UserAgent,
		logger:    log.Named("fetch"),
	}
}

// Get fetches rawURL and returns the full body. Any network error, timeout,
// non-2xx status or short read is reported as an error with no bytes.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	safeURL := redact(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed",
			logger.String("url", safeURL),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug("Non-2xx response",
			logger.String("url", safeURL),
			logger.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		c.logger.Debug("Response body over limit",
			logger.String("url", safeURL),
			logger.Int64("limit", maxBodyBytes))
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}

	c.logger.Debug("Fetched",
		logger.String("url", safeURL),
		logger.Int("status_code", resp.StatusCode),
		logger.Int("bytes", len(body)),
		logger.Duration("duration", time.Since(start)))

	return body, nil
}

// redact hides the API key query parameter in logged URLs
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparsable url>"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
