package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"listing_ingest/internal/resilience"
)

const (
	DefaultUserAgent = "ListingIngest/1.0"
	maxBodyBytes     = 8 << 20
)

type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Page is a fetched document with its body decoded to UTF-8.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: ua,
		logger:    logger.With("component", "fetch"),
	}
}

// Get downloads url. Non-2xx responses are returned as *resilience.HTTPStatusError
// so retry policies can tell rate limiting and upstream failures apart.
func (c *Client) Get(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &resilience.HTTPStatusError{Code: resp.StatusCode, URL: url}
	}

	contentType := resp.Header.Get("Content-Type")
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		c.logger.Debug("charset detection failed, reading raw body", "url", url, "error", err)
		reader = io.LimitReader(resp.Body, maxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	c.logger.Debug("fetched page",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &Page{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(body),
	}, nil
}
