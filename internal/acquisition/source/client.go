// Package source fetches raw rule-table pages from the external
// authority. Failures here are expected operating conditions; the
// pipeline treats them as a signal to fall back, never as fatal.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"go.uber.org/zap"
)

// Fetcher retrieves one URL's body. Satisfied by Client and by test
// stubs injecting failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const maxBodySize = 4 << 20

type Client struct {
	http    *http.Client
	retries int
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(retries int, timeout time.Duration, log *zap.Logger) *Client {
	if retries < 1 {
		retries = 1
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		timeout: timeout,
		log:     log.Named("acquisition.source"),
	}
}

// Fetch retrieves the URL with bounded retries and a per-attempt
// timeout. Server errors retry; client errors do not.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		body, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.log.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if !retryable {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", acqdomain.ErrFetchFailed, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", "veldtax/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}
