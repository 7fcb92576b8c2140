package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// pushPath is appended to the configured base URL.
	pushPath = "/loki/api/v1/push"

	// gzipThreshold is the minimum body size for gzip compression.
	gzipThreshold = 1024 // 1 KiB

	// maxErrorBody is the maximum number of bytes read from an error
	// response body.
	maxErrorBody = 4096

	// userAgentPrefix is the User-Agent header prefix.
	userAgentPrefix = "railscope/"
)

// HTTPError is returned when Loki answers a push with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error returns the formatted error string.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("loki: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client pushes batches to Loki. Any 2xx status is success; everything
// else comes back as an error for the caller to log. The client never
// retries: the next poll cycle is the retry mechanism, and dedup
// ensures failed batches are not re-offered.
type Client struct {
	httpClient *http.Client
	url        string
	tenantID   string
	version    string
	logger     *slog.Logger
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg Config, version string, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
		},
	}

	return &Client{
		httpClient: httpClient,
		url:        strings.TrimRight(cfg.URL, "/"),
		tenantID:   cfg.TenantID,
		version:    version,
		logger:     logger,
	}, nil
}

// Push sends one push request. Bodies above 1 KiB are gzip-compressed.
func (c *Client) Push(ctx context.Context, req PushRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("loki: marshal push request: %w", err)
	}

	var bodyReader io.Reader = bytes.NewReader(data)
	var compressed bool
	if len(data) > gzipThreshold {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return fmt.Errorf("loki: gzip compress request: %w", err)
		}
		if err := gw.Close(); err != nil {
			return fmt.Errorf("loki: gzip close: %w", err)
		}
		bodyReader = &buf
		compressed = true
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+pushPath, bodyReader)
	if err != nil {
		return fmt.Errorf("loki: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if compressed {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}
	if c.tenantID != "" {
		httpReq.Header.Set("X-Scope-OrgID", c.tenantID)
	}
	httpReq.Header.Set("User-Agent", userAgentPrefix+c.version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	c.logger.Debug("pushed batch",
		"component", "loki",
		"streams", len(req.Streams),
		"bytes", len(data),
		"compressed", compressed,
	)
	return nil
}
