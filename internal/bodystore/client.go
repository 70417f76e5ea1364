// Package bodystore is the HTTP client for the analytical body cache, the
// sidecar service holding raw message bodies and decoded text. The cache is
// treated as unreliable: a missing body is a nil result and an unreachable
// cache is ErrUnavailable, which callers degrade on rather than propagate.
package bodystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devonjones/cortex-gateway/internal/pkg/metrics"
)

// ErrUnavailable reports that the body cache could not be reached or did not
// answer in time.
var ErrUnavailable = errors.New("body store unavailable")

// Body is one cached message body.
type Body struct {
	GmailID  string `json:"gmail_id"`
	Raw      string `json:"raw,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SizeEst  int64  `json:"size_estimate,omitempty"`
}

// Client calls the body cache API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	batchTimeout time.Duration
}

// NewClient creates a body cache client. timeout bounds single-body calls,
// batchTimeout bounds the multi-body endpoint.
func NewClient(baseURL string, timeout, batchTimeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		batchTimeout: batchTimeout,
	}
}

// GetBody fetches one message body. Returns (nil, nil) when the cache has no
// body for the ID.
func (c *Client) GetBody(ctx context.Context, gmailID string) (*Body, error) {
	var body Body
	found, err := c.get(ctx, "/body", url.Values{"gmail_id": {gmailID}}, 0, &body)
	if err != nil || !found {
		return nil, err
	}
	return &body, nil
}

// GetBodies fetches multiple bodies in one call. IDs without a cached body
// are simply absent from the result.
func (c *Client) GetBodies(ctx context.Context, gmailIDs []string) ([]Body, error) {
	var resp struct {
		Bodies []Body `json:"bodies"`
	}
	_, err := c.get(ctx, "/bodies", url.Values{"gmail_ids": {strings.Join(gmailIDs, ",")}}, c.batchTimeout, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Bodies, nil
}

// GetMailText fetches the decoded plain text of a message. Returns ("",
// false, nil) when no text is cached.
func (c *Client) GetMailText(ctx context.Context, gmailID string) (string, bool, error) {
	var resp struct {
		Text string `json:"text"`
	}
	found, err := c.get(ctx, "/mail_text", url.Values{"gmail_id": {gmailID}}, 0, &resp)
	if err != nil || !found {
		return "", false, err
	}
	return resp.Text, true, nil
}

// Stats fetches the cache's own statistics document.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	var stats map[string]interface{}
	if _, err := c.get(ctx, "/stats", nil, 0, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Healthy reports whether the cache answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	var resp map[string]interface{}
	found, err := c.get(ctx, "/health", nil, 0, &resp)
	return err == nil && found
}

// get performs one GET round trip. A 404 answer reports found=false; any
// transport failure is folded into ErrUnavailable.
func (c *Client) get(ctx context.Context, path string, params url.Values, timeout time.Duration, out interface{}) (bool, error) {
	endpoint := strings.TrimPrefix(path, "/")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BodyStoreRequests.WithLabelValues(endpoint, "unreachable").Inc()
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.BodyStoreRequests.WithLabelValues(endpoint, "miss").Inc()
		return false, nil
	case resp.StatusCode >= 500:
		metrics.BodyStoreRequests.WithLabelValues(endpoint, "error").Inc()
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.BodyStoreRequests.WithLabelValues(endpoint, "error").Inc()
		return false, fmt.Errorf("body store returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.BodyStoreRequests.WithLabelValues(endpoint, "error").Inc()
		return false, fmt.Errorf("decode body store response: %w", err)
	}

	metrics.BodyStoreRequests.WithLabelValues(endpoint, "hit").Inc()
	return true, nil
}
