// Package googletx is a minimal client for the public Google Translate
// endpoint (translate.googleapis.com, client=gtx). It is the pipeline's
// bulk translator: fast, keyless, and suitable for non-clinical text only.
package googletx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultEndpoint is the public translate endpoint.
const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithEndpoint overrides the default translate endpoint. Useful for tests
// and for self-hosted compatible gateways.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client calls the bulk translation endpoint. Safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client with the default endpoint and a 15 second timeout.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Translate renders text into the target language, auto-detecting the
// source. Returns an error for transport failures, non-200 responses, and
// unparseable payloads; the caller decides how to degrade.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if target == "" {
		return "", errors.New("googletx: target language must not be empty")
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("googletx: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("googletx: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("googletx: endpoint returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("googletx: read response body: %w", err)
	}

	return parseResponse(data)
}

// parseResponse extracts the translated text from the endpoint's nested
// array payload: [[["translated","original",...],...],...]. Long inputs are
// split into multiple segments that must be concatenated.
func parseResponse(data []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("googletx: parse response: %w", err)
	}
	if len(payload) == 0 {
		return "", errors.New("googletx: empty response payload")
	}

	segments, ok := payload[0].([]any)
	if !ok {
		return "", errors.New("googletx: unexpected response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}

	out := b.String()
	if out == "" {
		return "", errors.New("googletx: no translated text in response")
	}
	return out, nil
}
