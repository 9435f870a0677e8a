// Package client provides an API client for the appliance's alias controller.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grimm.is/aliasync/internal/brand"
	"grimm.is/aliasync/internal/logging"
)

// DefaultTimeout bounds every request when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("API error (%s %s, status %d): %s", e.Method, e.Path, e.StatusCode, body)
}

// HTTPClient talks to the appliance's JSON API using key/secret basic auth.
type HTTPClient struct {
	baseURL             string
	apiKey              string
	apiSecret           string
	httpClient          *http.Client
	expectedFingerprint string
	logger              *logging.Logger
	observer            Observer

	// SeenFingerprint is the SHA-256 of the last leaf certificate presented.
	SeenFingerprint string
}

// Observer is notified of every completed or failed request. Status is 0 when
// no response was received.
type Observer interface {
	ObserveAPI(method, path string, status int, elapsed time.Duration)
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithCredentials sets the API key and secret.
func WithCredentials(key, secret string) ClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
		c.apiSecret = secret
	}
}

// WithFingerprint sets the expected server certificate fingerprint (SHA-256 hex).
func WithFingerprint(fp string) ClientOption {
	return func(c *HTTPClient) {
		c.expectedFingerprint = strings.ToLower(strings.ReplaceAll(fp, ":", ""))
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// WithObserver sets a request observer, typically the run's metrics registry.
func WithObserver(o Observer) ClientOption {
	return func(c *HTTPClient) {
		c.observer = o
	}
}

// NewHTTPClient creates a new HTTPClient for the given base URL.
// Appliances usually ship self-signed certificates, so chain verification is
// replaced by optional fingerprint pinning.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.WithComponent("client")
	}

	c.httpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // verified via VerifyPeerCertificate
			VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
				if len(rawCerts) == 0 {
					return nil
				}
				hash := sha256.Sum256(rawCerts[0])
				fingerprint := hex.EncodeToString(hash[:])
				c.SeenFingerprint = fingerprint

				if c.expectedFingerprint != "" && c.expectedFingerprint != fingerprint {
					return fmt.Errorf("certificate fingerprint mismatch: expected %s, got %s", c.expectedFingerprint, fingerprint)
				}
				return nil
			},
		},
	}

	return c
}

// BaseURL returns the appliance endpoint.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request and decodes the JSON response into result.
// It returns the raw body as well so callers can keep verbatim payloads.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body, result any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))
	if c.apiKey != "" || c.apiSecret != "" {
		req.SetBasicAuth(c.apiKey, c.apiSecret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, time.Since(start))
		return nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	elapsed := time.Since(start)
	c.observe(method, path, resp.StatusCode, elapsed)
	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode, "elapsed", elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return respBody, nil
}

func (c *HTTPClient) observe(method, path string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAPI(method, path, status, elapsed)
	}
}
