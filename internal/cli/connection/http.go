package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
)

// HeaderEOF mirrors the server's end-of-segment response header.
const HeaderEOF = "X-Apanic-EOF"

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	token   string
	tls     *tls.Config
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithRootCAs trusts the roots in cfg instead of the system pool.
func WithRootCAs(cfg *tls.Config) HTTPOption {
	return func(c *HTTPClient) {
		insecure := c.tls != nil && c.tls.InsecureSkipVerify
		c.tls = cfg.Clone()
		c.tls.InsecureSkipVerify = insecure
	}
}

// WithInsecureSkipVerify disables server certificate verification.
func WithInsecureSkipVerify() HTTPOption {
	return func(c *HTTPClient) {
		if c.tls == nil {
			c.tls = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		c.tls.InsecureSkipVerify = true //nolint:gosec
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// NewHTTPClient creates a new HTTP client. An empty token sends no
// Authorization header.
func NewHTTPClient(server, token string, opts ...HTTPOption) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tls != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = c.tls
		c.client.Transport = transport
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "apanic-cli/"+buildinfo.Version)
}

// Status fetches GET /apanic/status.
func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	resp, err := c.Get(ctx, "/apanic/status")
	if err != nil {
		return nil, err
	}
	var st Status
	if err := ParseResponse(resp, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ReadAt reads up to len(p) bytes of segment starting at off.
func (c *HTTPClient) ReadAt(ctx context.Context, segment string, p []byte, off int64) (int, bool, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(off, 10))
	q.Set("count", strconv.Itoa(len(p)))

	resp, err := c.Get(ctx, "/apanic/"+url.PathEscape(segment)+"?"+q.Encode())
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		io.Copy(io.Discard, resp.Body)
		return 0, false, ErrOutOfRange
	}
	if resp.StatusCode >= 400 {
		return 0, false, ParseResponse(resp, nil)
	}

	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	eof, _ := strconv.ParseBool(resp.Header.Get(HeaderEOF))
	return n, eof, err
}

// Download streams the whole segment. The returned size is -1 when the
// server did not announce one.
func (c *HTTPClient) Download(ctx context.Context, segment string) (io.ReadCloser, int64, error) {
	resp, err := c.Get(ctx, "/apanic/"+url.PathEscape(segment))
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode >= 400 {
		return nil, 0, ParseResponse(resp, nil)
	}
	return resp.Body, resp.ContentLength, nil
}

// Clear asks the server to erase the panic record.
func (c *HTTPClient) Clear(ctx context.Context) error {
	resp, err := c.Post(ctx, "/apanic/console", nil)
	if err != nil {
		return err
	}
	return ParseResponse(resp, nil)
}

// Trigger runs a debug capture.
func (c *HTTPClient) Trigger(ctx context.Context) (*TriggerResult, error) {
	resp, err := c.Post(ctx, "/debug/trigger", nil)
	if err != nil {
		return nil, err
	}
	var res TriggerResult
	if err := ParseResponse(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Crash asks the server to crash itself.
func (c *HTTPClient) Crash(ctx context.Context) error {
	resp, err := c.Post(ctx, "/debug/crash", nil)
	if err != nil {
		return err
	}
	return ParseResponse(resp, nil)
}

// Health holds the GET /health reply.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Health fetches GET /health.
func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	resp, err := c.Get(ctx, "/health")
	if err != nil {
		return nil, err
	}
	var h Health
	if err := ParseResponse(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Version returns the server version from GET /health.
func (c *HTTPClient) Version(ctx context.Context) (string, error) {
	h, err := c.Health(ctx)
	if err != nil {
		return "", err
	}
	return h.Version, nil
}

// MemdumpStatus fetches GET /memdump/status into target.
func (c *HTTPClient) MemdumpStatus(ctx context.Context, target any) error {
	resp, err := c.Get(ctx, "/memdump/status")
	if err != nil {
		return err
	}
	return ParseResponse(resp, target)
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// ParseResponse decodes the response envelope. On success the data field
// is decoded into target; on failure an *Error is returned.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Message != "" {
			return &Error{Code: env.Code, Message: env.Message}
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
