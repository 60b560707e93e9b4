package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Is lets callers match status classes with errors.Is
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// ResponseInterceptor observes every API response before the caller sees it
type ResponseInterceptor func(resp *http.Response)

// Client represents an HTTP client for the painel API
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.RWMutex
	headers      http.Header
	interceptors map[int]ResponseInterceptor
	nextID       int
}

// New creates a new API client for baseURL (e.g. https://bi.example.com)
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:      make(http.Header),
		interceptors: make(map[int]ResponseInterceptor),
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the API base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Origin returns scheme://host[:port] of the base URL, the scope for the
// persisted token and the logout channel.
func Origin(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q: missing host", baseURL)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// SetDefaultHeader sets a header sent with every API request
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	c.headers.Set(key, value)
	c.mu.Unlock()
}

// DeleteDefaultHeader removes a default header entirely
func (c *Client) DeleteDefaultHeader(key string) {
	c.mu.Lock()
	c.headers.Del(key)
	c.mu.Unlock()
}

// DefaultHeader returns a default header and whether it is set
func (c *Client) DefaultHeader(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values, ok := c.headers[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// AddResponseInterceptor registers fn and returns a func that removes it
func (c *Client) AddResponseInterceptor(fn func(resp *http.Response)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.interceptors[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.interceptors, id)
			c.mu.Unlock()
		})
	}
}

// RequestToken performs the OAuth2 password grant against /token. The
// credentials travel form-encoded; interceptors and default headers are not
// applied to this request.
func (c *Client) RequestToken(ctx context.Context, username, password string) (string, error) {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &APIError{StatusCode: rerr.Response.StatusCode, Message: errorMessage(rerr.Body)}
		}
		return "", fmt.Errorf("failed to request token: %w", err)
	}

	return tok.AccessToken, nil
}

// do sends an API request carrying the default headers, runs the response
// interceptors and decodes a JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.intercept(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// intercept runs interceptors outside the lock; they may change default headers
func (c *Client) intercept(resp *http.Response) {
	c.mu.RLock()
	fns := make([]ResponseInterceptor, 0, len(c.interceptors))
	for _, fn := range c.interceptors {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(resp)
	}
}

// errorMessage pulls "detail" or "error" out of a JSON error body
func errorMessage(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
