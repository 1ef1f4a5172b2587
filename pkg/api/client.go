package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// AuthProvider returns the headers that authenticate a request.
type AuthProvider func(ctx context.Context) (map[string]string, error)

// TokenAuth authenticates with a personal access token.
func TokenAuth(token string) AuthProvider {
	return func(context.Context) (map[string]string, error) {
		return map[string]string{HeaderAuthorization: TokenPrefix + token}, nil
	}
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the Hooker REST API.
type Client struct {
	baseURL string
	auth    AuthProvider
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Hooker instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client authenticated with an access token.
func New(token string, opts ...Option) *Client {
	return NewWithAuth(TokenAuth(token), opts...)
}

// NewWithAuth creates a client using a custom auth provider.
func NewWithAuth(auth AuthProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		auth:    auth,
		http:    http.DefaultClient,
		logger:  log.Default().WithPrefix("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.auth != nil {
		headers, err := c.auth(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	if body != nil {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}

	c.logger.Debug("API request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, errBody)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	msg := fmt.Sprintf("API request failed with status %d", status)
	if len(body) > 0 {
		var parsed struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
			msg = parsed.Error
		} else {
			msg += ": " + string(body)
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}
