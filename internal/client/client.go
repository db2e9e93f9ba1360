// ABOUTME: Shared HTTP client for the toolbench backend API
// ABOUTME: Attaches bearer credentials, unwraps the response envelope, classifies failures

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calderhq/toolbench/internal/api"
)

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 30 * time.Second

// User-facing notification text, matched to the product's zh-CN UI strings.
const (
	msgSessionExpired = "登录已过期，请重新登录"
	msgForbidden      = "没有权限访问"
	msgNotFound       = "请求的资源不存在"
	msgServerError    = "服务器内部错误"
	msgTimeout        = "请求超时"
	msgNetworkError   = "网络连接失败"
)

// Config carries everything a Client needs. BaseURL is required; the rest
// have working defaults.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenStore
	Notify  Notifier
	Logger  *slog.Logger

	// OnSessionExpired runs once per expiry episode, after tokens are
	// cleared. The CLI uses it to tell the user to log in again.
	OnSessionExpired func()

	// ExpiryDebounce overrides the 401 debounce window. Tests shrink it.
	ExpiryDebounce time.Duration
}

// Client executes typed requests against the backend, attaching the stored
// access token and funneling every failure through one classification path.
type Client struct {
	baseURL    string
	http       *http.Client
	streamHTTP *http.Client
	tokens     TokenStore
	notify     Notifier
	logger     *slog.Logger

	expiry *expiryLatch
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryStore()
	}
	notify := cfg.Notify
	if notify == nil {
		notify = NopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.ExpiryDebounce
	if debounce <= 0 {
		debounce = expiryDebounce
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		// Streaming connections stay open indefinitely; only cancellation
		// or the server closes them.
		streamHTTP: &http.Client{},
		tokens:     tokens,
		notify:     notify,
		logger:     logger,
	}
	c.expiry = newExpiryLatch(debounce, func() {
		if err := tokens.Clear(); err != nil {
			logger.Warn("clearing tokens on session expiry", "error", err)
		}
		notify.Error(msgSessionExpired)
		if cfg.OnSessionExpired != nil {
			cfg.OnSessionExpired()
		}
	})
	return c, nil
}

// Tokens exposes the client's token store.
func (c *Client) Tokens() TokenStore { return c.tokens }

// Notifier exposes the client's notification sink.
func (c *Client) Notifier() Notifier { return c.notify }

// Get issues a GET and returns the unwrapped envelope.
func (c *Client) Get(ctx context.Context, path string) (*api.Envelope, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON body and returns the unwrapped envelope.
func (c *Client) Post(ctx context.Context, path string, body any) (*api.Envelope, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT with a JSON body and returns the unwrapped envelope.
func (c *Client) Put(ctx context.Context, path string, body any) (*api.Envelope, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH with a JSON body and returns the unwrapped envelope.
func (c *Client) Patch(ctx context.Context, path string, body any) (*api.Envelope, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE and returns the unwrapped envelope.
func (c *Client) Delete(ctx context.Context, path string) (*api.Envelope, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// GetRaw issues a GET and returns the raw response body, for endpoints that
// serve files rather than envelopes.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp.StatusCode, readEnvelope(resp.Body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

// newRequest builds a request with the JSON content type and, when an access
// token is stored, a bearer credential.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := c.tokens.Get(AccessToken); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*api.Envelope, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	env := readEnvelope(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp.StatusCode, env)
	}
	if env == nil {
		return nil, fmt.Errorf("decoding response envelope: empty or malformed body")
	}
	return env, nil
}

// statusError notifies the user according to the failure class and returns
// an APIError so the call site's own handling still fires.
func (c *Client) statusError(status int, env *api.Envelope) error {
	message := env.ErrorText(fmt.Sprintf("请求失败 (%d)", status))

	switch status {
	case http.StatusUnauthorized:
		c.expiry.fire()
	case http.StatusForbidden:
		c.notify.Error(msgForbidden)
	case http.StatusNotFound:
		c.notify.Error(msgNotFound)
	case http.StatusInternalServerError:
		c.notify.Error(msgServerError)
	default:
		c.notify.Error(message)
	}

	c.logger.Debug("request failed", "status", status, "message", message)
	return &APIError{Status: status, Message: message}
}

// transportError classifies failures where no HTTP response arrived.
func (c *Client) transportError(err error) error {
	var uerr *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &uerr) && uerr.Timeout()) {
		c.notify.Error(msgTimeout)
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.notify.Error(msgNetworkError)
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// readEnvelope best-effort decodes a response body. Returns nil when the body
// is empty or not an envelope.
func readEnvelope(body io.Reader) *api.Envelope {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return nil
	}
	var env api.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	return &env
}
