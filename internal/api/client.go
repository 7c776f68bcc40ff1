// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	xerrors "studio-notify/internal/pkg/errors"
	"studio-notify/internal/pkg/jwt"
)

const (
	refreshPath = "/auth/refresh"
	// refreshTimeout bounds the shared refresh call, which outlives the
	// caller that started it.
	refreshTimeout = 15 * time.Second
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a cookie
	// jar is created so the refresh cookie travels with /auth/refresh.
	HTTPClient *http.Client
	Tokens     *jwt.TokenStore
	Logger     *zap.Logger
	// OnSessionExpired is called when a token refresh fails.
	OnSessionExpired func()
}

// Client is a bearer-authenticated JSON client for the marketplace REST API.
// A 401 triggers one token refresh and one retry of the original request.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       *jwt.TokenStore
	logger       *zap.Logger
	refreshGroup singleflight.Group

	hookMu           sync.RWMutex
	onSessionExpired func()
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = jwt.NewTokenStore("")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       httpClient,
		tokens:           tokens,
		logger:           logger,
		onSessionExpired: cfg.OnSessionExpired,
	}, nil
}

// SetSessionExpiredHook replaces the hook fired on refresh failure.
func (c *Client) SetSessionExpiredHook(fn func()) {
	c.hookMu.Lock()
	c.onSessionExpired = fn
	c.hookMu.Unlock()
}

func (c *Client) sessionExpired() {
	c.hookMu.RLock()
	fn := c.onSessionExpired
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) patch(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends the request, runs the refresh-and-retry-once interceptor on 401
// and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	status, respBody, err := c.send(ctx, method, path, payload, true)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, path, payload, true)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return &Error{
			StatusCode: status,
			Method:     method,
			Path:       path,
			Message:    errorMessage(respBody),
		}
	}

	if result == nil || status == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, authenticated bool) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// refresh exchanges the refresh cookie for a new access token. Concurrent
// 401s share one refresh call. The shared call does not inherit any caller's
// cancellation: a caller that goes away stops waiting, the others still get
// the real outcome.
func (c *Client) refresh(ctx context.Context) error {
	flight := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.fetchToken(refreshCtx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-flight:
	}

	if res.Err == nil {
		c.logger.Debug("access token refreshed", zap.Bool("shared", res.Shared))
		return nil
	}

	c.logger.Warn("token refresh failed, ending session", zap.Error(res.Err))
	c.sessionExpired()
	return fmt.Errorf("%w: %v", xerrors.ErrSessionExpired, res.Err)
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	status, body, err := c.send(ctx, http.MethodGet, refreshPath, nil, false)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &Error{StatusCode: status, Method: http.MethodGet, Path: refreshPath, Message: errorMessage(body)}
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling refresh response: %w", err)
	}
	token := resp.token()
	if token == "" {
		return "", fmt.Errorf("refresh response carries no access token")
	}

	c.tokens.SetToken(token)
	return token, nil
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Data        *struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (r refreshResponse) token() string {
	switch {
	case r.AccessToken != "":
		return r.AccessToken
	case r.Token != "":
		return r.Token
	case r.Data != nil:
		return r.Data.AccessToken
	}
	return ""
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
