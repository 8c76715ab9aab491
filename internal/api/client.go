// Package api is a thin REST client for the chat backend.
package api

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

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/utils"
)

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// Client issues REST calls against a base URL such as http://host/api/v1.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New builds a client. timeout bounds every request when no HTTP client is supplied.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.OrNop(c.log)
	return c
}

// SetToken sets the bearer credential attached to every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ListChannels fetches GET /channels.
func (c *Client) ListChannels(ctx context.Context) ([]core.Channel, error) {
	var wire []proto.Channel
	if err := c.do(ctx, http.MethodGet, "/channels", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]core.Channel, 0, len(wire))
	for _, ch := range wire {
		out = append(out, ch.ToCore())
	}
	return out, nil
}

// ListMessages fetches GET /messages.
func (c *Client) ListMessages(ctx context.Context) ([]core.Message, error) {
	var wire []proto.Message
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(wire))
	for _, m := range wire {
		out = append(out, m.ToCore())
	}
	return out, nil
}

// CreateChannel posts POST /channels.
func (c *Client) CreateChannel(ctx context.Context, name string) (core.Channel, error) {
	var wire proto.Channel
	if err := c.do(ctx, http.MethodPost, "/channels", proto.CreateChannelRequest{Name: name}, &wire); err != nil {
		return core.Channel{}, err
	}
	return wire.ToCore(), nil
}

// RenameChannel issues PATCH /channels/{id}.
func (c *Client) RenameChannel(ctx context.Context, id core.ID, name string) (core.Channel, error) {
	var wire proto.Channel
	path := "/channels/" + url.PathEscape(string(id))
	if err := c.do(ctx, http.MethodPatch, path, proto.RenameChannelRequest{Name: name}, &wire); err != nil {
		return core.Channel{}, err
	}
	if wire.ID == "" {
		wire.ID = proto.ID(id)
	}
	return wire.ToCore(), nil
}

// RemoveChannel issues DELETE /channels/{id}. The response body is ignored.
func (c *Client) RemoveChannel(ctx context.Context, id core.ID) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(string(id)), nil, nil)
}

// SendMessage posts POST /messages.
func (c *Client) SendMessage(ctx context.Context, channelID core.ID, text string) (core.Message, error) {
	var wire proto.Message
	req := proto.SendMessageRequest{Text: text, ChannelID: proto.ID(channelID)}
	if err := c.do(ctx, http.MethodPost, "/messages", req, &wire); err != nil {
		return core.Message{}, err
	}
	return wire.ToCore(), nil
}

// Login exchanges credentials for a token via POST /login.
func (c *Client) Login(ctx context.Context, username, password string) (proto.AuthResponse, error) {
	return c.authenticate(ctx, "/login", username, password)
}

// Signup registers a user via POST /signup and returns its token.
func (c *Client) Signup(ctx context.Context, username, password string) (proto.AuthResponse, error) {
	return c.authenticate(ctx, "/signup", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (proto.AuthResponse, error) {
	var resp proto.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, proto.Credentials{Username: username, Password: password}, &resp); err != nil {
		return proto.AuthResponse{}, err
	}
	if resp.Token == "" {
		return proto.AuthResponse{}, fmt.Errorf("POST %s: empty token in response", path)
	}
	c.SetToken(resp.Token)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := utils.NewID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", core.ErrAuth, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body proto.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		se.Message = body.Error
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
