// Package gatherlysdk is the Go client for the Gatherly HTTP API. Client is
// the transport adapter: it attaches the bearer token, serializes calls,
// and classifies every failure into one of the error types below so callers
// can tell recoverable outcomes from fatal ones.
package gatherlysdk

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
)

// Client is a minimal Gatherly HTTP API client. It is safe for concurrent
// use: BaseURL and HTTPClient are immutable after construction, and the
// bearer token goes through SetToken so a session can start while calls
// are in flight.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken attaches the bearer token used on subsequent requests. An empty
// token clears the session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently attached bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Activity mirrors the API activity model. IsGoing and IsHost are never
// sent on the wire; the store computes them for the current session.
type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	City         string    `json:"city"`
	Venue        string    `json:"venue"`
	HostUsername string    `json:"host_username"`
	IsCancelled  bool      `json:"is_cancelled"`
	Attendees    []Profile `json:"attendees"`

	IsGoing bool `json:"-"`
	IsHost  bool `json:"-"`
}

type Profile struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Image       *string `json:"image,omitempty"`
}

type User struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Token       string  `json:"token"`
	Image       *string `json:"image,omitempty"`
}

// Failure classification. Validation and request errors are recoverable:
// the caller may fix input and retry. ErrUnauthorized and ErrNotFound are
// terminal for the call but harmless. ServerError is fatal for the current
// operation and must not be retried automatically.

var ErrUnauthorized = errors.New("unauthorised")
var ErrNotFound = errors.New("not found")

// ValidationError carries per-field messages for form rendering.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// RequestError is a 4xx with a single message.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string { return e.Message }

// ServerError wraps 5xx responses and transport-level failures.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status=%d body=%s", e.StatusCode, e.Body)
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// Login authenticates and returns the session user with its bearer token.
// The token is not attached to the client automatically; the caller decides
// when a session starts.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "account/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	return resp, err
}

// CurrentUser returns the authenticated user for the attached token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "account", nil, &resp)
	return resp, err
}

func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var resp []Activity
	err := c.do(ctx, http.MethodGet, "activities", nil, &resp)
	return resp, err
}

func (c *Client) GetActivity(ctx context.Context, id string) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodGet, "activities/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateActivity(ctx context.Context, a Activity) error {
	return c.do(ctx, http.MethodPost, "activities", a, nil)
}

func (c *Client) UpdateActivity(ctx context.Context, a Activity) error {
	return c.do(ctx, http.MethodPut, "activities/"+url.PathEscape(a.ID), a, nil)
}

func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "activities/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetProfile(ctx context.Context, username string) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "profiles/"+url.PathEscape(username), nil, &resp)
	return resp, err
}

func (c *Client) ToggleAttendance(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "activities/"+url.PathEscape(id)+"/attend", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return &ServerError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return classify(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// classify is the single interceptor for failure responses.
func classify(status int, body []byte) error {
	switch {
	case status == http.StatusBadRequest:
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
			return &ValidationError{Fields: eb.Errors}
		}
		return &RequestError{StatusCode: status, Message: messageOf(body)}
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return &ServerError{StatusCode: status, Body: string(body)}
	default:
		return &RequestError{StatusCode: status, Message: messageOf(body)}
	}
}

func messageOf(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return string(body)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
