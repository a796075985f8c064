// Package backend is the client for the elevator service REST API.
//
// Calls are plain request/response; the session layer decides whether to
// wait for them. Non-2xx answers become *RejectedError so callers can tell
// "the server said no" apart from transport failures.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/liftsync/internal/fleet"
)

// DefaultBaseURL is the API root of a local backend.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultTimeout bounds a single call.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// RejectedError is a non-2xx response.
type RejectedError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// IsRejected reports whether err is (or wraps) a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// Response is the acknowledgement body of the mutating endpoints.
type Response struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Client talks to one backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type statusBody struct {
	TotalFloors int                  `json:"total_floors"`
	Elevators   []fleet.WireElevator `json:"elevators"`
}

// Status fetches the current fleet state. The returned snapshot is stamped
// with the local receive time.
func (c *Client) Status(ctx context.Context) (fleet.Snapshot, error) {
	var body statusBody
	if err := c.do(ctx, http.MethodGet, "/status", nil, &body); err != nil {
		return fleet.Snapshot{}, err
	}
	elevators, err := fleet.StatusesFromWire(body.Elevators)
	if err != nil {
		return fleet.Snapshot{}, fmt.Errorf("get status: %w", err)
	}
	return fleet.Snapshot{
		TotalFloors: body.TotalFloors,
		Elevators:   elevators,
		Timestamp:   time.Now(),
	}, nil
}

// RequestHallCall registers a hall call.
func (c *Client) RequestHallCall(ctx context.Context, floor int, dir fleet.Direction) (Response, error) {
	var resp Response
	err := c.do(ctx, http.MethodPost, "/request", map[string]any{
		"floor":     floor,
		"direction": string(dir),
	}, &resp)
	return resp, err
}

// AddStop registers a cabin request.
func (c *Client) AddStop(ctx context.Context, elevatorID, floor int) (Response, error) {
	var resp Response
	err := c.do(ctx, http.MethodPost, "/stop", map[string]any{
		"elevator_id": elevatorID,
		"floor":       floor,
	}, &resp)
	return resp, err
}

// InitializeBuilding (re)creates the building on the server.
func (c *Client) InitializeBuilding(ctx context.Context, floors, elevators int) (Response, error) {
	var resp Response
	err := c.do(ctx, http.MethodPost, "/building", map[string]any{
		"total_floors":    floors,
		"total_elevators": elevators,
	}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
		}
	}

	if msg := messageOf(data); msg != "" {
		c.logger.Info("backend", "path", path, "message", msg)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &fleet.ParseError{Reason: fmt.Sprintf("%s %s response", method, path), Err: err}
	}
	return nil
}

// errorDetail extracts the "detail" field of an error body. Validation
// errors carry a list, which is returned as raw JSON.
func errorDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}

func messageOf(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}
