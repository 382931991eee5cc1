// Package client is a Go SDK for the training engine HTTP API.
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
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
)

// Client is a Go SDK for the training engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new training engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a structured error returned by the server
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ChallengeStatus is today's challenge with the day's counters
type ChallengeStatus struct {
	Challenge models.DailyChallenge `json:"challenge"`
	Counters  challenge.Counters    `json:"counters"`
}

// Health checks liveness
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// Ready checks that the state store is reachable
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/ready", nil)
	return err
}

// Tasks

// ListTasks lists the task catalog
func (c *Client) ListTasks(ctx context.Context) ([]*models.TaskDefinition, error) {
	var out struct {
		Tasks []*models.TaskDefinition `json:"tasks"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// GetTask retrieves one task definition
func (c *Client) GetTask(ctx context.Context, id string) (*models.TaskDefinition, error) {
	var def models.TaskDefinition
	if err := c.call(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Session

// StartSession starts a free-play session
func (c *Client) StartSession(ctx context.Context, taskID string, mode models.Mode) (*models.StartSessionResponse, error) {
	var out models.StartSessionResponse
	req := models.StartSessionRequest{TaskID: taskID, Mode: mode}
	if err := c.call(ctx, http.MethodPost, "/api/v1/session", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the session snapshot
func (c *Client) Status(ctx context.Context) (*models.SessionStatus, error) {
	var out models.SessionStatus
	if err := c.call(ctx, http.MethodGet, "/api/v1/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastResult returns the most recent finished result
func (c *Client) LastResult(ctx context.Context) (*models.TaskResult, error) {
	return c.result(ctx, "/api/v1/session/result", http.MethodGet)
}

// Identify reports a tapped violation
func (c *Client) Identify(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.action(ctx, "identify", models.ActionRequest{ID: id})
}

// CompleteStep reports a completed step
func (c *Client) CompleteStep(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.action(ctx, "step", models.ActionRequest{ID: id})
}

// Measure reports a meter reading
func (c *Client) Measure(ctx context.Context, id string, value float64) (*models.ActionResponse, error) {
	return c.action(ctx, "measure", models.ActionRequest{ID: id, Value: value})
}

// SelectGauge reports the chosen wire gauge
func (c *Client) SelectGauge(ctx context.Context, gauge string) (*models.ActionResponse, error) {
	return c.action(ctx, "gauge", models.ActionRequest{Gauge: gauge})
}

// RecordConnection reports a terminated connection of the given quality (0..1)
func (c *Client) RecordConnection(ctx context.Context, quality float64) (*models.ActionResponse, error) {
	return c.action(ctx, "connection", models.ActionRequest{Quality: quality})
}

// AddBonus adds procedure bonus points
func (c *Client) AddBonus(ctx context.Context, points float64) (*models.ActionResponse, error) {
	return c.action(ctx, "bonus", models.ActionRequest{Points: points})
}

// AnswerDiagnostic answers a troubleshooting question
func (c *Client) AnswerDiagnostic(ctx context.Context, id, answer string) (*models.ActionResponse, error) {
	return c.action(ctx, "diagnostic", models.ActionRequest{ID: id, Answer: answer})
}

// IdentifyFault names the suspected fault
func (c *Client) IdentifyFault(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.action(ctx, "fault/identify", models.ActionRequest{ID: id})
}

// RepairFault repairs the identified fault
func (c *Client) RepairFault(ctx context.Context) (*models.ActionResponse, error) {
	return c.action(ctx, "fault/repair", models.ActionRequest{})
}

// Hint requests guidance in learn or practice mode
func (c *Client) Hint(ctx context.Context) (*models.Feedback, error) {
	var fb models.Feedback
	if err := c.call(ctx, http.MethodPost, "/api/v1/session/hint", nil, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

// Finish ends the active session
func (c *Client) Finish(ctx context.Context) (*models.TaskResult, error) {
	return c.result(ctx, "/api/v1/session/finish", http.MethodPost)
}

// Abandon force-finishes the active session
func (c *Client) Abandon(ctx context.Context) (*models.TaskResult, error) {
	return c.result(ctx, "/api/v1/session/abandon", http.MethodPost)
}

func (c *Client) action(ctx context.Context, name string, req models.ActionRequest) (*models.ActionResponse, error) {
	var out models.ActionResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/session/"+name, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) result(ctx context.Context, path, method string) (*models.TaskResult, error) {
	var res models.TaskResult
	if err := c.call(ctx, method, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Progress

// Badges lists held badges
func (c *Client) Badges(ctx context.Context) ([]models.Badge, error) {
	var out struct {
		Badges []models.Badge `json:"badges"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/badges", nil, &out); err != nil {
		return nil, err
	}
	return out.Badges, nil
}

// Challenge returns today's challenge
func (c *Client) Challenge(ctx context.Context) (*ChallengeStatus, error) {
	var out ChallengeStatus
	if err := c.call(ctx, http.MethodGet, "/api/v1/challenge", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress returns the career record
func (c *Client) Progress(ctx context.Context) (*models.ProgressResponse, error) {
	var out models.ProgressResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Work day

// StartDay begins a new work day
func (c *Client) StartDay(ctx context.Context) (*models.DayState, error) {
	return c.day(ctx, http.MethodPost, "/api/v1/day/start")
}

// Day returns the current work day
func (c *Client) Day(ctx context.Context) (*models.DayState, error) {
	return c.day(ctx, http.MethodGet, "/api/v1/day")
}

// EndDay commits the current day
func (c *Client) EndDay(ctx context.Context) (*models.DayState, error) {
	return c.day(ctx, http.MethodPost, "/api/v1/day/end")
}

// DeclineOrder drops an order from today's queue
func (c *Client) DeclineOrder(ctx context.Context, orderID string) (*models.DayState, error) {
	return c.day(ctx, http.MethodPost, "/api/v1/day/orders/"+url.PathEscape(orderID)+"/decline")
}

// AcceptOrder starts the order's test-mode session
func (c *Client) AcceptOrder(ctx context.Context, orderID string) (*models.AcceptOrderResponse, error) {
	var out models.AcceptOrderResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/day/orders/"+url.PathEscape(orderID)+"/accept", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) day(ctx context.Context, method, path string) (*models.DayState, error) {
	var d models.DayState
	if err := c.call(ctx, method, path, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// StreamEvents delivers engine cues to fn until ctx is cancelled or the
// connection drops
func (c *Client) StreamEvents(ctx context.Context, fn func(events.Event)) error {
	u, err := url.Parse(c.baseURL + "/api/v1/events")
	if err != nil {
		return fmt.Errorf("failed to parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg struct {
			Type  string        `json:"type"`
			Event *events.Event `json:"event"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream closed: %w", err)
		}
		if msg.Type == "event" && msg.Event != nil {
			fn(*msg.Event)
		}
	}
}

// call sends body as JSON and decodes the data field of the envelope into out
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	return respBody, nil
}
