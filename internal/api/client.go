// Package api talks to the flow-control REST backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultQueueIncrease = 20
	DefaultQueueDecrease = 15
)

// Error is a non-2xx response. Detail carries FastAPI's "detail" field when present.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Detail)
}

// ErrorText is the message to show a user for err: the backend's detail when
// err wraps an *Error that has one, else err.Error().
func ErrorText(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

type Client struct {
	http   *resty.Client
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// New builds a client for baseURL. Requests are never retried.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: rc, logger: logger}
}

// SetToken sets the bearer token sent with admin calls. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) BaseURL() string { return c.http.BaseURL }

func (c *Client) request(ctx context.Context, admin bool) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if admin {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			r.SetAuthToken(token)
		}
	}
	return r
}

func (c *Client) do(r *resty.Request, method, path string, out any) error {
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &Error{StatusCode: resp.StatusCode(), Detail: detail(resp.Body())}
		c.logger.Debug("api error response", "method", method, "path", path, "status", apiErr.StatusCode)
		return apiErr
	}
	return nil
}

// detail extracts FastAPI's error detail, which is either a string or a
// list of validation errors. Anything else is returned as trimmed text.
func detail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(env.Detail)
}

func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResponse, error) {
	var out CheckInResponse
	if err := c.do(c.request(ctx, false).SetBody(req), resty.MethodPost, "/api/queue/check-in", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, patientID string) (*QueueStatusResponse, error) {
	var out QueueStatusResponse
	if err := c.do(c.request(ctx, false), resty.MethodGet, "/api/queue/status/"+url.PathEscape(patientID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Journey(ctx context.Context, patientID string) (*JourneyResponse, error) {
	var out JourneyResponse
	if err := c.do(c.request(ctx, false), resty.MethodGet, "/api/queue/journey/"+url.PathEscape(patientID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearData asks the backend to forget the patient.
func (c *Client) ClearData(ctx context.Context, patientID string) error {
	return c.do(c.request(ctx, false), resty.MethodDelete, "/api/queue/clear/"+url.PathEscape(patientID), nil)
}

func (c *Client) Realtime(ctx context.Context) (*RealtimeResponse, error) {
	var out RealtimeResponse
	if err := c.do(c.request(ctx, true), resty.MethodGet, "/api/dashboard/realtime", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Alerts(ctx context.Context) (*AlertsResponse, error) {
	var out AlertsResponse
	if err := c.do(c.request(ctx, true), resty.MethodGet, "/api/dashboard/alerts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DailyReport(ctx context.Context) (*DailyReport, error) {
	var out DailyReport
	if err := c.do(c.request(ctx, true), resty.MethodGet, "/api/dashboard/reports/daily", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	var out MetricsSummary
	if err := c.do(c.request(ctx, true), resty.MethodGet, "/api/dashboard/metrics/summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SimulateBottleneck grows a station queue by increase (DefaultQueueIncrease when <= 0).
func (c *Client) SimulateBottleneck(ctx context.Context, station string, increase int) (SimulationResult, error) {
	if increase <= 0 {
		increase = DefaultQueueIncrease
	}
	out := SimulationResult{}
	r := c.request(ctx, true).SetQueryParam("queue_increase", strconv.Itoa(increase))
	if err := c.do(r, resty.MethodPost, "/api/dashboard/simulate/bottleneck/"+url.PathEscape(station), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveBottleneck shrinks a station queue by decrease (DefaultQueueDecrease when <= 0).
func (c *Client) ResolveBottleneck(ctx context.Context, station string, decrease int) (SimulationResult, error) {
	if decrease <= 0 {
		decrease = DefaultQueueDecrease
	}
	out := SimulationResult{}
	r := c.request(ctx, true).SetQueryParam("queue_decrease", strconv.Itoa(decrease))
	if err := c.do(r, resty.MethodPost, "/api/dashboard/simulate/resolve/"+url.PathEscape(station), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SupervisorChat asks the backend's supervisor agent a question about the
// current hospital state.
func (c *Client) SupervisorChat(ctx context.Context, req SupervisorRequest) (*SupervisorResponse, error) {
	var out SupervisorResponse
	if err := c.do(c.request(ctx, true).SetBody(req), resty.MethodPost, "/api/supervisor/chat", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(c.request(ctx, false), resty.MethodGet, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
