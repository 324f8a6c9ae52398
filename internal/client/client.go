// Package client talks to the schedule store over its REST API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/collaborator"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const DefaultTimeout = 15 * time.Second

// TransportError is a failed exchange with the store that carries no
// conflict payload. It is not retried.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return "schedule store unreachable: " + e.Message
	}
	return fmt.Sprintf("schedule store returned %d: %s", e.Status, e.Message)
}

type Client struct {
	http *resty.Client
}

var _ collaborator.Collaborator = (*Client)(nil)

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	return resp, nil
}

func failure(resp *resty.Response) *TransportError {
	var body struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode())
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &TransportError{Status: resp.StatusCode(), Message: msg}
}

// decodeList accepts a bare array or an object with a "data" array. Any
// other shape yields an empty list.
func decodeList[T any](path string, raw []byte) []T {
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			list = []T{}
		}
		return list
	}
	var env struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return env.Data
	}
	log.Warn().Str("path", path).Int("bytes", len(raw)).Msg("unexpected list response shape")
	return []T{}
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, failure(resp)
	}
	return decodeList[T](path, resp.Body()), nil
}

func (c *Client) ListLocations(ctx context.Context) ([]model.Location, error) {
	return list[model.Location](ctx, c, "/locations")
}

func (c *Client) ListDevices(ctx context.Context) ([]model.Monitor, error) {
	return list[model.Monitor](ctx, c, "/monitors")
}

func (c *Client) ListGroups(ctx context.Context) ([]model.MonitorGroup, error) {
	return list[model.MonitorGroup](ctx, c, "/groups")
}

func (c *Client) ListContents(ctx context.Context) ([]model.Content, error) {
	return list[model.Content](ctx, c, "/contents")
}

func (c *Client) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return list[model.Template](ctx, c, "/templates")
}

func (c *Client) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	return list[model.Schedule](ctx, c, "/schedules")
}

// conflictOf extracts a conflict payload from a 409 response.
func conflictOf(resp *resty.Response) (*model.ConflictResponse, bool) {
	if resp.StatusCode() != http.StatusConflict {
		return nil, false
	}
	var cr model.ConflictResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil || cr.Error == "" || len(cr.Conflicts) == 0 {
		return nil, false
	}
	return &cr, true
}

func (c *Client) CreateSchedule(ctx context.Context, s model.Schedule) (collaborator.CreateResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/schedules", s)
	if err != nil {
		return collaborator.CreateResult{}, err
	}
	if cr, ok := conflictOf(resp); ok {
		return collaborator.CreateResult{Conflict: cr}, nil
	}
	if resp.IsError() {
		return collaborator.CreateResult{}, failure(resp)
	}
	var created model.Schedule
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return collaborator.CreateResult{}, fmt.Errorf("decode created schedule: %w", err)
	}
	return collaborator.CreateResult{Schedule: &created}, nil
}

func (c *Client) BulkUpdateSchedules(ctx context.Context, schedules []model.Schedule) (*model.ConflictResponse, error) {
	resp, err := c.do(ctx, http.MethodPut, "/schedules/update", schedules)
	if err != nil {
		return nil, err
	}
	if cr, ok := conflictOf(resp); ok {
		return cr, nil
	}
	if resp.IsError() {
		return nil, failure(resp)
	}
	return nil, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id int) error {
	return c.remove(ctx, "/schedules/"+strconv.Itoa(id))
}

// PushSchedules asks the store to publish every schedule to its monitors.
func (c *Client) PushSchedules(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/schedules/push", nil)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return failure(resp)
	}
	return nil
}

func (c *Client) CreateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	return c.writeTemplate(ctx, http.MethodPost, "/templates", t)
}

func (c *Client) UpdateTemplate(ctx context.Context, id int, t model.Template) (model.Template, error) {
	return c.writeTemplate(ctx, http.MethodPut, "/templates/"+strconv.Itoa(id), t)
}

func (c *Client) DeleteTemplate(ctx context.Context, id int) error {
	return c.remove(ctx, "/templates/"+strconv.Itoa(id))
}

func (c *Client) writeTemplate(ctx context.Context, method, path string, t model.Template) (model.Template, error) {
	resp, err := c.do(ctx, method, path, t)
	if err != nil {
		return model.Template{}, err
	}
	if resp.IsError() {
		return model.Template{}, failure(resp)
	}
	var out model.Template
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return model.Template{}, fmt.Errorf("decode template: %w", err)
	}
	return out, nil
}

func (c *Client) remove(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return failure(resp)
	}
	return nil
}
