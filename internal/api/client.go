// Package api talks to the JSON data server that stores tasks.
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
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/stickyboard/internal/logging"
	"github.com/nibzard/stickyboard/internal/task"
)

const (
	// DefaultBaseURL is the data server origin used when none is configured.
	DefaultBaseURL = "http://localhost:3000"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	tasksPath = "/tasks"

	// maxErrorBody limits how much of an error response is kept.
	maxErrorBody = 512
)

// ErrMalformedResponse is wrapped by errors for bodies that cannot be decoded
// or fail schema validation.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s failed %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Patch is a partial task update. Nil fields are left untouched.
type Patch struct {
	Completed *bool `json:"completed,omitempty"`
}

// Client is an HTTP client for the /tasks resource family.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListTasks returns all tasks ordered ascending by sortField.
func (c *Client) ListTasks(ctx context.Context, sortField string) ([]task.Task, error) {
	// Built by hand to keep _sort ahead of _order on the wire.
	query := "_sort=" + url.QueryEscape(sortField) + "&_order=asc"

	data, err := c.do(ctx, http.MethodGet, tasksPath, query, nil)
	if err != nil {
		return nil, err
	}
	if err := task.ValidateList(data); err != nil {
		return nil, fmt.Errorf("%w: list tasks: %w", ErrMalformedResponse, err)
	}

	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("%w: decode tasks: %w", ErrMalformedResponse, err)
	}
	return tasks, nil
}

// CreateTask posts a new task. The returned task carries the server id when
// the response includes one.
func (c *Client) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if err := task.ValidateNew(t); err != nil {
		return task.Task{}, fmt.Errorf("invalid task: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, tasksPath, "", t)
	if err != nil {
		return task.Task{}, err
	}

	created := t
	if len(bytes.TrimSpace(data)) > 0 {
		var echoed task.Task
		if err := json.Unmarshal(data, &echoed); err != nil {
			c.logger.Debug("ignoring undecodable create response", "err", err)
		} else if echoed.IsPersisted() {
			created.ID = echoed.ID
		}
	}
	return created, nil
}

// UpdateTask applies a partial update to the task with the given id.
func (c *Client) UpdateTask(ctx context.Context, id int, patch Patch) error {
	_, err := c.do(ctx, http.MethodPatch, taskPath(id), "", patch)
	return err
}

// CompleteTask marks the task with the given id completed.
func (c *Client) CompleteTask(ctx context.Context, id int) error {
	done := true
	return c.UpdateTask(ctx, id, Patch{Completed: &done})
}

// DeleteTask removes the task with the given id.
func (c *Client) DeleteTask(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, taskPath(id), "", nil)
	return err
}

func taskPath(id int) string {
	return tasksPath + "/" + strconv.Itoa(id)
}

// do sends one request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path, rawQuery string, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = rawQuery

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       excerpt(data),
		}
	}
	return data, nil
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
