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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/recipe"
	"github.com/kbukum/runkit/server/middleware"
)

// Client talks to a runkit server.
type Client struct {
	base    string
	http    *http.Client
	config  Config
	headers http.Header
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	if cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+cfg.Token)
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		config:  cfg,
		headers: headers,
	}, nil
}

// List returns the summaries of the server's recipes.
func (c *Client) List(ctx context.Context) ([]recipe.Summary, error) {
	var list []recipe.Summary
	if err := c.call(ctx, http.MethodGet, "/v1/recipes", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Health returns the server's health report. A down server answers 503 with
// a report, which is returned without error.
func (c *Client) Health(ctx context.Context) (*observability.ServiceHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, "/health", nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health observability.ServiceHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status == "" {
		return nil, apperrors.Unavailable(c.base, fmt.Errorf("health: unexpected response (status %d)", resp.StatusCode))
	}
	return &health, nil
}

// Recipe returns the named server recipe as a unit.
func (c *Client) Recipe(name string) *Remote {
	return &Remote{client: c, name: name}
}

// call sends a bounded JSON request and decodes the data envelope into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp.StatusCode, data)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return apperrors.Unavailable(c.base, fmt.Errorf("decode response: %w", err))
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.Unavailable(c.base, fmt.Errorf("decode response data: %w", err))
	}
	return nil
}

// send performs the request and returns the open response. Trace context
// and the run ID travel with it.
func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.InvalidInput("body", err.Error()).WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, apperrors.Unavailable(c.base, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	if runID := logger.RunIDFromContext(ctx); runID != "" {
		req.Header.Set(middleware.HeaderRequestID, runID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, path, err)
	}
	return resp, nil
}

// transportError maps a failed exchange to the error taxonomy.
func (c *Client) transportError(ctx context.Context, path string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.Timeout(c.base + path).WithCause(err)
	case errors.Is(ctx.Err(), context.Canceled):
		return apperrors.Canceled(c.base + path).WithCause(err)
	default:
		return apperrors.Unavailable(c.base, err)
	}
}

// decodeError rebuilds the AppError a server sent in its error envelope.
func (c *Client) decodeError(status int, data []byte) error {
	var envelope apperrors.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.Unavailable(c.base, fmt.Errorf("unexpected status %d: %s", status, truncate(data, 200)))
	}
	return fromBody(envelope.Error, status)
}

func fromBody(body apperrors.ErrorBody, status int) *apperrors.AppError {
	return &apperrors.AppError{
		Code:       body.Code,
		Message:    body.Message,
		Retryable:  body.Retryable,
		HTTPStatus: status,
		Details:    body.Details,
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}

func recipePath(name, action string) string {
	return "/v1/recipes/" + url.PathEscape(name) + "/" + action
}
