package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/server"
)

// Remote is a recipe served by another runkit process. It is a
// runnable.Unit, so it can be registered and composed like a local unit.
// Server errors come back as AppErrors with their original code.
type Remote struct {
	client *Client
	name   string
	alias  string
}

var _ runnable.Unit[any, any] = (*Remote)(nil)

// As returns a copy of r reporting alias as its name. The server recipe
// it calls is unchanged.
func (r *Remote) As(alias string) *Remote {
	cp := *r
	cp.alias = alias
	return &cp
}

func (r *Remote) Name() string {
	if r.alias != "" {
		return r.alias
	}
	return r.name
}

func (r *Remote) Invoke(ctx context.Context, in any, opts ...runnable.Option) (any, error) {
	o := runnable.NewOptions(opts...)
	var res server.InvokeResult
	req := server.InvokeRequest{Input: in, Params: o.Params}
	if err := r.client.call(ctx, http.MethodPost, recipePath(r.name, "invoke"), req, &res); err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Stream reads the server's event stream, passing every chunk to sink.
func (r *Remote) Stream(ctx context.Context, in any, sink runnable.Sink[any], opts ...runnable.Option) (any, error) {
	if sink == nil {
		return r.Invoke(ctx, in, opts...)
	}
	o := runnable.NewOptions(opts...)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	path := recipePath(r.name, "stream")
	resp, err := r.client.send(ctx, http.MethodPost, path, server.InvokeRequest{Input: in, Params: o.Params}, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, r.client.decodeError(resp.StatusCode, data)
	}

	events := newEventReader(resp.Body)
	for {
		ev, err := events.next()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Unavailable(r.client.base, fmt.Errorf("stream of %s ended without a result", r.name))
		}
		if err != nil {
			return nil, r.client.transportError(ctx, path, err)
		}

		switch ev.name {
		case server.EventChunk:
			var chunk struct {
				Chunk any `json:"chunk"`
			}
			if err := json.Unmarshal([]byte(ev.data), &chunk); err != nil {
				return nil, apperrors.Unavailable(r.client.base, fmt.Errorf("decode chunk: %w", err))
			}
			if err := sink(ctx, chunk.Chunk); err != nil {
				return nil, err
			}
		case server.EventResult:
			var res server.InvokeResult
			if err := json.Unmarshal([]byte(ev.data), &res); err != nil {
				return nil, apperrors.Unavailable(r.client.base, fmt.Errorf("decode result: %w", err))
			}
			return res.Output, nil
		case server.EventError:
			var body apperrors.ErrorBody
			if err := json.Unmarshal([]byte(ev.data), &body); err != nil || body.Code == "" {
				return nil, apperrors.Unavailable(r.client.base, fmt.Errorf("undecodable error event: %s", ev.data))
			}
			return nil, fromBody(body, 0)
		}
	}
}

// Batch sends every input in one request. With ContinueOnError the
// per-item failures come back as *runnable.BatchError.
func (r *Remote) Batch(ctx context.Context, inputs []any, opts ...runnable.Option) ([]any, error) {
	if len(inputs) == 0 {
		return []any{}, nil
	}
	o := runnable.NewOptions(opts...)
	req := server.BatchRequest{
		Inputs:          inputs,
		Params:          o.Params,
		MaxConcurrency:  o.MaxConcurrency,
		ContinueOnError: o.ContinueOnError,
	}

	var res server.BatchResult
	if err := r.client.call(ctx, http.MethodPost, recipePath(r.name, "batch"), req, &res); err != nil {
		return nil, err
	}
	if len(res.Errors) == 0 {
		return res.Outputs, nil
	}

	errs := make([]error, len(inputs))
	for i, body := range res.Errors {
		if body != nil && i < len(errs) {
			errs[i] = fromBody(*body, 0)
		}
	}
	return res.Outputs, &runnable.BatchError{Errors: errs}
}
