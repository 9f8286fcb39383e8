package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/recipe"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/validation"
)

// HeaderRunID carries the ID of the run a response belongs to.
const HeaderRunID = "X-Run-Id"

// Recipes is the catalog the recipe routes serve.
type Recipes interface {
	Get(name string) (runnable.Unit[any, any], error)
	List() []recipe.Summary
}

// InvokeRequest is the body of the invoke and stream routes.
type InvokeRequest struct {
	Input  any            `json:"input"`
	Params map[string]any `json:"params"`
}

// BatchRequest is the body of the batch route.
type BatchRequest struct {
	Inputs          []any          `json:"inputs" validate:"required,min=1"`
	Params          map[string]any `json:"params"`
	MaxConcurrency  int            `json:"max_concurrency" validate:"gte=0"`
	ContinueOnError bool           `json:"continue_on_error"`
}

// InvokeResult is returned by the invoke route and as the final stream event.
type InvokeResult struct {
	Recipe string `json:"recipe"`
	RunID  string `json:"run_id"`
	Output any    `json:"output"`
}

// BatchResult is returned by the batch route. Errors is set only when some
// items failed, with a nil entry for every item that succeeded.
type BatchResult struct {
	Recipe  string                 `json:"recipe"`
	RunID   string                 `json:"run_id"`
	Outputs []any                  `json:"outputs"`
	Errors  []*apperrors.ErrorBody `json:"errors,omitempty"`
}

// RecipeAPI serves the recipe catalog over HTTP.
type RecipeAPI struct {
	recipes        Recipes
	log            *logger.Logger
	maxConcurrency int
}

// NewRecipeAPI creates the handlers. maxConcurrency applies to batch
// requests that do not set their own.
func NewRecipeAPI(recipes Recipes, log *logger.Logger, maxConcurrency int) *RecipeAPI {
	if log == nil {
		log = logger.NewNop()
	}
	return &RecipeAPI{recipes: recipes, log: log.WithComponent("api"), maxConcurrency: maxConcurrency}
}

// Register mounts the routes under /v1/recipes.
func (a *RecipeAPI) Register(r gin.IRouter) {
	g := r.Group("/v1/recipes")
	g.GET("", a.list)
	g.POST("/:name/invoke", a.invoke)
	g.POST("/:name/batch", a.batch)
	g.POST("/:name/stream", a.stream)
}

func (a *RecipeAPI) list(c *gin.Context) {
	RespondOK(c, a.recipes.List())
}

// start resolves the recipe and tags the request context with a new run ID.
func (a *RecipeAPI) start(c *gin.Context) (runnable.Unit[any, any], context.Context, string, error) {
	u, err := a.recipes.Get(c.Param("name"))
	if err != nil {
		return nil, nil, "", err
	}
	runID := uuid.NewString()
	c.Header(HeaderRunID, runID)
	ctx := logger.ContextWithRunID(c.Request.Context(), runID)
	return u, ctx, runID, nil
}

// bind decodes an optional JSON body into req and validates it.
func bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.InvalidInput("body", err.Error()).WithCause(err)
	}
	return validation.Validate(req)
}

func (a *RecipeAPI) invoke(c *gin.Context) {
	var req InvokeRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	u, ctx, runID, err := a.start(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out, err := u.Invoke(ctx, req.Input, runnable.WithParams(req.Params))
	if err != nil {
		a.log.WithContext(ctx).Warn("invoke failed", logger.ErrorFields(u.Name(), err))
		RespondWithError(c, err)
		return
	}
	RespondOK(c, InvokeResult{Recipe: u.Name(), RunID: runID, Output: out})
}

func (a *RecipeAPI) batch(c *gin.Context) {
	var req BatchRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	u, ctx, runID, err := a.start(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	limit := req.MaxConcurrency
	if limit == 0 {
		limit = a.maxConcurrency
	}
	opts := []runnable.Option{runnable.WithParams(req.Params), runnable.WithMaxConcurrency(limit)}
	if req.ContinueOnError {
		opts = append(opts, runnable.ContinueOnError())
	}

	outs, err := u.Batch(ctx, req.Inputs, opts...)
	result := BatchResult{Recipe: u.Name(), RunID: runID, Outputs: outs}
	var be *runnable.BatchError
	switch {
	case err == nil:
	case req.ContinueOnError && errors.As(err, &be) && len(be.Errors) == len(req.Inputs):
		result.Errors = make([]*apperrors.ErrorBody, len(be.Errors))
		for i, itemErr := range be.Errors {
			if itemErr != nil {
				_, body := errorBody(itemErr)
				result.Errors[i] = &body.Error
			}
		}
	default:
		a.log.WithContext(ctx).Warn("batch failed", logger.ErrorFields(u.Name(), err))
		RespondWithError(c, err)
		return
	}
	RespondOK(c, result)
}

// Stream events.
const (
	EventChunk  = "chunk"
	EventResult = "result"
	EventError  = "error"
)

// stream answers with server-sent events: one chunk event per streamed
// chunk, then a result or error event.
func (a *RecipeAPI) stream(c *gin.Context) {
	var req InvokeRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	u, ctx, runID, err := a.start(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var mu sync.Mutex
	send := func(event string, data any) {
		mu.Lock()
		defer mu.Unlock()
		c.SSEvent(event, data)
		c.Writer.Flush()
	}
	sink := func(ctx context.Context, chunk any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		send(EventChunk, gin.H{"chunk": chunk})
		return nil
	}

	out, err := u.Stream(ctx, req.Input, sink, runnable.WithParams(req.Params))
	if err != nil {
		a.log.WithContext(ctx).Warn("stream failed", logger.ErrorFields(u.Name(), err))
		_, body := errorBody(err)
		send(EventError, body.Error)
		return
	}
	send(EventResult, InvokeResult{Recipe: u.Name(), RunID: runID, Output: out})
}
