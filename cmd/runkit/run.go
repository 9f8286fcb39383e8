package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kbukum/runkit/client"
	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/server"
)

type runFlags struct {
	input           string
	params          []string
	stream          bool
	batch           bool
	continueOnError bool
	maxConcurrency  int
	remote          string
	token           string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Run a recipe once and print the result as JSON",
		Long: `Runs the named recipe from the configured recipe directories.

The input is read from --input, or from stdin when the flag is absent. It is
decoded as JSON when it parses, and used as a plain string otherwise. With
--batch the input must be a JSON array and every element is run.
With --stream every chunk is printed as its own line before the result.
With --remote the recipe runs on that runkit server instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.stream && f.batch {
				return apperrors.InvalidInput("flags", "--stream and --batch cannot be used together")
			}
			if f.remote != "" {
				c, err := client.New(client.Config{BaseURL: f.remote, Token: f.token})
				if err != nil {
					return err
				}
				return runRecipe(cmd.Context(), c.Recipe(args[0]), f, 0, cmd.InOrStdin(), cmd.OutOrStdout())
			}

			app, err := g.newApp(cmd.Context())
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				u, err := app.Catalog.Get(args[0])
				if err != nil {
					return err
				}
				return runRecipe(ctx, u, f, app.Cfg.Engine.MaxConcurrency, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Recipe input, JSON or plain text (default: stdin)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Call parameter key=value, repeatable; values are JSON or text")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "Stream chunks as they are produced")
	cmd.Flags().BoolVar(&f.batch, "batch", false, "Treat the input as a JSON array and run every element")
	cmd.Flags().BoolVar(&f.continueOnError, "continue-on-error", false, "With --batch, report per-item failures instead of stopping")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", 0, "With --batch, concurrent items (default: engine.max_concurrency)")
	cmd.Flags().StringVar(&f.remote, "remote", "", "Run on the runkit server at this base URL")
	cmd.Flags().StringVar(&f.token, "token", "", "With --remote, bearer token for the server")
	return cmd
}

func runRecipe(ctx context.Context, u runnable.Unit[any, any], f *runFlags, defaultLimit int, in io.Reader, out io.Writer) error {
	input, err := readInput(f.input, in)
	if err != nil {
		return err
	}
	params, err := parseParams(f.params)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	opts := []runnable.Option{runnable.WithParams(params)}

	fail := func(err error) error {
		_ = enc.Encode(server.ErrorResponseFor(err))
		return err
	}

	switch {
	case f.batch:
		return runBatch(ctx, u, runID, input, f, defaultLimit, opts, enc)
	case f.stream:
		sink := func(_ context.Context, chunk any) error {
			return enc.Encode(map[string]any{"chunk": chunk})
		}
		result, err := u.Stream(ctx, input, sink, opts...)
		if err != nil {
			return fail(err)
		}
		return enc.Encode(server.InvokeResult{Recipe: u.Name(), RunID: runID, Output: result})
	default:
		result, err := u.Invoke(ctx, input, opts...)
		if err != nil {
			return fail(err)
		}
		return enc.Encode(server.InvokeResult{Recipe: u.Name(), RunID: runID, Output: result})
	}
}

func runBatch(ctx context.Context, u runnable.Unit[any, any], runID string, input any, f *runFlags, defaultLimit int, opts []runnable.Option, enc *json.Encoder) error {
	inputs, ok := input.([]any)
	if !ok {
		return apperrors.InvalidInput("input", "--batch needs a JSON array")
	}
	limit := f.maxConcurrency
	if limit == 0 {
		limit = defaultLimit
	}
	opts = append(opts, runnable.WithMaxConcurrency(limit))
	if f.continueOnError {
		opts = append(opts, runnable.ContinueOnError())
	}

	outs, err := u.Batch(ctx, inputs, opts...)
	result := server.BatchResult{Recipe: u.Name(), RunID: runID, Outputs: outs}
	var be *runnable.BatchError
	switch {
	case err == nil:
	case f.continueOnError && errors.As(err, &be) && len(be.Errors) == len(inputs):
		result.Errors = make([]*apperrors.ErrorBody, len(be.Errors))
		for i, itemErr := range be.Errors {
			if itemErr != nil {
				body := server.ErrorResponseFor(itemErr)
				result.Errors[i] = &body.Error
			}
		}
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
		return fmt.Errorf("%d of %d items failed", len(be.Failed()), len(inputs))
	default:
		_ = enc.Encode(server.ErrorResponseFor(err))
		return err
	}
	return enc.Encode(result)
}

// readInput returns the decoded flag value, or stdin when flag is empty.
func readInput(flag string, in io.Reader) (any, error) {
	raw := flag
	if raw == "" && in != nil {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		raw = string(data)
	}
	return parseValue(raw), nil
}

// parseValue decodes s as JSON, falling back to the trimmed text.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func parseParams(pairs []string) (runnable.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(runnable.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, apperrors.InvalidInput("param", fmt.Sprintf("%q is not key=value", pair))
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}
