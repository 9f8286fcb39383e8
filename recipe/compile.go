package recipe

import (
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/middleware"
	"github.com/kbukum/runkit/resilience"
	"github.com/kbukum/runkit/runnable"
)

// Includer resolves the recipes named by `recipe:` nodes.
type Includer interface {
	Recipe(name string) (*Recipe, error)
}

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	leaf           []middleware.Middleware[any, any]
	root           []middleware.Middleware[any, any]
	includes       Includer
	onRetry        func(unit string, attempt int, err error)
	defaultTimeout time.Duration
}

// WithMiddleware wraps every registered unit the recipe references.
func WithMiddleware(mws ...middleware.Middleware[any, any]) CompileOption {
	return func(o *compileOptions) { o.leaf = append(o.leaf, mws...) }
}

// WithRootMiddleware wraps the compiled recipe as a whole.
func WithRootMiddleware(mws ...middleware.Middleware[any, any]) CompileOption {
	return func(o *compileOptions) { o.root = append(o.root, mws...) }
}

// WithIncludes enables `recipe:` nodes, resolved through inc.
func WithIncludes(inc Includer) CompileOption {
	return func(o *compileOptions) { o.includes = inc }
}

// WithOnRetry is called for every retried attempt of a retry decorator.
func WithOnRetry(fn func(unit string, attempt int, err error)) CompileOption {
	return func(o *compileOptions) { o.onRetry = fn }
}

// WithDefaultTimeout bounds every call of the compiled recipe. A zero
// duration disables it.
func WithDefaultTimeout(d time.Duration) CompileOption {
	return func(o *compileOptions) { o.defaultTimeout = d }
}

// Compile builds the unit tree described by r, resolving unit names and
// predicates through reg. The result is named after the recipe.
//
// Every decorator instance (breaker, bulkhead, rate limiter) is created
// fresh, so two compilations of the same recipe share no state.
func Compile(r *Recipe, reg *Registry, opts ...CompileOption) (runnable.Unit[any, any], error) {
	if r == nil || reg == nil {
		return nil, apperrors.InvalidInput("recipe", "a recipe and a registry are required")
	}
	c := &compiler{reg: reg}
	for _, opt := range opts {
		opt(&c.opts)
	}
	u, err := c.recipe(r)
	if err != nil {
		return nil, err
	}
	if c.opts.defaultTimeout > 0 {
		u = runnable.WithTimeout(u, c.opts.defaultTimeout)
	}
	return middleware.Apply(u, c.opts.root...), nil
}

type compiler struct {
	reg   *Registry
	opts  compileOptions
	stack []string
}

func (c *compiler) recipe(r *Recipe) (runnable.Unit[any, any], error) {
	if slices.Contains(c.stack, r.Name) {
		cycle := strings.Join(append(slices.Clone(c.stack), r.Name), " -> ")
		return nil, apperrors.CompositionFailure(r.Name, "include cycle: "+cycle).WithDetail("recipe", r.Name)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c.stack = append(c.stack, r.Name)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()

	root, err := c.node("root", &r.Root)
	if err != nil {
		return nil, err
	}
	if len(r.Params) > 0 {
		root = runnable.Bind(root, runnable.Params(r.Params))
	}
	// A one-step sequence carries the recipe name without changing behavior.
	named, err := runnable.Chain(r.Name, root)
	if err != nil {
		return nil, err
	}
	return named, nil
}

func (c *compiler) node(path string, n *Node) (runnable.Unit[any, any], error) {
	u, err := c.kind(path, n)
	if err != nil {
		return nil, err
	}
	return c.decorate(path, n, u)
}

func (c *compiler) kind(path string, n *Node) (runnable.Unit[any, any], error) {
	switch n.Kind() {
	case KindUnit:
		u, ok := c.reg.Unit(n.Unit)
		if !ok {
			return nil, apperrors.NotFound("unit", n.Unit).WithDetail("path", path)
		}
		return middleware.Apply(u, c.opts.leaf...), nil

	case KindPassthrough:
		return runnable.NewPassthrough[any](), nil

	case KindRecipe:
		if c.opts.includes == nil {
			return nil, apperrors.CompositionFailure(path, "recipe includes are not enabled")
		}
		sub, err := c.opts.includes.Recipe(n.Recipe)
		if err != nil {
			return nil, atPath(path, err)
		}
		return c.recipe(sub)

	case KindSequence:
		units := make([]runnable.Unit[any, any], len(n.Sequence))
		for i := range n.Sequence {
			u, err := c.node(fmt.Sprintf("%s.sequence[%d]", path, i), &n.Sequence[i])
			if err != nil {
				return nil, err
			}
			units[i] = u
		}
		seq, err := runnable.Chain("", units...)
		if err != nil {
			return nil, atPath(path, err)
		}
		return seq, nil

	case KindParallel:
		branches := make([]runnable.KeyedUnit[any], len(n.Parallel))
		for i := range n.Parallel {
			k := &n.Parallel[i]
			u, err := c.node(fmt.Sprintf("%s.parallel[%d]", path, i), &k.Node)
			if err != nil {
				return nil, err
			}
			branches[i] = runnable.Keyed(k.Key, u)
		}
		p, err := runnable.NewParallel("", branches...)
		if err != nil {
			return nil, atPath(path, err)
		}
		return erase[any, runnable.Map](p, toAny), nil

	case KindAssign:
		fields := make([]runnable.KeyedUnit[runnable.Map], len(n.Assign))
		for i := range n.Assign {
			k := &n.Assign[i]
			u, err := c.node(fmt.Sprintf("%s.assign[%d]", path, i), &k.Node)
			if err != nil {
				return nil, err
			}
			fields[i] = runnable.Keyed(k.Key, narrow[runnable.Map](u))
		}
		a, err := runnable.NewAssign("", fields...)
		if err != nil {
			return nil, atPath(path, err)
		}
		return erase[runnable.Map, runnable.Map](a, toMap), nil

	case KindBranch:
		bp := path + ".branch"
		def, err := c.node(bp+".default", n.Branch.Default)
		if err != nil {
			return nil, err
		}
		cases := make([]runnable.Case[any, any], len(n.Branch.Cases))
		for i := range n.Branch.Cases {
			cn := &n.Branch.Cases[i]
			cp := fmt.Sprintf("%s.cases[%d]", bp, i)
			pred, err := c.reg.Predicate(cn.When)
			if err != nil {
				return nil, atPath(cp+".when", err)
			}
			then, err := c.node(cp+".then", &cn.Then)
			if err != nil {
				return nil, err
			}
			cases[i] = runnable.When(pred, then)
		}
		b, err := runnable.NewBranch("", def, cases...)
		if err != nil {
			return nil, atPath(path, err)
		}
		return b, nil

	case KindEach:
		inner, err := c.node(path+".each", n.Each)
		if err != nil {
			return nil, err
		}
		return erase[[]any, []any](runnable.NewEach(inner), toList), nil
	}
	return nil, apperrors.CompositionFailure(path, fmt.Sprintf("exactly one node kind is required, got %v", n.Kinds()))
}

// decorate applies the node's decorators inside-out: params, bulkhead,
// rate limit, circuit breaker, retry, timeout, fallbacks.
func (c *compiler) decorate(path string, n *Node, u runnable.Unit[any, any]) (runnable.Unit[any, any], error) {
	if len(n.Params) > 0 {
		u = runnable.Bind(u, runnable.Params(n.Params))
	}
	if p := n.Bulkhead; p != nil {
		b := resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          u.Name(),
			MaxConcurrent: p.MaxConcurrent,
			MaxWait:       parseDuration(p.MaxWait),
		})
		u = middleware.WithBulkhead[any, any](b)(u)
	}
	if p := n.RateLimit; p != nil {
		rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:    u.Name(),
			Rate:    p.Rate,
			Burst:   p.Burst,
			MaxWait: parseDuration(p.MaxWait),
		})
		u = middleware.WithRateLimit[any, any](rl)(u)
	}
	if p := n.CircuitBreaker; p != nil {
		cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             u.Name(),
			MaxFailures:      p.MaxFailures,
			Timeout:          parseDuration(p.ResetTimeout),
			HalfOpenMaxCalls: p.HalfOpenMaxCalls,
		})
		u = middleware.WithCircuitBreaker[any, any](cb)(u)
	}
	if p := n.Retry; p != nil {
		cfg := runnable.RetryConfig{
			MaxAttempts:   p.MaxAttempts,
			Params:        runnable.Params(p.Params),
			Backoff:       parseDuration(p.Backoff),
			MaxBackoff:    parseDuration(p.MaxBackoff),
			BackoffFactor: p.BackoffFactor,
		}
		if hook := c.opts.onRetry; hook != nil {
			name := u.Name()
			cfg.OnRetry = func(attempt int, err error) { hook(name, attempt, err) }
		}
		r, err := runnable.NewRetry(u, cfg)
		if err != nil {
			return nil, atPath(path+".retry", err)
		}
		u = r
	}
	if d := parseDuration(n.Timeout); d > 0 {
		u = runnable.WithTimeout(u, d)
	}
	if len(n.Fallbacks) > 0 {
		alts := make([]runnable.Unit[any, any], len(n.Fallbacks))
		for i := range n.Fallbacks {
			alt, err := c.node(fmt.Sprintf("%s.fallbacks[%d]", path, i), &n.Fallbacks[i])
			if err != nil {
				return nil, err
			}
			alts[i] = alt
		}
		f, err := runnable.WithFallbacks(u, alts...)
		if err != nil {
			return nil, atPath(path+".fallbacks", err)
		}
		u = f
	}
	return u, nil
}

// atPath records where in the tree a compile error happened.
func atPath(path string, err error) error {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, set := appErr.Details["path"]; !set {
		appErr.WithDetail("path", path)
	}
	return err
}
