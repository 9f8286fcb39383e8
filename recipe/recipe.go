package recipe

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/validation"
)

// Recipe is a YAML document that wires registered units into a pipeline.
type Recipe struct {
	// Name identifies the recipe in the catalog and in `recipe:` includes.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Params are bound to the root node.
	Params map[string]any `yaml:"params,omitempty"`
	Root   Node           `yaml:"root"`

	// Path is the file the recipe was read from, if any.
	Path string `yaml:"-"`
}

// Node is one element of the pipeline tree. Exactly one kind field is set;
// the decorator fields wrap whatever the kind builds.
type Node struct {
	Unit        string      `yaml:"unit,omitempty"`
	Passthrough bool        `yaml:"passthrough,omitempty"`
	Recipe      string      `yaml:"recipe,omitempty"`
	Sequence    []Node      `yaml:"sequence,omitempty"`
	Parallel    []KeyedNode `yaml:"parallel,omitempty"`
	Assign      []KeyedNode `yaml:"assign,omitempty"`
	Branch      *BranchNode `yaml:"branch,omitempty"`
	Each        *Node       `yaml:"each,omitempty"`

	// Decorators, applied inside-out in this order.
	Params         map[string]any   `yaml:"params,omitempty"`
	Bulkhead       *BulkheadPolicy  `yaml:"bulkhead,omitempty"`
	RateLimit      *RateLimitPolicy `yaml:"rate_limit,omitempty"`
	CircuitBreaker *BreakerPolicy   `yaml:"circuit_breaker,omitempty"`
	Retry          *RetryPolicy     `yaml:"retry,omitempty"`
	Timeout        string           `yaml:"timeout,omitempty"`
	Fallbacks      []Node           `yaml:"fallbacks,omitempty"`
}

// KeyedNode is a parallel or assign branch.
type KeyedNode struct {
	Key  string `yaml:"key"`
	Node `yaml:",inline"`
}

// BranchNode routes to the first case whose predicate holds.
type BranchNode struct {
	Cases   []CaseNode `yaml:"cases"`
	Default *Node      `yaml:"default"`
}

// CaseNode pairs a predicate expression ("name" or "name:arg") with a node.
type CaseNode struct {
	When string `yaml:"when"`
	Then Node   `yaml:"then"`
}

// RetryPolicy configures the retry decorator.
type RetryPolicy struct {
	MaxAttempts   int            `yaml:"max_attempts"`
	Params        map[string]any `yaml:"params,omitempty"`
	Backoff       string         `yaml:"backoff,omitempty"`
	MaxBackoff    string         `yaml:"max_backoff,omitempty"`
	BackoffFactor float64        `yaml:"backoff_factor,omitempty"`
}

// BreakerPolicy configures a circuit breaker around the node.
type BreakerPolicy struct {
	MaxFailures      int    `yaml:"max_failures"`
	ResetTimeout     string `yaml:"reset_timeout,omitempty"`
	HalfOpenMaxCalls int    `yaml:"half_open_max_calls,omitempty"`
}

// BulkheadPolicy caps concurrent calls of the node.
type BulkheadPolicy struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	MaxWait       string `yaml:"max_wait,omitempty"`
}

// RateLimitPolicy admits calls of the node at a steady rate per second.
type RateLimitPolicy struct {
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst,omitempty"`
	MaxWait string  `yaml:"max_wait,omitempty"`
}

// Node kinds.
const (
	KindUnit        = "unit"
	KindPassthrough = "passthrough"
	KindRecipe      = "recipe"
	KindSequence    = "sequence"
	KindParallel    = "parallel"
	KindAssign      = "assign"
	KindBranch      = "branch"
	KindEach        = "each"
)

// Kinds returns the kind fields that are set on n.
func (n *Node) Kinds() []string {
	var kinds []string
	if n.Unit != "" {
		kinds = append(kinds, KindUnit)
	}
	if n.Passthrough {
		kinds = append(kinds, KindPassthrough)
	}
	if n.Recipe != "" {
		kinds = append(kinds, KindRecipe)
	}
	if len(n.Sequence) > 0 {
		kinds = append(kinds, KindSequence)
	}
	if len(n.Parallel) > 0 {
		kinds = append(kinds, KindParallel)
	}
	if len(n.Assign) > 0 {
		kinds = append(kinds, KindAssign)
	}
	if n.Branch != nil {
		kinds = append(kinds, KindBranch)
	}
	if n.Each != nil {
		kinds = append(kinds, KindEach)
	}
	return kinds
}

// Kind returns the node's kind, or "" unless exactly one is set.
func (n *Node) Kind() string {
	kinds := n.Kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Parse decodes and validates a recipe. Unknown fields are rejected.
func Parse(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, apperrors.InvalidInput("recipe", err.Error()).WithCause(err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseFile reads and parses the recipe at path.
func ParseFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: reading %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("recipe: parsing %s: %w", path, err)
	}
	r.Path = path
	return r, nil
}

const namePattern = `^[a-z0-9][a-z0-9_.-]*$`

// Validate checks the whole tree and reports every problem at once.
func (r *Recipe) Validate() error {
	v := validation.New()
	v.Required("name", r.Name).
		Pattern("name", r.Name, namePattern).
		MaxLength("description", r.Description, 500)
	validateNode(v, "root", &r.Root)
	if appErr := v.Validate(); appErr != nil {
		return appErr.WithDetail("recipe", r.Name)
	}
	return nil
}

func validateNode(v *validation.Validator, path string, n *Node) {
	kinds := n.Kinds()
	switch len(kinds) {
	case 0:
		v.AddError(path, "exactly one node kind is required")
	case 1:
	default:
		v.AddError(path, fmt.Sprintf("exactly one node kind is allowed, got %v", kinds))
	}

	for i := range n.Sequence {
		validateNode(v, fmt.Sprintf("%s.sequence[%d]", path, i), &n.Sequence[i])
	}
	validateKeyed(v, path+".parallel", n.Parallel)
	validateKeyed(v, path+".assign", n.Assign)
	if n.Branch != nil {
		bp := path + ".branch"
		v.Custom(len(n.Branch.Cases) > 0, bp+".cases", "at least one case is required")
		for i := range n.Branch.Cases {
			c := &n.Branch.Cases[i]
			cp := fmt.Sprintf("%s.cases[%d]", bp, i)
			v.Required(cp+".when", c.When)
			validateNode(v, cp+".then", &c.Then)
		}
		if n.Branch.Default == nil {
			v.AddError(bp+".default", "a default node is required")
		} else {
			validateNode(v, bp+".default", n.Branch.Default)
		}
	}
	if n.Each != nil {
		validateNode(v, path+".each", n.Each)
	}

	if n.Retry != nil {
		rp := path + ".retry"
		v.Min(rp+".max_attempts", n.Retry.MaxAttempts, 1).
			Duration(rp+".backoff", n.Retry.Backoff).
			Duration(rp+".max_backoff", n.Retry.MaxBackoff).
			Custom(n.Retry.BackoffFactor >= 0, rp+".backoff_factor", "must not be negative")
	}
	if n.CircuitBreaker != nil {
		bp := path + ".circuit_breaker"
		v.Min(bp+".max_failures", n.CircuitBreaker.MaxFailures, 1).
			Duration(bp+".reset_timeout", n.CircuitBreaker.ResetTimeout)
	}
	if n.Bulkhead != nil {
		bp := path + ".bulkhead"
		v.Min(bp+".max_concurrent", n.Bulkhead.MaxConcurrent, 1).
			Duration(bp+".max_wait", n.Bulkhead.MaxWait)
	}
	if n.RateLimit != nil {
		rp := path + ".rate_limit"
		v.Custom(n.RateLimit.Rate > 0, rp+".rate", "must be greater than 0").
			Custom(n.RateLimit.Burst >= 0, rp+".burst", "must not be negative").
			Duration(rp+".max_wait", n.RateLimit.MaxWait)
	}
	v.Duration(path+".timeout", n.Timeout)
	for i := range n.Fallbacks {
		validateNode(v, fmt.Sprintf("%s.fallbacks[%d]", path, i), &n.Fallbacks[i])
	}
}

func validateKeyed(v *validation.Validator, path string, nodes []KeyedNode) {
	seen := make(map[string]bool, len(nodes))
	for i := range nodes {
		kp := fmt.Sprintf("%s[%d]", path, i)
		key := nodes[i].Key
		v.Required(kp+".key", key)
		if key != "" && seen[key] {
			v.AddError(kp+".key", fmt.Sprintf("duplicate key %q", key))
		}
		seen[key] = true
		validateNode(v, kp, &nodes[i].Node)
	}
}

// parseDuration parses an already validated optional duration.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}
