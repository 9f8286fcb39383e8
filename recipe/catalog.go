package recipe

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/runnable"
)

// Summary describes a catalog entry.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Path        string `json:"path,omitempty"`
}

// LoadFailure is a recipe file that could not be parsed or compiled.
type LoadFailure struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	Err  error  `json:"-"`
}

func (f LoadFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

type entry struct {
	recipe *Recipe
	unit   runnable.Unit[any, any]
}

// Catalog holds compiled recipes by name. Each recipe is compiled once, so
// its breakers, bulkheads and rate limiters are shared by every caller.
type Catalog struct {
	reg     *Registry
	log     *logger.Logger
	compile []CompileOption

	mu       sync.RWMutex
	entries  map[string]entry
	failures []LoadFailure
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCompileOptions sets the options used for every compilation.
func WithCompileOptions(opts ...CompileOption) CatalogOption {
	return func(c *Catalog) { c.compile = append(c.compile, opts...) }
}

// NewCatalog creates an empty catalog resolving units through reg.
func NewCatalog(reg *Registry, log *logger.Logger, opts ...CatalogOption) *Catalog {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Catalog{
		reg:     reg,
		log:     log.WithComponent("catalog"),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// recipeSet resolves includes against a fixed set of recipes.
type recipeSet map[string]*Recipe

func (s recipeSet) Recipe(name string) (*Recipe, error) {
	r, ok := s[name]
	if !ok {
		return nil, apperrors.NotFound("recipe", name)
	}
	return r, nil
}

// LoadDirs parses every *.yaml and *.yml file under dirs and compiles the
// recipes, which may include each other and recipes already in the catalog.
// Broken files are recorded as failures and skipped; only an unreadable
// directory is an error.
func (c *Catalog) LoadDirs(dirs ...string) error {
	parsed := make(map[string]*Recipe)
	var failures []LoadFailure

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
				return nil
			}
			r, perr := ParseFile(path)
			if perr != nil {
				failures = append(failures, LoadFailure{Path: path, Err: perr})
				return nil
			}
			if prev, dup := parsed[r.Name]; dup {
				failures = append(failures, LoadFailure{Path: path, Name: r.Name,
					Err: apperrors.AlreadyExists("recipe", r.Name).WithDetail("path", prev.Path)})
				return nil
			}
			parsed[r.Name] = r
			return nil
		})
		if err != nil {
			return fmt.Errorf("recipe: loading %s: %w", dir, err)
		}
	}

	c.mu.RLock()
	set := make(recipeSet, len(c.entries)+len(parsed))
	for name, e := range c.entries {
		set[name] = e.recipe
	}
	c.mu.RUnlock()
	maps.Copy(set, parsed)

	compiled := make(map[string]entry, len(parsed))
	for _, name := range slices.Sorted(maps.Keys(parsed)) {
		r := parsed[name]
		u, err := c.build(r, set)
		if err != nil {
			failures = append(failures, LoadFailure{Path: r.Path, Name: name, Err: err})
			continue
		}
		compiled[name] = entry{recipe: r, unit: u}
	}

	c.mu.Lock()
	for name, e := range compiled {
		if _, exists := c.entries[name]; exists {
			failures = append(failures, LoadFailure{Path: e.recipe.Path, Name: name,
				Err: apperrors.AlreadyExists("recipe", name)})
			continue
		}
		c.entries[name] = e
	}
	c.failures = append(c.failures, failures...)
	total := len(c.entries)
	c.mu.Unlock()

	for _, f := range failures {
		c.log.Warn("recipe skipped", logger.Fields("path", f.Path, logger.FieldRecipe, f.Name, logger.FieldError, f.Err.Error()))
	}
	c.log.Info("recipes loaded", logger.Fields("loaded", len(compiled), "failed", len(failures), "total", total))
	return nil
}

// Add compiles r and adds it to the catalog.
func (c *Catalog) Add(r *Recipe) error {
	if r == nil {
		return apperrors.InvalidInput("recipe", "recipe is nil")
	}
	c.mu.RLock()
	set := make(recipeSet, len(c.entries)+1)
	for name, e := range c.entries {
		set[name] = e.recipe
	}
	c.mu.RUnlock()
	set[r.Name] = r

	u, err := c.build(r, set)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[r.Name]; exists {
		return apperrors.AlreadyExists("recipe", r.Name)
	}
	c.entries[r.Name] = entry{recipe: r, unit: u}
	return nil
}

func (c *Catalog) build(r *Recipe, set recipeSet) (runnable.Unit[any, any], error) {
	opts := append(slices.Clone(c.compile), WithIncludes(set))
	return Compile(r, c.reg, opts...)
}

// Get returns the compiled unit of the named recipe.
func (c *Catalog) Get(name string) (runnable.Unit[any, any], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, apperrors.NotFound("recipe", name)
	}
	return e.unit, nil
}

// Recipe returns the parsed definition of the named recipe.
func (c *Catalog) Recipe(name string) (*Recipe, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, apperrors.NotFound("recipe", name)
	}
	return e.recipe, nil
}

// List returns summaries of all recipes sorted by name.
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Summary, 0, len(c.entries))
	for _, name := range slices.Sorted(maps.Keys(c.entries)) {
		r := c.entries[name].recipe
		out = append(out, Summary{Name: r.Name, Description: r.Description, Kind: r.Root.Kind(), Path: r.Path})
	}
	return out
}

// Failures returns the files skipped by LoadDirs.
func (c *Catalog) Failures() []LoadFailure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.failures)
}

// Len returns the number of compiled recipes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CheckHealth reports degraded when any recipe failed to load.
func (c *Catalog) CheckHealth(_ context.Context) observability.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := observability.Health{
		Name:    "recipes",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"loaded": strconv.Itoa(len(c.entries))},
	}
	if n := len(c.failures); n > 0 {
		h.Status = observability.HealthStatusDegraded
		h.Message = fmt.Sprintf("%d recipe file(s) failed to load", n)
		h.Details["failed"] = strconv.Itoa(n)
	}
	return h
}
