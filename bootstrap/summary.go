package bootstrap

import (
	"fmt"
	"io"
	"time"

	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/recipe"
	"github.com/kbukum/runkit/server"
)

// RouteInfo is a registered HTTP route.
type RouteInfo struct {
	Method string
	Path   string
}

// Summary records what an application started with.
type Summary struct {
	serviceName     string
	version         string
	addr            string
	startupDuration time.Duration
	recipes         []recipe.Summary
	failures        []recipe.LoadFailure
	routes          []RouteInfo
}

// NewSummary creates an empty startup summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Collect snapshots the catalog and, when srv is non-nil, its address and
// routes.
func (s *Summary) Collect(catalog *recipe.Catalog, srv *server.Server) {
	if catalog != nil {
		s.recipes = catalog.List()
		s.failures = catalog.Failures()
	}
	if srv != nil {
		s.addr = srv.Addr()
		s.routes = s.routes[:0]
		for _, r := range srv.GinEngine().Routes() {
			s.routes = append(s.routes, RouteInfo{Method: r.Method, Path: r.Path})
		}
	}
}

// Recipes returns the collected recipe summaries.
func (s *Summary) Recipes() []recipe.Summary { return s.recipes }

// Routes returns the collected routes.
func (s *Summary) Routes() []RouteInfo { return s.routes }

// Log writes the summary as one structured info line, plus a warning per
// recipe that failed to load.
func (s *Summary) Log(log *logger.Logger) {
	log.Info("application ready", logger.Fields(
		"version", s.version,
		"addr", s.addr,
		"recipes", len(s.recipes),
		"failed_recipes", len(s.failures),
		"routes", len(s.routes),
		"startup_ms", s.startupDuration.Milliseconds(),
	))
	for _, f := range s.failures {
		log.Warn("recipe unavailable", logger.Fields("path", f.Path, logger.FieldError, f.Err.Error()))
	}
}

// Display prints the summary as a tree.
func (s *Summary) Display(w io.Writer) {
	fmt.Fprintf(w, "%s %s", s.serviceName, s.version)
	if s.addr != "" {
		fmt.Fprintf(w, " on %s", s.addr)
	}
	if s.startupDuration > 0 {
		fmt.Fprintf(w, " (started in %s)", s.startupDuration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nRecipes (%d)\n", len(s.recipes))
	for i, r := range s.recipes {
		fmt.Fprintf(w, "   %s %s [%s]", branch(i, len(s.recipes)), r.Name, r.Kind)
		if r.Description != "" {
			fmt.Fprintf(w, " %s", r.Description)
		}
		fmt.Fprintln(w)
	}
	if len(s.recipes) == 0 {
		fmt.Fprintln(w, "   └── none loaded")
	}

	if len(s.failures) > 0 {
		fmt.Fprintf(w, "\nFailed (%d)\n", len(s.failures))
		for i, f := range s.failures {
			fmt.Fprintf(w, "   %s %s: %v\n", branch(i, len(s.failures)), f.Path, f.Err)
		}
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s\n", branch(i, len(s.routes)), r.Method, r.Path)
		}
	}
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}
