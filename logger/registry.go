package logger

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// components hands out one logger per component name.
var components = &componentRegistry{loggers: make(map[string]*Logger)}

type componentRegistry struct {
	mu      sync.RWMutex
	base    *Logger
	levels  map[string]zerolog.Level
	loggers map[string]*Logger
}

// Configure derives every later component logger from base and applies the
// per-component level overrides, e.g. {"engine": "debug"}. Loggers handed
// out before are forgotten. Invalid levels are ignored; Config.Validate
// reports them.
func Configure(base *Logger, levels map[string]string) {
	parsed := make(map[string]zerolog.Level, len(levels))
	for name, lvl := range levels {
		if l, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			parsed[name] = l
		}
	}
	components.mu.Lock()
	defer components.mu.Unlock()
	components.base = base
	components.levels = parsed
	components.loggers = make(map[string]*Logger)
}

// Register stores l as the logger of component name.
func Register(name string, l *Logger) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.loggers[name] = l
}

// Get returns the logger of component name. The first call for a name
// derives it from the configured base, or from the global logger, tagged
// with name and at the component's level override.
func Get(name string) *Logger {
	components.mu.RLock()
	l, ok := components.loggers[name]
	components.mu.RUnlock()
	if ok {
		return l
	}

	components.mu.Lock()
	defer components.mu.Unlock()
	if l, ok := components.loggers[name]; ok {
		return l
	}
	base := components.base
	if base == nil {
		base = GetGlobalLogger()
	}
	l = base.WithComponent(name)
	if lvl, ok := components.levels[name]; ok {
		l = l.derive(l.logger.Level(lvl))
	}
	components.loggers[name] = l
	return l
}

// Components returns the names of the component loggers handed out so far.
func Components() []string {
	components.mu.RLock()
	defer components.mu.RUnlock()
	return slices.Sorted(maps.Keys(components.loggers))
}
