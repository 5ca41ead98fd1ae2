package env

import (
	"os"
	"regexp"
	"strings"
	"sync"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands {{name}} and {{$ENV_VAR}} references in config values,
// each with an optional |fallback.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
	}
}

// SetWarnFunc sets a function to be called for unresolved references
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// SetVariables adds named values for {{name}} references
func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

// Resolve replaces every reference it can. A reference may carry a
// fallback after a pipe, as in {{HOST|localhost}} or {{$PORT|3001}}.
// Unknown references without one are left as-is.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		name, fallback, hasFallback := strings.Cut(expr, "|")
		name = strings.TrimSpace(name)

		if envVar, ok := strings.CutPrefix(name, "$"); ok {
			if val := os.Getenv(envVar); val != "" {
				return val
			}
			if hasFallback {
				return strings.TrimSpace(fallback)
			}
			r.warn("unresolved environment variable: $%s", envVar)
			return match
		}

		r.mu.RLock()
		val, ok := r.variables[name]
		r.mu.RUnlock()
		if ok {
			return val
		}
		if hasFallback {
			return strings.TrimSpace(fallback)
		}

		r.warn("unresolved variable: %s", name)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}
