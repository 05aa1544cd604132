// Package env binds values into a nested, dotted-path namespace.
package env

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

var (
	ErrEmptyPath    = errors.New("env: empty path")
	ErrNotNamespace = errors.New("env: path segment is not a namespace")
)

// Env is safe for concurrent use.
type Env struct {
	mu   sync.RWMutex
	root map[string]any
}

func New() *Env {
	return &Env{root: make(map[string]any)}
}

// Define assigns value at path, creating intermediate namespaces as needed.
// "a.b.c" creates a and b when they do not exist yet.
func (e *Env) Define(path string, value any) error {
	keys, err := split(path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.root
	for i, key := range keys[:len(keys)-1] {
		next, ok := ns[key]
		if !ok {
			child := make(map[string]any)
			ns[key] = child
			ns = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotNamespace, strings.Join(keys[:i+1], "."))
		}
		ns = child
	}
	ns[keys[len(keys)-1]] = value
	return nil
}

// Lookup reads the value bound at path.
func (e *Env) Lookup(path string) (any, bool) {
	keys, err := split(path)
	if err != nil {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var current any = e.root
	for _, key := range keys {
		ns, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = ns[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// Root returns a shallow copy of the top-level namespace.
func (e *Env) Root() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.root)
}

func split(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPath, path)
		}
	}
	return keys, nil
}
