// Package multicast keeps an ordered set of listeners and fans values out to
// them.
package multicast

import "sync"

// Token identifies a registration. Registering the same function twice yields
// two distinct tokens.
type Token uint64

// Registry is safe for concurrent use. Listeners run outside the registry
// lock, so they may add or remove registrations while being notified.
type Registry[T any] struct {
	mu      sync.Mutex
	next    Token
	order   []Token
	entries map[Token]func(T)
	onEmpty func()
}

func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[Token]func(T))}
}

// OnEmpty sets a hook that runs whenever a Remove leaves the registry empty.
func (r *Registry[T]) OnEmpty(fn func()) {
	r.mu.Lock()
	r.onEmpty = fn
	r.mu.Unlock()
}

// Add appends fn and returns its token.
func (r *Registry[T]) Add(fn func(T)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[Token]func(T))
	}
	r.next++
	r.order = append(r.order, r.next)
	r.entries[r.next] = fn
	return r.next
}

// Remove drops the registration for token. It reports whether anything was
// removed; removing twice is a no-op.
func (r *Registry[T]) Remove(token Token) bool {
	r.mu.Lock()
	if _, ok := r.entries[token]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, token)
	for i, t := range r.order {
		if t == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	empty := len(r.entries) == 0
	hook := r.onEmpty
	r.mu.Unlock()

	if empty && hook != nil {
		hook()
	}
	return true
}

// Clear drops every registration without running the OnEmpty hook.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	r.order = nil
	r.entries = make(map[Token]func(T))
	r.mu.Unlock()
}

func (r *Registry[T]) IsEmpty() bool {
	return r.Len() == 0
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// NotifyAll delivers value to the listeners registered at call time, in
// registration order. A listener removed during the pass is skipped if it has
// not been reached yet; listeners added during the pass wait for the next one.
func (r *Registry[T]) NotifyAll(value T) {
	r.mu.Lock()
	snapshot := make([]Token, len(r.order))
	copy(snapshot, r.order)
	r.mu.Unlock()

	for _, token := range snapshot {
		r.mu.Lock()
		fn, ok := r.entries[token]
		r.mu.Unlock()
		if !ok {
			continue
		}
		fn(value)
	}
}
