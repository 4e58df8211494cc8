// Package singleinstance ensures only one instance of a unit of work runs at a time.
package singleinstance

import "sync"

// Group forms a namespace in which units of work identified by a key
// are executed with duplicate suppression.
//
// The zero value is ready to use.
type Group struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// TryDo executes fn unless another call with the same key is in flight.
// Duplicate callers return immediately with ran being false.
func (g *Group) TryDo(key string, fn func() error) (ran bool, err error) {
	g.mu.Lock()
	if _, found := g.running[key]; found {
		g.mu.Unlock()
		return false, nil
	}
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	g.running[key] = struct{}{}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.running, key)
		g.mu.Unlock()
	}()
	return true, fn()
}

// IsRunning reports whether a call with the key is in flight.
func (g *Group) IsRunning(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, found := g.running[key]
	return found
}
