package runtime

import (
	"strings"
	"sync"
)

// Registry lists every declared class in declaration order. It only grows.
type Registry struct {
	mu      sync.RWMutex
	classes []*Class
}

var defaultRegistry = &Registry{}

func (r *Registry) add(c *Class) {
	r.mu.Lock()
	r.classes = append(r.classes, c)
	r.mu.Unlock()
}

// Classes returns a snapshot of the registered classes.
func (r *Registry) Classes() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Class(nil), r.classes...)
}

// Lookup returns the most recently declared class whose name matches,
// ignoring case.
func (r *Registry) Lookup(name string) (*Class, bool) {
	for _, c := range reversed(r.Classes()) {
		if strings.EqualFold(c.Name(), name) {
			return c, true
		}
	}
	return nil, false
}

func reversed(classes []*Class) []*Class {
	for i, j := 0, len(classes)-1; i < j; i, j = i+1, j-1 {
		classes[i], classes[j] = classes[j], classes[i]
	}
	return classes
}

// Strategies returns every class declared in this process.
func Strategies() []*Class {
	return defaultRegistry.Classes()
}

// LookupStrategy finds a declared class by name.
func LookupStrategy(name string) (*Class, bool) {
	return defaultRegistry.Lookup(name)
}
