package typeref

import (
	"sort"
	"sync"
)

// Universe interns classes by qualified name so that every provider and
// every scan sees a single *Class per declared type.
type Universe struct {
	mu      sync.Mutex
	classes map[string]*Class
}

// NewUniverse returns an empty universe.
func NewUniverse() *Universe {
	return &Universe{classes: make(map[string]*Class)}
}

// Lookup returns the class registered under key (Class.String()).
func (u *Universe) Lookup(key string) (*Class, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	c, ok := u.classes[key]
	return c, ok
}

// Intern registers c unless a class with the same key exists, and returns
// the registered class together with whether c was newly added.
func (u *Universe) Intern(c *Class) (*Class, bool) {
	key := c.String()
	u.mu.Lock()
	defer u.mu.Unlock()
	if existing, ok := u.classes[key]; ok {
		return existing, false
	}
	u.classes[key] = c
	return c, true
}

// Classes returns the registered classes ordered by key.
func (u *Universe) Classes() []*Class {
	u.mu.Lock()
	keys := make([]string, 0, len(u.classes))
	for k := range u.classes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Class, len(keys))
	for i, k := range keys {
		out[i] = u.classes[k]
	}
	u.mu.Unlock()
	return out
}
