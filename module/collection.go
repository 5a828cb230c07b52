package module

import (
	"fmt"
	"strings"
)

// Collection is an insertion-ordered set of modules of one kind, keyed by
// feature name (or slug for functions).
type Collection struct {
	kind  Kind
	order []string
	byKey map[string]*Internal
}

// BuildCollection folds modules into a collection. A repeated key is an
// error; there is no last-write-wins.
func BuildCollection(kind Kind, modules []*Internal) (*Collection, error) {
	c := &Collection{
		kind:  kind,
		order: make([]string, 0, len(modules)),
		byKey: make(map[string]*Internal, len(modules)),
	}

	for _, m := range modules {
		key := m.Key()
		if _, exists := c.byKey[key]; exists {
			return nil, &ValidationError{
				Kind:     kind,
				Filename: m.Filename,
				Message:  duplicateMessage(kind, key),
			}
		}
		c.byKey[key] = m
		c.order = append(c.order, key)
	}

	return c, nil
}

func duplicateMessage(kind Kind, key string) string {
	switch kind {
	case KindTemplate:
		return fmt.Sprintf("Templates must have unique feature names. Found multiple modules with %q", key)
	case KindFunction:
		return fmt.Sprintf("Functions must have unique slugs. Found multiple modules with %q", key)
	default:
		return fmt.Sprintf("%ss must have unique names. Found multiple modules with %q", kind, key)
	}
}

func (c *Collection) Kind() Kind {
	return c.kind
}

func (c *Collection) Len() int {
	return len(c.order)
}

func (c *Collection) Get(key string) (*Internal, bool) {
	m, ok := c.byKey[key]
	return m, ok
}

// Find matches exactly first and falls back to a case-insensitive match.
func (c *Collection) Find(name string) (*Internal, bool) {
	if m, ok := c.byKey[name]; ok {
		return m, true
	}
	for _, key := range c.order {
		if strings.EqualFold(key, name) {
			return c.byKey[key], true
		}
	}
	return nil, false
}

// All returns the modules in discovery order.
func (c *Collection) All() []*Internal {
	all := make([]*Internal, 0, len(c.order))
	for _, key := range c.order {
		all = append(all, c.byKey[key])
	}
	return all
}
