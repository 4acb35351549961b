package store

import "github.com/blockberries/breezy"

// Cache is a write overlay on top of a Store's buffer. Reads see the
// overlay first and then the store; writes stay in the overlay until
// Write merges them into the store buffer. Discard drops them.
type Cache struct {
	parent *Store
	writes map[string]op
}

// Stage returns an empty overlay over s.
func (s *Store) Stage() *Cache {
	return &Cache{parent: s, writes: make(map[string]op)}
}

// Get returns the overlay value for key, falling back to the store.
func (c *Cache) Get(key []byte) ([]byte, error) {
	if !c.parent.opened {
		return nil, breezy.ErrNotOpen
	}
	if o, ok := c.writes[string(key)]; ok {
		return o.get(), nil
	}
	return c.parent.Get(key)
}

// Set records a put in the overlay. An empty value is a delete.
func (c *Cache) Set(key, value []byte) error {
	if !c.parent.opened {
		return breezy.ErrNotOpen
	}
	c.writes[string(key)] = newOp(value)
	return nil
}

// Delete records a delete in the overlay.
func (c *Cache) Delete(key []byte) error {
	if !c.parent.opened {
		return breezy.ErrNotOpen
	}
	c.writes[string(key)] = op{del: true}
	return nil
}

// Len returns the number of keys written to the overlay.
func (c *Cache) Len() int { return len(c.writes) }

// Write merges the overlay into the store buffer and empties it.
func (c *Cache) Write() {
	for k, o := range c.writes {
		c.parent.buffer[k] = o
	}
	c.writes = make(map[string]op)
}

// Discard drops every overlay write.
func (c *Cache) Discard() {
	c.writes = make(map[string]op)
}
