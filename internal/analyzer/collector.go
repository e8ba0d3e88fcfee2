package analyzer

// BoundedCollector keeps the first Cap items offered to it, in insertion order,
// and rejects everything after that.
type BoundedCollector[T any] struct {
	items []T
	limit int
}

// NewBoundedCollector creates a collector holding at most limit items
func NewBoundedCollector[T any](limit int) *BoundedCollector[T] {
	if limit < 0 {
		limit = 0
	}
	return &BoundedCollector[T]{items: make([]T, 0, limit), limit: limit}
}

// Add appends item unless the collector is full. It reports whether item was kept.
func (c *BoundedCollector[T]) Add(item T) bool {
	if c.Full() {
		return false
	}
	c.items = append(c.items, item)
	return true
}

// Full reports whether further Add calls will be rejected
func (c *BoundedCollector[T]) Full() bool {
	return len(c.items) >= c.limit
}

// Len returns the number of kept items
func (c *BoundedCollector[T]) Len() int {
	return len(c.items)
}

// Cap returns the collector's capacity
func (c *BoundedCollector[T]) Cap() int {
	return c.limit
}

// Items returns a copy of the kept items, never nil
func (c *BoundedCollector[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
