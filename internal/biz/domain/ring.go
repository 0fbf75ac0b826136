package domain

// Ring is a fixed-capacity FIFO that drops its oldest item on overflow
type Ring[T comparable] struct {
	items []T
	size  int
}

// NewRing creates a ring holding at most size items
func NewRing[T comparable](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{size: size}
}

// Push appends items, evicting the oldest beyond capacity
func (r *Ring[T]) Push(items ...T) {
	r.items = append(r.items, items...)
	if over := len(r.items) - r.size; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
}

// Count returns how many times v occurs
func (r *Ring[T]) Count(v T) int {
	n := 0
	for _, it := range r.items {
		if it == v {
			n++
		}
	}
	return n
}

// Contains reports whether v is present
func (r *Ring[T]) Contains(v T) bool {
	return r.Count(v) > 0
}

// Len returns the number of held items
func (r *Ring[T]) Len() int {
	return len(r.items)
}

// Items returns a copy of the contents, oldest first
func (r *Ring[T]) Items() []T {
	return append([]T(nil), r.items...)
}
