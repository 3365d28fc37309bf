// Package history provides a fixed-capacity, oldest-first record of recent items.
package history

import "iter"

// MaxCapacity is the largest capacity a Bounded buffer accepts.
const MaxCapacity = 255

// Bounded holds at most Cap() items in push order. Once full, every push
// evicts the oldest item by shifting the rest one slot toward the head.
// Storage is allocated once at construction.
// Not safe for concurrent use; callers must synchronize.
type Bounded[T any] struct {
	items []T
	count int
}

// New returns an empty buffer with room for capacity items.
// A capacity outside [1, MaxCapacity] is replaced with 1.
func New[T any](capacity int) *Bounded[T] {
	if capacity < 1 || capacity > MaxCapacity {
		capacity = 1
	}
	return &Bounded[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest item when the buffer is full.
func (b *Bounded[T]) Push(item T) {
	last := len(b.items) - 1
	if b.count > last {
		copy(b.items, b.items[1:])
		b.items[last] = item
		return
	}
	b.items[b.count] = item
	b.count++
}

// Len returns the number of items currently held.
func (b *Bounded[T]) Len() int {
	return b.count
}

// Cap returns the fixed capacity.
func (b *Bounded[T]) Cap() int {
	return len(b.items)
}

// Items returns a copy of the held items, oldest first.
func (b *Bounded[T]) Items() []T {
	out := make([]T, b.count)
	copy(out, b.items[:b.count])
	return out
}

// All yields the held items, oldest first. The sequence may be ranged over
// more than once; each pass reflects the buffer at the time it starts.
func (b *Bounded[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		n := b.count
		for i := 0; i < n; i++ {
			if !yield(b.items[i]) {
				return
			}
		}
	}
}
