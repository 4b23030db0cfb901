package queue

import "sync"

// sliceQueue implements the Queue interface using a slice.
//
// When limit is positive, enqueueing onto a full queue drops the head item, so the queue
// keeps the most recent limit items.
type sliceQueue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// NewSliceQueue creates a new unbounded queue.
func NewSliceQueue[T any](prealloc int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc)}
}

// NewTailQueue creates a queue keeping at most limit of the most recent items.
// A non-positive limit keeps nothing.
func NewTailQueue[T any](limit int) Queue[T] {
	if limit <= 0 {
		return &sliceQueue[T]{limit: -1}
	}

	return &sliceQueue[T]{items: make([]T, 0, limit), limit: limit}
}

// Enqueue adds an item to the tail of the queue.
func (q *sliceQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.limit < 0:
		return
	case q.limit > 0 && len(q.items) == q.limit:
		copy(q.items, q.items[1:])
		q.items[len(q.items)-1] = item
	default:
		q.items = append(q.items, item)
	}
}

// Dequeue removes and returns the item at the head of the queue.
func (q *sliceQueue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *sliceQueue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}

// Reset resets the queue to an empty state.
func (q *sliceQueue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.items = q.items[:0]
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *sliceQueue[T]) IsEmpty() bool {
	return q.Length() == 0
}

// Length returns the number of items in the queue.
func (q *sliceQueue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Items returns a copy of the queued items, head first.
func (q *sliceQueue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items))
	copy(out, q.items)

	return out
}
