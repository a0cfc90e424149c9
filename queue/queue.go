package queue

import "github.com/pkg/errors"

// ErrFull is returned by Enqueue when a bounded queue is at capacity.
var ErrFull = errors.New("queue is full")

// Queue is a generic FIFO queue. It is not safe for concurrent use; callers
// guard it with their own lock.
type Queue[T any] struct {
	items []T
	head  int
	limit int
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit items. A limit <= 0 means
// unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Enqueue adds an element to the end of the queue. The queue is left
// untouched when it is full.
func (q *Queue[T]) Enqueue(item T) error {
	if q.limit > 0 && q.Len() >= q.limit {
		return ErrFull
	}
	q.items = append(q.items, item)
	return nil
}

// Dequeue removes and returns the front element of the queue.
// The boolean indicates whether an element was dequeued (false if the queue was empty).
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.Len() == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()
	return item, true
}

// Peek returns the front element without removing it from the queue.
func (q *Queue[T]) Peek() (T, bool) {
	if q.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

// Drain removes and returns every element in FIFO order.
func (q *Queue[T]) Drain() []T {
	out := make([]T, q.Len())
	copy(out, q.items[q.head:])
	q.items = nil
	q.head = 0
	return out
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	return len(q.items) - q.head
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// compact reclaims the consumed prefix once it dominates the backing array.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 32 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		var zero T
		for i := n; i < len(q.items); i++ {
			q.items[i] = zero
		}
		q.items = q.items[:n]
		q.head = 0
	}
}
