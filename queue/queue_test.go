package queue

import (
	"testing"

	"github.com/pkg/errors"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	for i := 0; i < 100; i++ {
		got, ok := q.Dequeue()
		if !ok || got != i {
			t.Fatalf("expected %d, got %d (ok=%v)", i, got, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
	if !q.IsEmpty() {
		t.Fatalf("expected IsEmpty after draining")
	}
}

func TestQueueInterleavedKeepsOrder(t *testing.T) {
	q := New[string]()
	_ = q.Enqueue("a")
	_ = q.Enqueue("b")
	if got, _ := q.Dequeue(); got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	_ = q.Enqueue("c")
	if got, _ := q.Peek(); got != "b" {
		t.Fatalf("expected peek b, got %s", got)
	}
	rest := q.Drain()
	if len(rest) != 2 || rest[0] != "b" || rest[1] != "c" {
		t.Fatalf("unexpected drain %v", rest)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty after drain, got %d", q.Len())
	}
}

func TestBoundedQueueRejectsNewest(t *testing.T) {
	q := NewBounded[int](2)
	_ = q.Enqueue(1)
	_ = q.Enqueue(2)
	if err := q.Enqueue(3); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if got, _ := q.Dequeue(); got != 1 {
		t.Fatalf("expected oldest item to survive, got %d", got)
	}
	if err := q.Enqueue(3); err != nil {
		t.Fatalf("expected room after dequeue, got %v", err)
	}
}
