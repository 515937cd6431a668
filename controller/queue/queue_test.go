package queue

import (
	"testing"

	"saucecnc/protocol"
)

func TestPushPopOrder(t *testing.T) {
	q := New(4)
	for i := uint64(1); i <= 3; i++ {
		if err := q.Push(&protocol.Command{Seq: i}); err != nil {
			t.Fatalf("Push(%d) error: %v", i, err)
		}
	}
	if q.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", q.Count())
	}
	for i := uint64(1); i <= 3; i++ {
		cmd := q.Pop()
		if cmd == nil || cmd.Seq != i {
			t.Fatalf("Pop() = %+v, want seq %d", cmd, i)
		}
	}
	if !q.Empty() {
		t.Fatalf("queue should be empty")
	}
	if q.Pop() != nil {
		t.Fatalf("Pop() on empty queue should return nil")
	}
}

func TestPushOverflowReportsBusy(t *testing.T) {
	q := New(2)
	if err := q.Push(&protocol.Command{Seq: 1}); err != nil {
		t.Fatalf("Push(1) error: %v", err)
	}
	if err := q.Push(&protocol.Command{Seq: 2}); err != nil {
		t.Fatalf("Push(2) error: %v", err)
	}
	if err := q.Push(&protocol.Command{Seq: 3}); err != ErrFull {
		t.Fatalf("Push on full queue = %v, want ErrFull", err)
	}
	if q.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (overflow must not be dropped into the buffer)", q.Count())
	}
}

func TestRingBufferWraps(t *testing.T) {
	q := New(3)
	q.Push(&protocol.Command{Seq: 1})
	q.Push(&protocol.Command{Seq: 2})
	q.Pop()
	q.Push(&protocol.Command{Seq: 3})
	q.Push(&protocol.Command{Seq: 4})
	if q.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", q.Count())
	}
	want := []uint64{2, 3, 4}
	for _, w := range want {
		cmd := q.Pop()
		if cmd == nil || cmd.Seq != w {
			t.Fatalf("Pop() = %+v, want seq %d", cmd, w)
		}
	}
}

func TestPeekDoesNotDequeue(t *testing.T) {
	q := New(2)
	q.Push(&protocol.Command{Seq: 1})
	if p := q.Peek(); p == nil || p.Seq != 1 {
		t.Fatalf("Peek() = %+v, want seq 1", p)
	}
	if q.Count() != 1 {
		t.Fatalf("Peek should not dequeue, Count() = %d", q.Count())
	}
}
