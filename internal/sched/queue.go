package sched

import "fmt"

// TaskQueue is a circular singly-linked list of tasks threaded through the
// arena. Only the tail is stored; the head is the tail's successor, so an
// empty queue is one without a head. Callers must hold the kernel lock.
type TaskQueue struct {
	name  string
	arena *arena
	tail  Handle
}

func newTaskQueue(name string, a *arena) *TaskQueue {
	return &TaskQueue{name: name, arena: a, tail: NoHandle}
}

// Empty reports whether the queue has no head.
func (q *TaskQueue) Empty() bool { return q.tail == NoHandle }

// Head returns the first task of the queue.
func (q *TaskQueue) Head() (Handle, bool) {
	if q.Empty() {
		return NoHandle, false
	}
	return q.arena.task(q.tail).next, true
}

func (q *TaskQueue) claim(h Handle) (*Task, error) {
	t, err := q.arena.get(h)
	if err != nil {
		return nil, err
	}
	if t.owner != nil {
		return nil, fmt.Errorf("insert task %d into %s queue (owned by %s): %w",
			t.ID, q.name, t.owner.name, ErrAlreadyQueued)
	}
	t.owner = q
	return t, nil
}

// InsertTail appends h after the current tail.
func (q *TaskQueue) InsertTail(h Handle) error {
	t, err := q.claim(h)
	if err != nil {
		return err
	}
	if q.Empty() {
		t.next = h
	} else {
		tail := q.arena.task(q.tail)
		t.next = tail.next
		tail.next = h
	}
	q.tail = h
	return nil
}

// InsertHead makes h the new head; the old head follows it.
func (q *TaskQueue) InsertHead(h Handle) error {
	t, err := q.claim(h)
	if err != nil {
		return err
	}
	if q.Empty() {
		t.next = h
		q.tail = h
		return nil
	}
	tail := q.arena.task(q.tail)
	t.next = tail.next
	tail.next = h
	return nil
}

// RemoveHead detaches the head and transfers its ownership to the caller.
func (q *TaskQueue) RemoveHead() (Handle, error) {
	if q.Empty() {
		return NoHandle, fmt.Errorf("remove head of %s queue: %w", q.name, ErrEmptyQueue)
	}
	tail := q.arena.task(q.tail)
	h := tail.next
	t := q.arena.task(h)
	if h == q.tail {
		q.tail = NoHandle
	} else {
		tail.next = t.next
	}
	t.next = NoHandle
	t.owner = nil
	return h, nil
}

// Rotate moves the head to the tail, making its successor the new head.
func (q *TaskQueue) Rotate() {
	if !q.Empty() {
		q.tail = q.arena.task(q.tail).next
	}
}

// Size counts members by traversal.
func (q *TaskQueue) Size() int {
	if q.Empty() {
		return 0
	}
	n := 0
	for h := q.tail; ; {
		n++
		h = q.arena.task(h).next
		if h == q.tail {
			return n
		}
	}
}

// Handles lists members from head to tail.
func (q *TaskQueue) Handles() []Handle {
	head, ok := q.Head()
	if !ok {
		return nil
	}
	out := []Handle{head}
	for h := q.arena.task(head).next; h != head; h = q.arena.task(h).next {
		out = append(out, h)
	}
	return out
}
