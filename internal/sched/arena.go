package sched

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"
)

// Handle addresses a task slot in the arena. Queues link tasks by handle.
type Handle int32

// NoHandle is the empty link.
const NoHandle Handle = -1

type slot struct {
	task Task
	used bool
}

// arena owns every task descriptor. A task lives in exactly one slot from
// creation until it kills itself.
type arena struct {
	slots []slot
	free  *arraystack.Stack // free slot indices, lowest on top
}

func newArena(capacity int) *arena {
	a := &arena{
		slots: make([]slot, capacity),
		free:  arraystack.New(),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free.Push(Handle(i))
	}
	return a
}

// alloc reserves a slot; false when the arena is full.
func (a *arena) alloc() (Handle, bool) {
	v, ok := a.free.Pop()
	if !ok {
		return NoHandle, false
	}
	h := v.(Handle)
	a.slots[h] = slot{used: true, task: Task{next: NoHandle}}
	return h, true
}

// release frees the slot and hands back the task's memory block.
func (a *arena) release(h Handle) (Block, error) {
	t, err := a.get(h)
	if err != nil {
		return Block{}, err
	}
	if t.owner != nil {
		return Block{}, fmt.Errorf("release task %d: %w", t.ID, ErrAlreadyQueued)
	}
	b := t.block
	a.slots[h] = slot{}
	a.free.Push(h)
	return b, nil
}

func (a *arena) get(h Handle) (*Task, error) {
	if h < 0 || int(h) >= len(a.slots) || !a.slots[h].used {
		return nil, fmt.Errorf("task handle %d: %w", h, ErrInvalidHandle)
	}
	return &a.slots[h].task, nil
}

// task is get for handles that come out of a queue and are known live.
func (a *arena) task(h Handle) *Task {
	return &a.slots[h].task
}

func (a *arena) inUse() int {
	return len(a.slots) - a.free.Size()
}
