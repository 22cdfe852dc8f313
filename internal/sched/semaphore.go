package sched

import (
	"errors"
	"fmt"
)

// SemID identifies a semaphore. Ids start at 1.
type SemID uint32

// SemaphoreDescriptorSize is what a semaphore costs the allocator.
const SemaphoreDescriptorSize = 8

// Semaphore is a counting semaphore. A negative count is the number of
// tasks blocked on it.
type Semaphore struct {
	ID      SemID
	count   int32
	waiting *TaskQueue // FIFO by arrival
	block   Block
}

func (k *Kernel) semaphore(id SemID) (*Semaphore, error) {
	v, ok := k.sems.Get(id)
	if !ok {
		return nil, fmt.Errorf("semaphore %d: %w", id, ErrInvalidHandle)
	}
	return v.(*Semaphore), nil
}

// NewSemaphore creates a semaphore with count = initial and nobody waiting.
func (k *Kernel) NewSemaphore(initial int32) (SemID, error) {
	k.lock()
	defer k.unlock()

	if k.sems.Size() >= k.cfg.MaxSemaphores {
		return 0, fmt.Errorf("new semaphore: %d in use: %w", k.sems.Size(), ErrOutOfMemory)
	}
	block, err := k.alloc.Allocate(SemaphoreDescriptorSize)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = errors.Join(ErrOutOfMemory, err)
		}
		return 0, fmt.Errorf("new semaphore: %w", err)
	}

	s := &Semaphore{
		ID:      k.nextSem,
		count:   initial,
		waiting: newTaskQueue(fmt.Sprintf("sem%d", k.nextSem), k.arena),
		block:   block,
	}
	k.nextSem++
	k.sems.Put(s.ID, s)

	ev := k.emit(StatusSemCreate, 0)
	ev.Sem, ev.Count = s.ID, s.count
	return s.ID, nil
}

// Acquire (P) takes a token. When none is left the running task blocks on
// the semaphore and the next ready task runs.
//
// The returned count is the value right after the decrement. A task that
// blocked only resumes after a matching Release, by which time the count
// has moved on, so it must not be used to decide anything.
func (k *Kernel) Acquire(id SemID) (int32, error) {
	k.lock()
	defer k.unlock()

	s, err := k.semaphore(id)
	if err != nil {
		return 0, fmt.Errorf("acquire: %w", err)
	}
	if s.count > 0 {
		s.count--
		return s.count, nil
	}

	// blocking path: check everything before touching the count
	h, t, err := k.running()
	if err != nil {
		return 0, fmt.Errorf("acquire semaphore %d: %w", id, err)
	}
	if k.lastReady() {
		return 0, fmt.Errorf("acquire semaphore %d by task %d: %w", id, t.ID, ErrNoReadyTask)
	}

	s.count--
	if _, err := k.ready.RemoveHead(); err != nil {
		return 0, fmt.Errorf("acquire semaphore %d: %w", id, err)
	}
	if err := s.waiting.InsertTail(h); err != nil {
		return 0, fmt.Errorf("acquire semaphore %d: %w", id, err)
	}
	t.Status = StatusWaiting

	k.log.Debug().Uint32("task", uint32(t.ID)).Uint32("sem", uint32(id)).Int32("count", s.count).Msg("task blocked")
	ev := k.emit(StatusBlock, t.ID)
	ev.Sem, ev.Count = id, s.count
	k.promote(h)
	return s.count, nil
}

// Release (V) gives a token back. If tasks are blocked, the earliest one is
// woken and runs immediately: it goes to the head of the ready queue as
// RUNNING and the task that released is demoted to READY right behind it.
func (k *Kernel) Release(id SemID) (int32, error) {
	k.lock()
	defer k.unlock()

	s, err := k.semaphore(id)
	if err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}
	s.count++
	if s.waiting.Empty() {
		return s.count, nil
	}

	// a waiter implies a started kernel, it blocked from a running task
	prevH, cur, err := k.running()
	if err != nil {
		s.count--
		return 0, fmt.Errorf("release semaphore %d: %w", id, err)
	}
	h, err := s.waiting.RemoveHead()
	if err != nil {
		return 0, fmt.Errorf("release semaphore %d: %w", id, err)
	}
	if err := k.ready.InsertHead(h); err != nil {
		return 0, fmt.Errorf("release semaphore %d: %w", id, err)
	}
	woken := k.arena.task(h)
	woken.Status = StatusRunning
	cur.Status = StatusReady
	k.prev = prevH
	k.requestSwitch()

	k.log.Debug().Uint32("task", uint32(woken.ID)).Uint32("sem", uint32(id)).Int32("count", s.count).Msg("task unblocked")
	ev := k.emit(StatusUnblock, woken.ID)
	ev.Sem, ev.Count = id, s.count
	k.emit(StatusPreempt, cur.ID)
	k.emit(StatusDispatch, woken.ID)
	return s.count, nil
}

// DestroySemaphore frees a semaphore nobody is blocked on.
func (k *Kernel) DestroySemaphore(id SemID) error {
	k.lock()
	defer k.unlock()

	s, err := k.semaphore(id)
	if err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	if !s.waiting.Empty() {
		return fmt.Errorf("destroy semaphore %d (%d waiting): %w", id, s.waiting.Size(), ErrSemaphoreBusy)
	}
	k.sems.Remove(id)
	k.alloc.Release(s.block)

	ev := k.emit(StatusSemDestroy, 0)
	ev.Sem, ev.Count = id, s.count
	return nil
}
