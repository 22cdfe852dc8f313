package sched

import (
	"errors"
	"fmt"
	"math"
)

// CreateTask allocates a task running entry on a stack of at least
// stackSize bytes and appends it to the ready queue. Nothing is registered
// when it fails.
func (k *Kernel) CreateTask(entry EntryPoint, stackSize uint32) (TaskID, error) {
	if entry == 0 {
		return 0, fmt.Errorf("create task: nil entry point: %w", ErrInvalidHandle)
	}
	size := StackSize(stackSize)

	if size > math.MaxInt32-TaskDescriptorSize {
		return 0, fmt.Errorf("create task: %d byte stack: %w", size, ErrOutOfMemory)
	}

	k.lock()
	defer k.unlock()

	block, err := k.alloc.Allocate(TaskDescriptorSize + int(size))
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = errors.Join(ErrOutOfMemory, err)
		}
		k.log.Warn().Err(err).Uint64("stack", size).Msg("task allocation failed")
		return 0, fmt.Errorf("create task: %w", err)
	}

	stack := block.Buf[TaskDescriptorSize:]
	sp, err := k.frames.InitFrame(stack, entry, k.killEntry)
	if err != nil {
		k.alloc.Release(block)
		return 0, fmt.Errorf("create task: %w", err)
	}

	h, ok := k.arena.alloc()
	if !ok {
		k.alloc.Release(block)
		return 0, fmt.Errorf("create task: %d task slots in use: %w", k.arena.inUse(), ErrOutOfMemory)
	}
	t := k.arena.task(h)
	t.Status = StatusReady
	t.Entry = entry
	t.SP = sp
	t.Stack = stack
	t.block = block

	if err := k.ready.InsertTail(h); err != nil {
		// give back both the slot and the memory block
		if b, rerr := k.arena.release(h); rerr == nil {
			k.alloc.Release(b)
		}
		return 0, fmt.Errorf("create task: %w", err)
	}

	t.ID = k.nextID
	k.nextID++
	k.ids.Put(t.ID, h)

	k.log.Debug().Uint32("task", uint32(t.ID)).Uint64("stack", size).Msg("task created")
	k.emit(StatusCreate, t.ID)
	return t.ID, nil
}

// Kill removes the running task, promotes the next ready task and frees the
// killed task's memory. Only the running task can kill itself.
func (k *Kernel) Kill() error {
	k.lock()
	defer k.unlock()

	h, t, err := k.running()
	if err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	if k.lastReady() {
		return fmt.Errorf("kill task %d: %w", t.ID, ErrNoReadyTask)
	}
	id := t.ID

	if _, err := k.ready.RemoveHead(); err != nil {
		return fmt.Errorf("kill task %d: %w", id, err)
	}
	k.log.Debug().Uint32("task", uint32(id)).Msg("task killed")
	k.emit(StatusKill, id)
	// the killed task never resumes, so there is no context to save
	k.promote(NoHandle)

	k.ids.Remove(id)
	block, err := k.arena.release(h)
	if err != nil {
		return fmt.Errorf("kill task %d: %w", id, err)
	}
	k.alloc.Release(block)
	return nil
}

// CurrentID returns the id of the running task.
func (k *Kernel) CurrentID() (TaskID, error) {
	k.lock()
	defer k.unlock()

	_, t, err := k.running()
	if err != nil {
		return 0, fmt.Errorf("current id: %w", err)
	}
	return t.ID, nil
}

// Wait moves the running task to the sleeping queue for ms milliseconds.
// Delays are counted down once per quantum, so ms = 0 makes the task ready
// again on the next quantum boundary.
func (k *Kernel) Wait(ms uint32) error {
	k.lock()
	defer k.unlock()

	h, t, err := k.running()
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if k.lastReady() {
		return fmt.Errorf("wait task %d: %w", t.ID, ErrNoReadyTask)
	}

	if _, err := k.ready.RemoveHead(); err != nil {
		return fmt.Errorf("wait task %d: %w", t.ID, err)
	}
	if err := k.sleeping.InsertTail(h); err != nil {
		return fmt.Errorf("wait task %d: %w", t.ID, err)
	}
	t.Delay = int64(ms)
	t.Status = StatusWaiting

	k.log.Debug().Uint32("task", uint32(t.ID)).Uint32("ms", ms).Msg("task sleeping")
	k.emit(StatusSleep, t.ID).Delay = int64(ms)
	k.promote(h)
	return nil
}

// Yield is reserved; there is no voluntary yield in this kernel.
func (k *Kernel) Yield() error {
	return fmt.Errorf("yield: %w", ErrUnsupported)
}
