package sched

import "fmt"

// TaskInfo is a copy of a task's scheduling state.
type TaskInfo struct {
	ID     TaskID
	Status Status
	Delay  int64
	Entry  EntryPoint
}

// SemaphoreInfo is a copy of a semaphore's state.
type SemaphoreInfo struct {
	ID      SemID
	Count   int32
	Waiting []TaskInfo
}

// Snapshot is a consistent view of the kernel taken under its lock.
type Snapshot struct {
	Started    bool
	Ticks      uint64
	Previous   TaskID // 0 when no task was switched out
	Ready      []TaskInfo
	Sleeping   []TaskInfo
	Semaphores []SemaphoreInfo
}

// Running returns the running task, the head of the ready queue.
func (s Snapshot) Running() (TaskInfo, bool) {
	if !s.Started || len(s.Ready) == 0 {
		return TaskInfo{}, false
	}
	return s.Ready[0], true
}

// Tasks returns every live task, wherever it is queued.
func (s Snapshot) Tasks() []TaskInfo {
	out := append([]TaskInfo{}, s.Ready...)
	out = append(out, s.Sleeping...)
	for _, sem := range s.Semaphores {
		out = append(out, sem.Waiting...)
	}
	return out
}

func (k *Kernel) infos(q *TaskQueue) []TaskInfo {
	var out []TaskInfo
	for _, h := range q.Handles() {
		t := k.arena.task(h)
		out = append(out, TaskInfo{ID: t.ID, Status: t.Status, Delay: t.Delay, Entry: t.Entry})
	}
	return out
}

// Snapshot copies the queues and semaphore table.
func (k *Kernel) Snapshot() Snapshot {
	k.lock()
	defer k.unlock()

	snap := Snapshot{
		Started:  k.started,
		Ticks:    k.ticks,
		Ready:    k.infos(k.ready),
		Sleeping: k.infos(k.sleeping),
	}
	if k.prev != NoHandle {
		if t, err := k.arena.get(k.prev); err == nil {
			snap.Previous = t.ID
		}
	}
	it := k.sems.Iterator()
	for it.Next() {
		s := it.Value().(*Semaphore)
		snap.Semaphores = append(snap.Semaphores, SemaphoreInfo{
			ID:      s.ID,
			Count:   s.count,
			Waiting: k.infos(s.waiting),
		})
	}
	return snap
}

// Context is the saved context of a task, as seen by the switch mechanism.
type Context struct {
	ID    TaskID
	SP    int
	Stack []byte // live stack; Stack[0] is the limit
}

// SavedContext returns the saved context of task id.
func (k *Kernel) SavedContext(id TaskID) (Context, error) {
	k.lock()
	defer k.unlock()

	t, err := k.lookup(id)
	if err != nil {
		return Context{}, err
	}
	return Context{ID: t.ID, SP: t.SP, Stack: t.Stack}, nil
}

// SaveSP records the stack pointer of a task that was switched out.
func (k *Kernel) SaveSP(id TaskID, sp int) error {
	k.lock()
	defer k.unlock()

	t, err := k.lookup(id)
	if err != nil {
		return err
	}
	if sp < 0 || sp > len(t.Stack) {
		return fmt.Errorf("save sp %d for task %d: %w", sp, id, ErrBadFrame)
	}
	t.SP = sp
	return nil
}

func (k *Kernel) lookup(id TaskID) (*Task, error) {
	v, ok := k.ids.Get(id)
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrInvalidHandle)
	}
	return k.arena.get(v.(Handle))
}
