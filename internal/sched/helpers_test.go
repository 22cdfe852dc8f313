package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type rig struct {
	k     *Kernel
	timer *ManualTimer
	pend  *PendSV
	heap  *Heap
}

func newRig(t *testing.T, cfg Config, opts ...Option) *rig {
	t.Helper()
	r := &rig{
		timer: &ManualTimer{},
		pend:  &PendSV{},
		heap:  NewHeap(cfg.sanitize().HeapBytes),
	}
	opts = append([]Option{
		WithTimer(r.timer),
		WithSwitcher(r.pend),
		WithAllocator(r.heap),
	}, opts...)
	r.k = New(cfg, opts...)
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EventBuffer = 0
	return cfg
}

// spawn creates n tasks with distinct entry points.
func (r *rig) spawn(t *testing.T, n int) []TaskID {
	t.Helper()
	ids := make([]TaskID, n)
	for i := range ids {
		id, err := r.k.CreateTask(EntryPoint(0x08001001+0x100*i), 128)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

// quanta fires n full scheduling quanta.
func (r *rig) quanta(n int) {
	r.timer.Fire(n * r.k.Config().QuantumTicks)
}

func (r *rig) running(t *testing.T) TaskID {
	t.Helper()
	id, err := r.k.CurrentID()
	require.NoError(t, err)
	return id
}

func taskIDs(infos []TaskInfo) []TaskID {
	var out []TaskID
	for _, i := range infos {
		out = append(out, i.ID)
	}
	return out
}

// checkInvariants asserts the queue/status invariants that must hold after
// every kernel operation.
func checkInvariants(t *testing.T, k *Kernel) {
	t.Helper()
	snap := k.Snapshot()

	seen := map[TaskID]bool{}
	for _, info := range snap.Tasks() {
		require.Falsef(t, seen[info.ID], "task %d queued twice", info.ID)
		seen[info.ID] = true
	}

	if !snap.Started {
		for _, info := range snap.Ready {
			require.Equal(t, StatusReady, info.Status)
		}
		return
	}

	running := 0
	for _, info := range snap.Tasks() {
		if info.Status == StatusRunning {
			running++
		}
	}
	require.Equal(t, 1, running, "exactly one running task")
	require.NotEmpty(t, snap.Ready)
	require.Equal(t, StatusRunning, snap.Ready[0].Status, "running task heads the ready queue")
	for _, info := range snap.Ready[1:] {
		require.Equal(t, StatusReady, info.Status)
	}
	for _, info := range snap.Sleeping {
		require.Equal(t, StatusWaiting, info.Status)
	}
	for _, sem := range snap.Semaphores {
		for _, info := range sem.Waiting {
			require.Equal(t, StatusWaiting, info.Status)
		}
		if sem.Count < 0 {
			require.Len(t, sem.Waiting, int(-sem.Count))
		} else {
			require.Empty(t, sem.Waiting)
		}
	}
}
