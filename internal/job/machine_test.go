package job

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrkernel/internal/sched"
)

func testMachine(t *testing.T) *Machine {
	t.Helper()
	cfg := sched.DefaultConfig()
	cfg.EventBuffer = 0
	return NewMachine(cfg, zerolog.Nop())
}

func spin(name string) Program {
	return Program{Name: name, Steps: []Step{Compute(1)}, Loop: true}
}

func TestMachine_roundRobinHistory(t *testing.T) {
	m := testMachine(t)
	var ids []sched.TaskID
	for _, name := range []string{"a", "b", "c"} {
		id, err := m.Load(spin(name), 128)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, m.Boot())
	assert.Equal(t, ids[0], m.Current())

	require.NoError(t, m.Run(context.Background(), 30, 0))
	require.Len(t, m.History, 30)
	for i, got := range m.History {
		want := ids[((i+1)/10)%3]
		assert.Equalf(t, want, got, "tick %d", i+1)
	}
	assert.Equal(t, 4, m.Switches)
}

func TestMachine_returnFromEntryKillsTask(t *testing.T) {
	m := testMachine(t)
	short, err := m.Load(Program{Name: "short", Steps: []Step{Compute(1)}}, 64)
	require.NoError(t, err)
	idle, err := m.Load(spin("idle"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.NoError(t, m.Tick())
	assert.Equal(t, short, m.Current())
	require.NoError(t, m.Tick())
	assert.Equal(t, idle, m.Current())

	snap := m.Kernel().Snapshot()
	require.Len(t, snap.Tasks(), 1)
	assert.Equal(t, idle, snap.Tasks()[0].ID)
}

func TestMachine_explicitExit(t *testing.T) {
	m := testMachine(t)
	_, err := m.Load(Program{Name: "quitter", Steps: []Step{Exit(), Compute(100)}}, 64)
	require.NoError(t, err)
	idle, err := m.Load(spin("idle"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.NoError(t, m.Tick())
	assert.Equal(t, idle, m.Current())
	assert.Len(t, m.Kernel().Snapshot().Ready, 1)
}

func TestMachine_lastTaskCannotExit(t *testing.T) {
	m := testMachine(t)
	_, err := m.Load(Program{Name: "alone", Steps: []Step{Exit()}}, 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.ErrorIs(t, m.Tick(), sched.ErrNoReadyTask)
}

func TestMachine_releaseResumesWaiterImmediately(t *testing.T) {
	m := testMachine(t)
	sem, err := m.Kernel().NewSemaphore(0)
	require.NoError(t, err)

	waiter, err := m.Load(Program{Name: "waiter", Loop: true, Steps: []Step{Acquire(sem), Compute(1)}}, 128)
	require.NoError(t, err)
	signaler, err := m.Load(Program{Name: "signaler", Loop: true, Steps: []Step{Compute(2), Release(sem), Compute(50)}}, 128)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.NoError(t, m.Run(context.Background(), 4, 0))
	assert.Equal(t, []sched.TaskID{signaler, signaler, signaler, waiter}, m.History)

	snap := m.Kernel().Snapshot()
	assert.Equal(t, []sched.TaskID{waiter, signaler}, []sched.TaskID{snap.Ready[0].ID, snap.Ready[1].ID})
	assert.Equal(t, int32(0), snap.Semaphores[0].Count)
}

func TestMachine_sleeperWakesAfterQuanta(t *testing.T) {
	m := testMachine(t)
	sleeper, err := m.Load(Program{Name: "sleeper", Steps: []Step{SleepWork(25), Compute(1000)}}, 128)
	require.NoError(t, err)
	idle, err := m.Load(spin("idle"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	// tick 1: the sleeper waits, idle takes over
	require.NoError(t, m.Run(context.Background(), 29, 0))
	for _, id := range m.History {
		assert.Equal(t, idle, id)
	}
	require.Len(t, m.Kernel().Snapshot().Sleeping, 1)

	// third quantum boundary: back on the ready queue, behind idle
	require.NoError(t, m.Tick())
	snap := m.Kernel().Snapshot()
	assert.Empty(t, snap.Sleeping)
	assert.Equal(t, sleeper, snap.Ready[1].ID)

	require.NoError(t, m.Run(context.Background(), 10, 0))
	assert.Equal(t, sleeper, m.Current())
}

func TestMachine_producerConsumer(t *testing.T) {
	m := testMachine(t)
	k := m.Kernel()
	items, err := k.NewSemaphore(0)
	require.NoError(t, err)
	mutex, err := k.NewSemaphore(1)
	require.NoError(t, err)

	_, err = m.Load(spin("idle"), 64)
	require.NoError(t, err)
	_, err = m.Load(Program{Name: "producer", Loop: true, Steps: []Step{
		Acquire(mutex), Compute(3), Release(mutex), Release(items), SleepWork(25),
	}}, 128)
	require.NoError(t, err)
	_, err = m.Load(Program{Name: "consumer", Loop: true, Steps: []Step{
		Acquire(items), Acquire(mutex), Compute(2), Release(mutex),
	}}, 128)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.NoError(t, m.Run(context.Background(), 500, 0))

	snap := k.Snapshot()
	assert.Len(t, snap.Tasks(), 3)
	for _, s := range snap.Semaphores {
		switch s.ID {
		case mutex:
			assert.GreaterOrEqual(t, s.Count, int32(-1))
			assert.LessOrEqual(t, s.Count, int32(1))
		case items:
			// the consumer keeps up: at most one item queued or one waiter
			assert.GreaterOrEqual(t, s.Count, int32(-1))
			assert.LessOrEqual(t, s.Count, int32(1))
		}
	}
	running := 0
	for _, info := range snap.Tasks() {
		if info.Status == sched.StatusRunning {
			running++
		}
	}
	assert.Equal(t, 1, running)
}

func TestMachine_pacedRun(t *testing.T) {
	m := testMachine(t)
	_, err := m.Load(spin("a"), 64)
	require.NoError(t, err)
	_, err = m.Load(spin("b"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	require.NoError(t, m.Run(context.Background(), 12, time.Millisecond))
	assert.Len(t, m.History, 12)
	assert.Equal(t, uint64(12), m.Kernel().Snapshot().Ticks)
}

func TestMachine_runHonoursContext(t *testing.T) {
	m := testMachine(t)
	_, err := m.Load(spin("a"), 64)
	require.NoError(t, err)
	require.NoError(t, m.Boot())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Run(ctx, 10, 0), context.Canceled)
	require.ErrorIs(t, m.Run(ctx, 10, time.Millisecond), context.Canceled)
}
