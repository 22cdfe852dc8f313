package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rrkernel/internal/sched"
)

// entryBase is where program entry points are laid out, one per 0x100
// bytes, Thumb bit set.
const entryBase sched.EntryPoint = 0x08001001

type cpuState struct {
	prog Program
	pc   int
	busy uint32 // compute ticks left
	exit sched.EntryPoint
}

// Machine is a simulated single core. It owns the switch flag and the timer
// of its kernel: after every system call and every base tick it services a
// pending switch by resuming the ready queue's head, and each tick it
// executes one step of the running task.
type Machine struct {
	k       *sched.Kernel
	pend    *sched.PendSV
	timer   *sched.ManualTimer
	log     zerolog.Logger
	loaded  int
	entries map[sched.EntryPoint]Program
	cpu     map[sched.TaskID]*cpuState
	current sched.TaskID

	// History holds the running task after every tick.
	History  []sched.TaskID
	Switches int
}

// NewMachine builds a kernel wired to the machine's switch flag and timer.
func NewMachine(cfg sched.Config, log zerolog.Logger, opts ...sched.Option) *Machine {
	m := &Machine{
		pend:    &sched.PendSV{},
		timer:   &sched.ManualTimer{},
		log:     log,
		entries: make(map[sched.EntryPoint]Program),
		cpu:     make(map[sched.TaskID]*cpuState),
	}
	opts = append(opts,
		sched.WithSwitcher(m.pend),
		sched.WithTimer(m.timer),
		sched.WithKillEntry(sched.DefaultKillEntry),
		sched.WithLogger(log),
	)
	m.k = sched.New(cfg, opts...)
	return m
}

// Kernel returns the kernel the machine runs.
func (m *Machine) Kernel() *sched.Kernel { return m.k }

// Current returns the task the CPU is executing, 0 before boot.
func (m *Machine) Current() sched.TaskID { return m.current }

// Load places p at a fresh entry point and creates a task for it.
func (m *Machine) Load(p Program, stack uint32) (sched.TaskID, error) {
	entry := entryBase + sched.EntryPoint(0x100*m.loaded)
	m.loaded++
	m.entries[entry] = p

	id, err := m.k.Syscall(sched.SysTaskNew, [4]uint32{uint32(entry), stack})
	if err != nil {
		return 0, fmt.Errorf("load %q: %w", p.Name, err)
	}
	m.log.Debug().Str("program", p.Name).Int32("task", id).Msg("program loaded")
	return sched.TaskID(id), nil
}

// Boot starts the kernel and resumes the first task.
func (m *Machine) Boot() error {
	if _, err := m.k.Syscall(sched.SysOSStart, [4]uint32{}); err != nil {
		return err
	}
	return m.service()
}

// Tick runs the current task for one base tick, then delivers the timer
// interrupt.
func (m *Machine) Tick() error {
	if err := m.execute(); err != nil {
		return err
	}
	m.timer.Fire(1)
	if err := m.service(); err != nil {
		return err
	}
	m.History = append(m.History, m.current)
	return nil
}

// Run executes ticks base ticks, paced at period when it is non-zero.
func (m *Machine) Run(ctx context.Context, ticks int, period time.Duration) error {
	if period <= 0 {
		for i := 0; i < ticks; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.Tick(); err != nil {
				return err
			}
		}
		return nil
	}

	pace := make(chan struct{}, 1)
	clock := sched.NewTickClock()
	defer clock.Stop()
	if err := clock.Arm(period, func() {
		select {
		case pace <- struct{}{}:
		default: // the CPU fell behind; coalesce
		}
	}); err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pace:
		}
		if err := m.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// service performs a pending context switch.
func (m *Machine) service() error {
	if !m.pend.Take() {
		return nil
	}
	id, err := m.k.CurrentID()
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	if id == m.current {
		return nil
	}
	if _, ok := m.cpu[id]; !ok {
		// first resume: the saved frame says where the task starts
		ctx, err := m.k.SavedContext(id)
		if err != nil {
			return fmt.Errorf("switch to task %d: %w", id, err)
		}
		frame, err := sched.ReadFrame(ctx.Stack, ctx.SP)
		if err != nil {
			return fmt.Errorf("switch to task %d: %w", id, err)
		}
		prog, ok := m.entries[frame.Entry()]
		if !ok {
			return fmt.Errorf("switch to task %d: no program at %#x: %w", id, frame.Entry(), sched.ErrInvalidHandle)
		}
		m.cpu[id] = &cpuState{prog: prog, exit: frame.Exit()}
	}
	m.log.Trace().Uint32("from", uint32(m.current)).Uint32("to", uint32(id)).Msg("context switch")
	m.current = id
	m.Switches++
	return nil
}

// execute runs one step of the current task.
func (m *Machine) execute() error {
	st, ok := m.cpu[m.current]
	if !ok {
		return nil
	}
	if st.busy > 0 {
		st.busy--
		return nil
	}
	if st.pc >= len(st.prog.Steps) {
		if !st.prog.Loop || len(st.prog.Steps) == 0 {
			return m.returnFromEntry(st)
		}
		st.pc = 0
	}
	step := st.prog.Steps[st.pc]
	st.pc++

	var err error
	switch step.Op {
	case OpCompute:
		if step.Arg > 0 {
			st.busy = step.Arg - 1
		}
		return nil
	case OpSleep:
		_, err = m.k.Syscall(sched.SysTaskWait, [4]uint32{step.Arg})
	case OpAcquire:
		_, err = m.k.Syscall(sched.SysSemP, [4]uint32{step.Arg})
	case OpRelease:
		_, err = m.k.Syscall(sched.SysSemV, [4]uint32{step.Arg})
	case OpExit:
		return m.kill()
	default:
		err = fmt.Errorf("op %d: %w", step.Op, sched.ErrUnknownSyscall)
	}
	if err != nil {
		return fmt.Errorf("task %d (%s) %s: %w", m.current, st.prog.Name, step.Op, err)
	}
	return m.service()
}

// returnFromEntry jumps to the frame's LR, the kill trampoline.
func (m *Machine) returnFromEntry(st *cpuState) error {
	if st.exit != sched.DefaultKillEntry {
		return fmt.Errorf("task %d returned to %#x: %w", m.current, st.exit, sched.ErrBadFrame)
	}
	return m.kill()
}

func (m *Machine) kill() error {
	id := m.current
	if _, err := m.k.Syscall(sched.SysTaskKill, [4]uint32{}); err != nil {
		if errors.Is(err, sched.ErrNoReadyTask) {
			m.log.Warn().Uint32("task", uint32(id)).Msg("last ready task cannot exit")
		}
		return fmt.Errorf("task %d exit: %w", id, err)
	}
	delete(m.cpu, id)
	m.current = 0
	return m.service()
}
