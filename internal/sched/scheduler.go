// internal/sched/scheduler.go

package sched

import (
	"fmt"
)

// Start runs the first task: the ready queue's head becomes RUNNING, the
// priority threshold drops so user tasks can run and the timer is armed at
// the base tick period.
func (k *Kernel) Start() error {
	k.lock()
	if k.started {
		k.unlock()
		return fmt.Errorf("start: %w", ErrAlreadyStarted)
	}
	h, ok := k.ready.Head()
	if !ok {
		k.unlock()
		return fmt.Errorf("start: no task created: %w", ErrEmptyQueue)
	}
	k.started = true
	t := k.arena.task(h)
	t.Status = StatusRunning
	k.requestSwitch()
	k.mask.SetBasePriority(0)
	k.emit(StatusStart, t.ID)
	k.emit(StatusDispatch, t.ID)
	k.log.Info().Uint32("task", uint32(t.ID)).Dur("tick", k.cfg.BasePeriod()).
		Int("quantum_ticks", k.cfg.QuantumTicks).Msg("kernel started")
	k.unlock()

	// NOTE: arm outside the lock; the first tick takes it
	if err := k.timer.Arm(k.cfg.BasePeriod(), k.tickHandler); err != nil {
		return fmt.Errorf("start: arm timer: %w", err)
	}
	return nil
}

func (k *Kernel) tickHandler() {
	if err := k.OnTick(); err != nil {
		k.log.Error().Err(err).Msg("tick")
	}
}

// OnTick is the base tick handler. Every QuantumTicks calls it runs one
// scheduling round.
func (k *Kernel) OnTick() error {
	k.lock()
	defer k.unlock()

	if !k.started {
		return fmt.Errorf("tick: %w", ErrNotStarted)
	}
	k.ticks++
	k.quantum++
	if k.quantum < k.cfg.QuantumTicks {
		return nil
	}
	k.quantum = 0
	return k.round()
}

// round is one quantum:
//  1. the running task goes back to READY and the ready queue rotates,
//  2. every sleeper loses a quantum of delay; expired ones join the ready
//     queue's tail in sleeping-queue order.
//
// A single switch request covers the whole round.
func (k *Kernel) round() error {
	k.emit(StatusTick, 0)

	// 1) round robin
	prevH, t, err := k.running()
	if err != nil {
		return fmt.Errorf("round: %w", err)
	}
	t.Status = StatusReady
	k.ready.Rotate()
	if h, _ := k.ready.Head(); h != prevH {
		k.emit(StatusPreempt, t.ID)
	}
	k.promote(prevH)

	// 2) delay countdown. Each member present at the start is visited once:
	//    expired heads are removed, the others rotate to the back, which
	//    leaves the survivors in their previous order.
	n := k.sleeping.Size()
	for i := 0; i < n; i++ {
		h, _ := k.sleeping.Head()
		s := k.arena.task(h)
		s.Delay -= k.quantumMS
		if s.Delay > 0 {
			k.sleeping.Rotate()
			continue
		}
		s.Delay = 0
		if _, err := k.sleeping.RemoveHead(); err != nil {
			return fmt.Errorf("round: wake task %d: %w", s.ID, err)
		}
		s.Status = StatusReady
		if err := k.ready.InsertTail(h); err != nil {
			return fmt.Errorf("round: wake task %d: %w", s.ID, err)
		}
		k.log.Debug().Uint32("task", uint32(s.ID)).Msg("task woke")
		k.emit(StatusWake, s.ID)
	}
	return nil
}
