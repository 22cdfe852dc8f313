package sched

import "sync/atomic"

// Switcher receives the one-shot "switch now" signal. The consumer performs
// the register save/restore and resumes the ready queue's head.
type Switcher interface {
	RequestSwitch()
}

// PendSV is a pending-switch flag. Requests coalesce until taken.
type PendSV struct {
	pending  atomic.Bool
	requests atomic.Uint64
}

// RequestSwitch marks a switch pending; it never blocks.
func (p *PendSV) RequestSwitch() {
	p.requests.Add(1)
	p.pending.Store(true)
}

// Take clears the pending flag and reports whether a switch was pending.
func (p *PendSV) Take() bool { return p.pending.Swap(false) }

// Pending reports whether a switch is waiting to be serviced.
func (p *PendSV) Pending() bool { return p.pending.Load() }

// Requests counts every RequestSwitch call, coalesced or not.
func (p *PendSV) Requests() uint64 { return p.requests.Load() }

// PriorityMask controls the interrupt priority threshold.
type PriorityMask interface {
	SetBasePriority(level uint8)
}

// BasePriority records the threshold; 0 lets every interrupt through.
type BasePriority struct {
	level atomic.Uint32
}

// NewBasePriority starts masked, as the kernel runs before start.
func NewBasePriority() *BasePriority {
	b := &BasePriority{}
	b.level.Store(0xFF)
	return b
}

// SetBasePriority masks every interrupt at or below level.
func (b *BasePriority) SetBasePriority(level uint8) { b.level.Store(uint32(level)) }

// Level returns the current threshold.
func (b *BasePriority) Level() uint8 { return uint8(b.level.Load()) }
