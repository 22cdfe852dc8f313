// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of kernel event
type StatusKind int

const (
	StatusCreate StatusKind = iota
	StatusStart
	StatusDispatch
	StatusPreempt
	StatusSleep
	StatusWake
	StatusBlock
	StatusUnblock
	StatusKill
	StatusTick
	StatusSemCreate
	StatusSemDestroy
)

// StatusEvent is emitted every quantum or on key actions
type StatusEvent struct {
	Time   time.Time
	Tick   uint64 // base ticks since start
	Kind   StatusKind
	TaskID TaskID
	Sem    SemID
	Count  int32 // semaphore count after the operation
	Delay  int64 // requested or remaining delay in ms
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusCreate:
		return "Create"
	case StatusStart:
		return "Start"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusSleep:
		return "Sleep"
	case StatusWake:
		return "Wake"
	case StatusBlock:
		return "Block"
	case StatusUnblock:
		return "Unblock"
	case StatusKill:
		return "Kill"
	case StatusTick:
		return "Tick"
	case StatusSemCreate:
		return "SemCreate"
	case StatusSemDestroy:
		return "SemDestroy"
	default:
		return "Unknown"
	}
}
