package job

import "rrkernel/internal/sched"

// Op is one kind of program step.
type Op int

const (
	OpCompute Op = iota // burn Arg base ticks on the CPU
	OpSleep             // wait Arg ms
	OpAcquire           // P on semaphore Arg
	OpRelease           // V on semaphore Arg
	OpExit              // kill oneself
)

func (o Op) String() string {
	switch o {
	case OpCompute:
		return "compute"
	case OpSleep:
		return "sleep"
	case OpAcquire:
		return "acquire"
	case OpRelease:
		return "release"
	case OpExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Step is one instruction of a scripted task.
type Step struct {
	Op  Op
	Arg uint32
}

// Program is the code behind a task entry point.
// Without Loop, running off the end returns to the kill trampoline.
type Program struct {
	Name  string
	Steps []Step
	Loop  bool
}

// Compute keeps the task busy for the given number of base ticks.
func Compute(ticks uint32) Step { return Step{Op: OpCompute, Arg: ticks} }

// SleepWork returns a step that puts the task on the sleeping queue for ms.
func SleepWork(ms uint32) Step { return Step{Op: OpSleep, Arg: ms} }

// Acquire blocks the task on the semaphore when it has no token left.
func Acquire(id sched.SemID) Step { return Step{Op: OpAcquire, Arg: uint32(id)} }

// Release gives a token back, waking the earliest waiter.
func Release(id sched.SemID) Step { return Step{Op: OpRelease, Arg: uint32(id)} }

// Exit kills the task without running the rest of its program.
func Exit() Step { return Step{Op: OpExit} }
