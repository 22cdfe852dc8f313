package sched

// TaskID uniquely identifies a task. Ids start at 1 and are never reused.
type TaskID uint32

// EntryPoint is the address a fresh task starts executing at.
type EntryPoint uint32

// Status is the scheduling state of a task.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusWaiting  // timed wait on the sleeping queue, or blocked on a semaphore
	StatusSleeping // reserved; the tick path no longer tags preempted tasks with it
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusWaiting:
		return "WAITING"
	case StatusSleeping:
		return "SLEEPING"
	default:
		return "UNKNOWN"
	}
}

const (
	// MinStackSize is the stack floor; it leaves room for the initial
	// context frame (FrameWords words) plus headroom for the first calls.
	MinStackSize = 96
	// TaskDescriptorSize is charged to the allocator on top of the stack,
	// as the descriptor and its stack share one block.
	TaskDescriptorSize = 24
)

// Task represents one schedulable task and its saved context.
type Task struct {
	ID     TaskID
	Status Status
	Delay  int64 // ms left; meaningful only while on the sleeping queue
	Entry  EntryPoint
	SP     int    // saved stack pointer, byte offset into Stack
	Stack  []byte // Stack[0] is the stack limit, len(Stack) the initial top

	block Block
	next  Handle
	owner *TaskQueue
}

// StackSize rounds a requested stack size up to a multiple of 8 with a
// floor of MinStackSize bytes. The result can exceed 32 bits.
func StackSize(requested uint32) uint64 {
	if requested <= MinStackSize {
		return MinStackSize
	}
	return 8 * ((uint64(requested)-1)/8 + 1)
}
