package sched

import "fmt"

// Syscall numbers understood by Dispatch. 0..2 (add, malloc, free) belong
// to the trampoline and the allocator, not to the kernel.
type Syscall uint32

const (
	SysOSStart    Syscall = 3
	SysTaskNew    Syscall = 4  // entry, stack size -> task id
	SysTaskID     Syscall = 5  // -> task id
	SysTaskWait   Syscall = 6  // ms
	SysTaskKill   Syscall = 7  //
	SysSemNew     Syscall = 8  // initial count -> semaphore id
	SysSemP       Syscall = 9  // semaphore id -> count
	SysSemV       Syscall = 10 // semaphore id -> count
	SysTaskYield  Syscall = 11
	SysSemDestroy Syscall = 12 // semaphore id
)

func (n Syscall) String() string {
	switch n {
	case SysOSStart:
		return "os_start"
	case SysTaskNew:
		return "task_new"
	case SysTaskID:
		return "task_id"
	case SysTaskWait:
		return "task_wait"
	case SysTaskKill:
		return "task_kill"
	case SysSemNew:
		return "sem_new"
	case SysSemP:
		return "sem_p"
	case SysSemV:
		return "sem_v"
	case SysTaskYield:
		return "task_yield"
	case SysSemDestroy:
		return "sem_destroy"
	default:
		return fmt.Sprintf("syscall(%d)", uint32(n))
	}
}

// Syscall runs system call n with up to four word arguments.
func (k *Kernel) Syscall(n Syscall, args [4]uint32) (int32, error) {
	switch n {
	case SysOSStart:
		return 0, k.Start()
	case SysTaskNew:
		id, err := k.CreateTask(EntryPoint(args[0]), args[1])
		return int32(id), err
	case SysTaskID:
		id, err := k.CurrentID()
		return int32(id), err
	case SysTaskWait:
		return 0, k.Wait(args[0])
	case SysTaskKill:
		return 0, k.Kill()
	case SysSemNew:
		id, err := k.NewSemaphore(int32(args[0]))
		return int32(id), err
	case SysSemP:
		return k.Acquire(SemID(args[0]))
	case SysSemV:
		return k.Release(SemID(args[0]))
	case SysTaskYield:
		return -1, k.Yield()
	case SysSemDestroy:
		return 0, k.DestroySemaphore(SemID(args[0]))
	default:
		return -1, fmt.Errorf("%s: %w", n, ErrUnknownSyscall)
	}
}

// Dispatch is the trampoline-facing form of Syscall: failures come back as
// -1. Semaphore counts can legitimately be -1 too; callers that need to
// tell them apart use Syscall.
func (k *Kernel) Dispatch(n Syscall, args [4]uint32) int32 {
	r, err := k.Syscall(n, args)
	if err != nil {
		k.log.Warn().Err(err).Str("syscall", n.String()).Msg("system call failed")
		return -1
	}
	return r
}
