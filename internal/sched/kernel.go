package sched

import (
	"encoding/csv"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/rs/zerolog"
)

// DefaultKillEntry is the address of the kill trampoline a task returns to
// when its entry function ends.
const DefaultKillEntry EntryPoint = 0x08000101

// Kernel holds the whole scheduler state: the task arena, the ready and
// sleeping queues and the semaphore table. Every operation runs under one
// lock, which stands in for the interrupt priority scheme that keeps the
// tick handler and system calls from interleaving.
type Kernel struct {
	mu        sync.Mutex // protects everything below
	cfg       Config
	quantumMS int64
	arena     *arena
	ready     *TaskQueue // head is the running task
	sleeping  *TaskQueue
	ids       *treemap.Map // TaskID -> Handle
	sems      *treemap.Map // SemID -> *Semaphore
	nextID    TaskID
	nextSem   SemID
	started   bool
	ticks     uint64 // base ticks since start
	quantum   int    // base ticks into the current quantum
	prev      Handle // task that ran before the last switch request

	alloc     Allocator
	frames    FrameBuilder
	switcher  Switcher
	timer     Timer
	ownClock  *TickClock // set when the kernel created its own timer
	mask      PriorityMask
	killEntry EntryPoint
	log       zerolog.Logger

	// events
	statusCh chan StatusEvent
	pending  []StatusEvent
	dropped  atomic.Uint64
	out      io.Writer

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option customizes a Kernel.
type Option func(*Kernel)

// WithAllocator sets where task and semaphore memory comes from; a Heap of
// Config.HeapBytes by default.
func WithAllocator(a Allocator) Option { return func(k *Kernel) { k.alloc = a } }

// WithFrameBuilder sets the initial context layout; CortexMFrame by default.
func WithFrameBuilder(f FrameBuilder) Option { return func(k *Kernel) { k.frames = f } }

// WithSwitcher sets the consumer of switch requests; a private PendSV by default.
func WithSwitcher(s Switcher) Option { return func(k *Kernel) { k.switcher = s } }

// WithTimer sets the base tick source armed by Start. A caller-supplied
// timer is the caller's to stop; without one the kernel owns a TickClock
// that Stop shuts down.
func WithTimer(t Timer) Option { return func(k *Kernel) { k.timer = t } }

// WithPriorityMask sets the interrupt threshold Start lowers.
func WithPriorityMask(m PriorityMask) Option { return func(k *Kernel) { k.mask = m } }

// WithLogger sets the kernel logger; zerolog.Nop() by default.
func WithLogger(l zerolog.Logger) Option { return func(k *Kernel) { k.log = l } }

// WithKillEntry sets the address tasks return to when their entry ends.
func WithKillEntry(e EntryPoint) Option { return func(k *Kernel) { k.killEntry = e } }

// WithEventOutput sets where Run prints events; os.Stdout by default.
func WithEventOutput(w io.Writer) Option { return func(k *Kernel) { k.out = w } }

// New creates a kernel with no tasks and empty queues.
func New(cfg Config, opts ...Option) *Kernel {
	cfg = cfg.sanitize()
	a := newArena(cfg.MaxTasks)
	k := &Kernel{
		cfg:       cfg,
		quantumMS: cfg.QuantumMS(),
		arena:     a,
		ready:     newTaskQueue("ready", a),
		sleeping:  newTaskQueue("sleeping", a),
		ids:       treemap.NewWith(taskIDComparator),
		sems:      treemap.NewWith(semIDComparator),
		nextID:    1,
		nextSem:   1,
		prev:      NoHandle,
		killEntry: DefaultKillEntry,
		log:       zerolog.Nop(),
		out:       os.Stdout,
	}
	if cfg.EventBuffer > 0 {
		k.statusCh = make(chan StatusEvent, cfg.EventBuffer)
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.alloc == nil {
		k.alloc = NewHeap(cfg.HeapBytes)
	}
	if k.frames == nil {
		k.frames = CortexMFrame{}
	}
	if k.switcher == nil {
		k.switcher = &PendSV{}
	}
	if k.timer == nil {
		k.ownClock = NewTickClock()
		k.timer = k.ownClock
	}
	if k.mask == nil {
		k.mask = NewBasePriority()
	}
	return k
}

// Stop halts the kernel's own tick clock and waits for an in-flight tick.
// It does nothing when the timer came from WithTimer. It must not be called
// from a tick handler.
func (k *Kernel) Stop() {
	if k.ownClock != nil {
		k.ownClock.Stop()
	}
}

// Config returns the sanitized configuration the kernel runs with.
func (k *Kernel) Config() Config { return k.cfg }

// lock/unlock bracket every operation; events queued while locked are
// published once the lock is dropped so a slow consumer never stalls the
// tick path.
func (k *Kernel) lock() { k.mu.Lock() }

func (k *Kernel) unlock() {
	evs := k.pending
	k.pending = nil
	k.mu.Unlock()
	for _, ev := range evs {
		k.publish(ev)
	}
}

func (k *Kernel) emit(kind StatusKind, id TaskID) *StatusEvent {
	k.pending = append(k.pending, StatusEvent{
		Time:   time.Now(),
		Tick:   k.ticks,
		Kind:   kind,
		TaskID: id,
	})
	return &k.pending[len(k.pending)-1]
}

func (k *Kernel) publish(ev StatusEvent) {
	if k.statusCh == nil {
		return
	}
	select {
	case k.statusCh <- ev:
	default:
		n := k.dropped.Add(1)
		k.log.Warn().Str("event", ev.Kind.String()).Uint64("dropped", n).Msg("status channel full, event dropped")
	}
}

// Dropped counts events lost to a full status channel.
func (k *Kernel) Dropped() uint64 { return k.dropped.Load() }

func (k *Kernel) requestSwitch() {
	k.switcher.RequestSwitch()
}

// running returns the ready queue's head, which is the running task once
// the kernel has started.
func (k *Kernel) running() (Handle, *Task, error) {
	if !k.started {
		return NoHandle, nil, ErrNotStarted
	}
	h, ok := k.ready.Head()
	if !ok {
		// a started kernel always has a running task
		k.log.Error().Msg("ready queue empty after start")
		return NoHandle, nil, ErrEmptyQueue
	}
	return h, k.arena.task(h), nil
}

// promote marks the new head of the ready queue RUNNING and asks for a switch.
func (k *Kernel) promote(prev Handle) {
	h, _ := k.ready.Head()
	t := k.arena.task(h)
	t.Status = StatusRunning
	k.prev = prev
	k.requestSwitch()
	k.emit(StatusDispatch, t.ID)
}

// lastReady reports whether the running task is the only ready one, in
// which case it cannot leave the ready queue.
func (k *Kernel) lastReady() bool {
	h, ok := k.ready.Head()
	return ok && h == k.ready.tail
}

func taskIDComparator(a, b any) int {
	return utils.UInt32Comparator(uint32(a.(TaskID)), uint32(b.(TaskID)))
}

func semIDComparator(a, b any) int {
	return utils.UInt32Comparator(uint32(a.(SemID)), uint32(b.(SemID)))
}
