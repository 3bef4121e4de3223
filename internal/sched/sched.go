// Package sched implements the cooperative kernel thread scheduler: a
// fixed-capacity static thread table, a singly linked FIFO run-queue,
// and a hand-rolled stack-pointer-swap context switch primitive.
//
// This deliberately does not reuse the teacher kernel's goroutine.go,
// which patches the real Go runtime's scheduler (m/g/p structs, Gosched,
// stack bounds) to host kernel-mode goroutines on bare metal. spec.md
// describes a much smaller, self-contained scheduler closer to a
// textbook cooperative one, so this package owns its own thread table
// and context-switch assembly (switch_amd64.s) instead of borrowing the
// Go runtime's.
//
// The context-switch primitive is amd64-only, matching the x86_64
// target this core boots on; there is no portable fallback.
package sched

import (
	"runtime"
	"runtime/debug"

	"kestrel/internal/klog"
)

var log = klog.Get("sched")

// State is a thread's scheduling state.
type State int

const (
	Empty State = iota
	Ready
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// MaxThreads is the static thread table's capacity.
const MaxThreads = 8

// StackSize is the fixed per-thread stack size.
const StackSize = 16 * 1024

// EntryFunc is a thread's top-level function.
type EntryFunc func(arg uintptr)

// tcb is one thread control block. Index in the static table is the
// thread's id.
type tcb struct {
	id    int
	state State
	sp    uintptr
	stack []byte
	entry EntryFunc
	arg   uintptr
}

// Scheduler owns the static thread table, the FIFO run-queue, and the
// currently running thread.
type Scheduler struct {
	threads  [MaxThreads]tcb
	runQueue []int // FIFO of thread ids, head at index 0
	current  int   // index into threads, or -1 if none is running
	started  bool

	// mainSP holds the SP of the host Go context that called Start, so
	// the last thread to finish can switch back into it instead of
	// leaving the process with nowhere to return to.
	mainSP uintptr
}

// New constructs an empty scheduler. Every table slot, including 0, is
// available to Create; the caller of Start (the "main" context switched
// away from) has no slot and is tracked through mainSP instead.
func New() *Scheduler {
	s := &Scheduler{current: -1}
	for i := range s.threads {
		s.threads[i].id = i
		s.threads[i].state = Empty
	}
	return s
}

// Create allocates a TCB slot and a stack for entry, appends the new
// thread to the run-queue, and returns its id. It fails (ok=false) if
// every slot is occupied.
func (s *Scheduler) Create(entry EntryFunc, arg uintptr) (id int, ok bool) {
	for i := range s.threads {
		if s.threads[i].state == Empty {
			t := &s.threads[i]
			t.state = Ready
			t.entry = entry
			t.arg = arg
			t.stack = make([]byte, StackSize)
			t.sp = prepareStack(t.stack, i)
			s.runQueue = append(s.runQueue, i)
			log.Debugf("create: thread %d", i)
			return i, true
		}
	}
	return 0, false
}

// dequeue pops the head of the run-queue, or returns ok=false if empty.
func (s *Scheduler) dequeue() (int, bool) {
	if len(s.runQueue) == 0 {
		return 0, false
	}
	id := s.runQueue[0]
	s.runQueue = s.runQueue[1:]
	return id, true
}

func (s *Scheduler) enqueue(id int) {
	s.runQueue = append(s.runQueue, id)
}

// Start dequeues the head of the run-queue, marks it Running, and
// switches into it. It never returns to its caller in the sense that
// spec.md describes — on real hardware the calling stack is abandoned;
// this host build returns once every created thread has run to Done,
// which is what lets tests drive it deterministically.
//
// swapto runs thread entry points on heap-allocated stacks the Go
// runtime's own g does not know about, so this pins the calling OS
// thread and disables GC for the whole run: a GC triggered while the
// current SP points outside the bounds the runtime thinks this
// goroutine owns would scan the wrong stack. Entry functions must still
// stay within StackSize — a stack-growth check tripping mid-switch is
// not guarded against (see the sched package doc and DESIGN.md).
func (s *Scheduler) Start() {
	s.started = true
	id, ok := s.dequeue()
	if !ok {
		return
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	prevGC := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prevGC)

	s.threads[id].state = Running
	s.current = id
	activeScheduler = s
	swapto(s.threads[id].sp, &s.mainSP)
	// Control only reaches here once the last thread to finish has
	// switched back into mainSP (see finishCurrent).
}

// Yield hands control to the next Ready thread, if any. If the
// run-queue is empty it returns immediately. Otherwise it demotes the
// current thread (if Running) back to Ready and appends it, then
// switches into the dequeued thread.
func (s *Scheduler) Yield() {
	next, ok := s.dequeue()
	if !ok {
		return
	}

	prev := s.current
	if prev >= 0 && s.threads[prev].state == Running {
		s.threads[prev].state = Ready
		s.enqueue(prev)
	}

	s.threads[next].state = Running
	s.current = next
	swapto(s.threads[next].sp, &s.threads[prev].sp)
}

// finishCurrent is called by the trampoline when a thread's entry
// function returns. It marks the thread Done, so it never reappears on
// the run-queue, and switches to the next Ready thread, or back to the
// host context that called Start if none remains.
func (s *Scheduler) finishCurrent() {
	id := s.current
	s.threads[id].state = Done
	s.threads[id].stack = nil
	log.Debugf("thread %d done", id)

	next, ok := s.dequeue()
	if !ok {
		s.current = -1
		swapto(s.mainSP, &s.threads[id].sp)
		return
	}
	s.threads[next].state = Running
	s.current = next
	swapto(s.threads[next].sp, &s.threads[id].sp)
}

// ThreadInfo is an enumeration snapshot of one thread.
type ThreadInfo struct {
	ID    int
	State State
	SP    uintptr
}

// Enumerate copies up to max thread snapshots into out and returns the
// number written.
func (s *Scheduler) Enumerate(out []ThreadInfo) int {
	n := 0
	for i := range s.threads {
		if n >= len(out) {
			break
		}
		if s.threads[i].state == Empty {
			continue
		}
		out[n] = ThreadInfo{ID: s.threads[i].id, State: s.threads[i].state, SP: s.threads[i].sp}
		n++
	}
	return n
}

// CurrentID returns the id of the running thread, or -1 if none.
func (s *Scheduler) CurrentID() int {
	return s.current
}
