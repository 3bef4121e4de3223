//go:build amd64

package sched

import (
	"reflect"
	"unsafe"
)

// activeScheduler is the scheduler currently driving a context switch.
// The trampoline below has no way to receive arguments (it is entered
// via a bare RET, not a call), so it reaches back through this global to
// find out which thread it is running as.
var activeScheduler *Scheduler

// swapto saves the live stack pointer into *oldSPSlot, switches the
// stack to newSP, and returns — into whatever the new stack's top frame
// holds as a return address. Implemented in switch_amd64.s.
//
//go:noescape
func swapto(newSP uintptr, oldSPSlot *uintptr)

// trampolinePC is the raw entry address of trampoline, used as the
// fabricated return address a freshly prepared stack resumes into.
var trampolinePC = reflect.ValueOf(trampoline).Pointer()

// trampoline runs on a brand-new thread's stack the first time it is
// switched into. It calls the thread's entry point and, when that
// returns, hands off to finishCurrent so the thread never reappears on
// the run-queue (spec.md section 4.5's scheduler invariant (iii)).
//
//go:nosplit
func trampoline() {
	s := activeScheduler
	t := &s.threads[s.current]
	t.entry(t.arg)
	s.finishCurrent()
}

// calleeSavedSlots is the number of 8-byte registers swapto preserves
// across a switch (BP, BX, R12-R15).
const calleeSavedSlots = 6

// prepareStack lays out a fresh stack so that the first swapto into it
// pops calleeSavedSlots zeroed register slots, then RETs into
// trampoline. threadIndex is unused on this build; trampoline instead
// reads activeScheduler.current, which the caller sets before switching.
func prepareStack(stack []byte, threadIndex int) uintptr {
	top := uintptr(unsafe.Pointer(&stack[0])) + uintptr(len(stack))
	top &^= 0xF

	frame := top - uintptr(calleeSavedSlots*8+8)
	frame &^= 0xF

	for i := 0; i < calleeSavedSlots; i++ {
		*(*uint64)(unsafe.Pointer(frame + uintptr(i*8))) = 0
	}
	retAddr := frame + uintptr(calleeSavedSlots*8)
	*(*uintptr)(unsafe.Pointer(retAddr)) = trampolinePC

	return frame
}
