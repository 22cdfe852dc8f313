package sched

import (
	"encoding/binary"
	"fmt"
)

// Initial context frame, one 32-bit little-endian word per slot, lowest
// address (the saved stack pointer) first:
//
//	|    xPSR    | 17
//	|     PC     | 16
//	|     LR     | 15
//	|     R12    | 14
//	|   R0..R3   | 10..13  hardware exception frame
//	+------------+
//	|  R4..R11   | 2..9    callee-saved, restored by the switch handler
//	+------------+
//	| EXC_RETURN | 1
//	|  CONTROL   | 0  <- sp
const (
	FrameWords = 18

	FrameControl    = 0
	FrameExcReturn  = 1
	FrameR4         = 2
	FrameR0         = 10
	FrameR12        = 14
	FrameLR         = 15
	FramePC         = 16
	FramePSR        = 17
	FrameBytes      = FrameWords * 4
	ControlUnpriv   = 0x1        // thread mode runs unprivileged
	ExcReturnThread = 0xFFFFFFFD // return to thread mode on the process stack
	PSRThumb        = 1 << 24
)

// FrameBuilder prepares the saved context of a task that never ran, so that
// resuming it starts at entry and returning from entry jumps to exit.
type FrameBuilder interface {
	InitFrame(stack []byte, entry, exit EntryPoint) (sp int, err error)
}

// CortexMFrame lays out the frame expected by an ARMv7-M PendSV handler.
type CortexMFrame struct{}

// InitFrame writes the frame at the 8-byte aligned top of stack and returns
// its offset, which becomes the task's saved stack pointer.
func (CortexMFrame) InitFrame(stack []byte, entry, exit EntryPoint) (int, error) {
	// stack top must stay 8-byte aligned for the exception frame
	top := len(stack) &^ 7
	if top < FrameBytes {
		return 0, fmt.Errorf("init frame in %d byte stack: %w", len(stack), ErrBadFrame)
	}
	sp := top - FrameBytes
	frame := stack[sp:top]
	clear(frame)

	put := func(word int, v uint32) {
		binary.LittleEndian.PutUint32(frame[word*4:], v)
	}
	put(FrameControl, ControlUnpriv)
	put(FrameExcReturn, ExcReturnThread)
	put(FrameLR, uint32(exit))
	put(FramePC, uint32(entry))
	put(FramePSR, PSRThumb)
	return sp, nil
}

// Frame is a decoded saved context.
type Frame [FrameWords]uint32

// ReadFrame decodes the frame stored at sp.
func ReadFrame(stack []byte, sp int) (Frame, error) {
	var f Frame
	if sp < 0 || sp+FrameBytes > len(stack) {
		return f, fmt.Errorf("read frame at %d in %d byte stack: %w", sp, len(stack), ErrBadFrame)
	}
	for i := range f {
		f[i] = binary.LittleEndian.Uint32(stack[sp+i*4:])
	}
	return f, nil
}

// Entry returns the address execution resumes at.
func (f Frame) Entry() EntryPoint { return EntryPoint(f[FramePC]) }

// Exit returns the address a returning entry function jumps to.
func (f Frame) Exit() EntryPoint { return EntryPoint(f[FrameLR]) }
