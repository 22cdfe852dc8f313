package sched

import (
	"fmt"
	"sync"
)

// Block is one allocation handed out by an Allocator.
type Block struct {
	ID  uint32
	Buf []byte
}

// Allocator is the memory contract the kernel consumes. It must be safe to
// call from the kernel's serialized context.
type Allocator interface {
	Allocate(size int) (Block, error)
	Release(b Block) bool
}

// Heap is a bounded allocator that accounts every live block.
type Heap struct {
	mu       sync.Mutex
	capacity int
	used     int
	nextID   uint32
	live     map[uint32]int
}

// NewHeap creates a heap that refuses to hand out more than capacity bytes.
func NewHeap(capacity int) *Heap {
	return &Heap{capacity: capacity, live: make(map[uint32]int)}
}

// Allocate hands out a zeroed block, or ErrOutOfMemory when size does not
// fit in what is left.
func (h *Heap) Allocate(size int) (Block, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size <= 0 || h.used+size > h.capacity {
		return Block{}, fmt.Errorf("allocate %d bytes (%d/%d in use): %w", size, h.used, h.capacity, ErrOutOfMemory)
	}
	h.nextID++
	h.used += size
	h.live[h.nextID] = size
	return Block{ID: h.nextID, Buf: make([]byte, size)}, nil
}

// Release returns b to the heap; releasing an unknown block reports false.
func (h *Heap) Release(b Block) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.live[b.ID]
	if !ok {
		return false
	}
	delete(h.live, b.ID)
	h.used -= size
	return true
}

// Used returns the bytes currently allocated.
func (h *Heap) Used() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

// Live returns the number of outstanding blocks.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}
