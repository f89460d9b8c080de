package value

import "fmt"

// Heap is the VM's single growable object store, addressed as one flat
// array of Values. Every env frame, Box::new, and borrow target is a
// contiguous run of slots here; an Address Value is a plain index into
// it, so pointer arithmetic (AddOffset) and addressing a frame slot
// (&local) fall out of the same representation spec.md §4.4 describes —
// "env node = heap pair (parent_env, frame)" means a frame is itself
// just another heap-allocated block.
type Heap struct {
	buf      []Value
	live     []bool
	sizes    map[uint32]uint32 // block start address -> size, for Free and reuse
	freeList map[uint32][]uint32
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{sizes: make(map[uint32]uint32), freeList: make(map[uint32][]uint32)}
}

// Allocate reserves a contiguous block of size Values (at least one, so
// a frame with no locals still gets its own start address and live
// marker), reusing a freed block of the same size when one is
// available, and returns its address.
func (h *Heap) Allocate(size uint32) uint32 {
	if size == 0 {
		size = 1
	}

	if free := h.freeList[size]; len(free) > 0 {
		addr := free[len(free)-1]
		h.freeList[size] = free[:len(free)-1]

		for i := uint32(0); i < size; i++ {
			h.live[addr+i] = true
			h.buf[addr+i] = Value{}
		}

		return addr
	}

	addr := uint32(len(h.buf))
	h.buf = append(h.buf, make([]Value, size)...)

	live := make([]bool, size)
	for i := range live {
		live[i] = true
	}

	h.live = append(h.live, live...)
	h.sizes[addr] = size

	return addr
}

// Free releases the block starting at addr. addr must be a value
// previously returned by Allocate (not an interior offset into it).
func (h *Heap) Free(addr uint32) error {
	size, ok := h.sizes[addr]
	if !ok {
		return fmt.Errorf("free: %d is not a block start address", addr)
	}

	if addr >= uint32(len(h.live)) || !h.live[addr] {
		return fmt.Errorf("free: double free of address %d", addr)
	}

	for i := uint32(0); i < size; i++ {
		h.live[addr+i] = false
	}

	h.freeList[size] = append(h.freeList[size], addr)

	return nil
}

// Get reads the Value at addr.
func (h *Heap) Get(addr uint32) (Value, error) {
	if err := h.checkLive(addr); err != nil {
		return Value{}, err
	}

	return h.buf[addr], nil
}

// Set writes v at addr.
func (h *Heap) Set(addr uint32, v Value) error {
	if err := h.checkLive(addr); err != nil {
		return err
	}

	h.buf[addr] = v

	return nil
}

func (h *Heap) checkLive(addr uint32) error {
	if addr >= uint32(len(h.live)) {
		return fmt.Errorf("invalid heap address %d", addr)
	}

	if !h.live[addr] {
		return fmt.Errorf("use after free: address %d", addr)
	}

	return nil
}
