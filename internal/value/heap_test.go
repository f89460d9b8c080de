package value

import "testing"

func TestHeapAllocateGetSet(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(1)

	if err := h.Set(addr, FromI32(42)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := h.Get(addr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.AsI32() != 42 {
		t.Errorf("Get(addr) = %d, want 42", got.AsI32())
	}
}

func TestHeapMultiSlotBlock(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(2)

	if err := h.Set(addr, FromI32(1)); err != nil {
		t.Fatalf("Set(addr): %v", err)
	}

	if err := h.Set(addr+1, FromI32(2)); err != nil {
		t.Fatalf("Set(addr+1): %v", err)
	}

	a, _ := h.Get(addr)
	b, _ := h.Get(addr + 1)

	if a.AsI32() != 1 || b.AsI32() != 2 {
		t.Errorf("multi-slot block got (%d, %d), want (1, 2)", a.AsI32(), b.AsI32())
	}
}

func TestHeapFreeThenReuse(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(1)

	if err := h.Free(addr); err != nil {
		t.Fatalf("Free: %v", err)
	}

	reused := h.Allocate(1)
	if reused != addr {
		t.Errorf("Allocate after Free should reuse the freed address; got %d, want %d", reused, addr)
	}
}

func TestHeapDoubleFreeRejected(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(1)

	if err := h.Free(addr); err != nil {
		t.Fatalf("first Free: %v", err)
	}

	if err := h.Free(addr); err == nil {
		t.Errorf("expected an error freeing an already-freed address")
	}
}

func TestHeapUseAfterFreeRejected(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(1)

	if err := h.Free(addr); err != nil {
		t.Fatalf("Free: %v", err)
	}

	if _, err := h.Get(addr); err == nil {
		t.Errorf("expected an error reading a freed address")
	}

	if err := h.Set(addr, FromI32(1)); err == nil {
		t.Errorf("expected an error writing a freed address")
	}
}

func TestHeapFreeNonBlockStartRejected(t *testing.T) {
	h := NewHeap()
	addr := h.Allocate(2)

	if err := h.Free(addr + 1); err == nil {
		t.Errorf("expected an error freeing an interior address, not a block start")
	}
}

func TestHeapInvalidAddress(t *testing.T) {
	h := NewHeap()

	if _, err := h.Get(999); err == nil {
		t.Errorf("expected an error reading an address never allocated")
	}
}
