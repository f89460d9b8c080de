package value

import "testing"

func TestPrimitiveRoundTrip(t *testing.T) {
	if v := FromI32(-7); !v.IsPrimitive() || v.AsI32() != -7 {
		t.Errorf("FromI32(-7) round trip: got tag=%v as=%d", v.Tag, v.AsI32())
	}

	if v := FromU32(42); !v.IsPrimitive() || v.AsU32() != 42 {
		t.Errorf("FromU32(42) round trip: got tag=%v as=%d", v.Tag, v.AsU32())
	}

	if v := FromBool(true); !v.IsPrimitive() || !v.AsBool() {
		t.Errorf("FromBool(true) round trip failed")
	}

	if v := FromBool(false); v.AsBool() {
		t.Errorf("FromBool(false) round trip failed")
	}
}

func TestAddressTag(t *testing.T) {
	v := FromAddress(100)

	if !v.IsAddress() || v.IsPrimitive() {
		t.Fatalf("FromAddress should be tagged Address, got %v", v.Tag)
	}

	if v.AsAddress() != 100 {
		t.Errorf("AsAddress() = %d, want 100", v.AsAddress())
	}
}

func TestAddOffset(t *testing.T) {
	base := FromAddress(10)
	off := base.AddOffset(3)

	if !off.IsAddress() || off.AsAddress() != 13 {
		t.Errorf("AddOffset(3) on addr(10) = %v, want addr(13)", off)
	}
}

func TestEqual(t *testing.T) {
	if !FromI32(5).Equal(FromI32(5)) {
		t.Errorf("equal primitives should compare equal")
	}

	if FromI32(5).Equal(FromI32(6)) {
		t.Errorf("primitives with different payloads must not compare equal")
	}

	if FromAddress(1).Equal(FromI32(1)) {
		t.Errorf("an address and a primitive with the same payload must not compare equal")
	}
}

func TestInvalidIsZeroValue(t *testing.T) {
	var v Value
	if !v.IsInvalid() {
		t.Errorf("zero-value Value should be Invalid, got %v", v.Tag)
	}
}
