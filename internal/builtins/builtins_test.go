package builtins

import (
	"strings"
	"testing"

	"github.com/ribbc/ribbon/internal/value"
)

type bufSink struct {
	lines []string
}

func (b *bufSink) Write(s string) { b.lines = append(b.lines, s) }

func TestDisplayI32(t *testing.T) {
	e, ok := Lookup("displayi32")
	if !ok {
		t.Fatal("displayi32 not registered")
	}

	if e.Arity != 1 {
		t.Errorf("displayi32 arity = %d, want 1", e.Arity)
	}

	sink := &bufSink{}
	e.Handler(sink, []value.Value{value.FromI32(-5)})

	if got := strings.Join(sink.lines, ""); got != "-5" {
		t.Errorf("displayi32(-5) wrote %q, want %q", got, "-5")
	}
}

func TestDisplayU32(t *testing.T) {
	e, ok := Lookup("displayu32")
	if !ok {
		t.Fatal("displayu32 not registered")
	}

	sink := &bufSink{}
	e.Handler(sink, []value.Value{value.FromU32(4000000000)})

	if got := strings.Join(sink.lines, ""); got != "4000000000" {
		t.Errorf("displayu32(4000000000) wrote %q, want %q", got, "4000000000")
	}
}

func TestDisplayBool(t *testing.T) {
	e, ok := Lookup("displaybool")
	if !ok {
		t.Fatal("displaybool not registered")
	}

	sink := &bufSink{}
	e.Handler(sink, []value.Value{value.FromBool(true)})

	if got := strings.Join(sink.lines, ""); got != "true" {
		t.Errorf("displaybool(true) wrote %q, want %q", got, "true")
	}
}

func TestIsBuiltinAndLookupMiss(t *testing.T) {
	if !IsBuiltin("displayi32") {
		t.Errorf("displayi32 should be a builtin")
	}

	if IsBuiltin("not_a_builtin") {
		t.Errorf("not_a_builtin should not be a builtin")
	}

	if _, ok := Lookup("not_a_builtin"); ok {
		t.Errorf("Lookup(not_a_builtin) should report ok=false")
	}
}
