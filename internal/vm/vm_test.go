package vm

import (
	"strings"
	"testing"

	"github.com/ribbc/ribbon/internal/borrowck"
	"github.com/ribbc/ribbon/internal/compiler"
	"github.com/ribbc/ribbon/internal/parser"
	"github.com/ribbc/ribbon/internal/typecheck"
)

type bufSink struct {
	lines []string
}

func (b *bufSink) Write(s string) { b.lines = append(b.lines, s) }

// run drives the full pipeline spec.md's scenarios are stated against:
// parse, type-check, borrow-check, compile, execute.
func run(t *testing.T, input string) ([]string, error) {
	t.Helper()

	crate, err := parser.Parse(input)
	if err != nil {
		return nil, err
	}

	typed, err := typecheck.Check(crate)
	if err != nil {
		return nil, err
	}

	if err := borrowck.Check(crate, typed); err != nil {
		return nil, err
	}

	prog, err := compiler.Compile(crate, typed)
	if err != nil {
		return nil, err
	}

	sink := &bufSink{}
	m := New(prog, sink)

	if err := m.Run(); err != nil {
		return nil, err
	}

	return sink.lines, nil
}

func TestScenarioS1DirectDisplay(t *testing.T) {
	out, err := run(t, `fn main() { displayi32(32); }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 1 || out[0] != "32" {
		t.Errorf("output = %v, want [32]", out)
	}
}

func TestScenarioS2BoxRoundTrip(t *testing.T) {
	out, err := run(t, `
fn main() {
	let a: Box<i32> = Box::new(32);
	displayi32(*a);
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 1 || out[0] != "32" {
		t.Errorf("output = %v, want [32]", out)
	}
}

func TestScenarioS3ForwardReferencedRecursion(t *testing.T) {
	out, err := run(t, `
fn add(x: i32, y: i32) -> i32 {
	if y == 0 { return x; } else { return add(x+1, y-1); }
}
fn main() { let a: i32 = 32; let b: i32 = 64; displayi32(add(a,b)); }
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 1 || out[0] != "96" {
		t.Errorf("output = %v, want [96]", out)
	}
}

func TestScenarioS5BoxThroughFunction(t *testing.T) {
	out, err := run(t, `
fn foo(x: i32) -> Box<i32> { let b: Box<i32> = Box::new(x); b }
fn main() { let a: Box<i32> = foo(123); displayi32(*a + 1); }
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 1 || out[0] != "124" {
		t.Errorf("output = %v, want [124]", out)
	}
}

func TestScenarioS6BorrowViolation(t *testing.T) {
	_, err := run(t, `
fn main() { let mut a: i32 = 1; let r: &mut i32 = &mut a; let s: &i32 = &a; *r = 2; }
`)
	if err == nil {
		t.Fatal("expected a borrow-check error")
	}

	if !strings.Contains(err.Error(), "Cannot borrow a as immutable because it is already borrowed mutably") {
		t.Errorf("error = %q, want it to contain the spec.md S6 message", err.Error())
	}
}

func TestLoopWithBreakAndContinue(t *testing.T) {
	out, err := run(t, `
fn main() {
	let mut i: i32 = 0;
	let mut sum: i32 = 0;
	loop {
		i = i + 1;
		if i > 10 {
			break;
		}
		if i % 2 == 0 {
			continue;
		}
		sum = sum + i;
	}
	displayi32(sum);
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 1 || out[0] != "25" {
		t.Errorf("output = %v, want [25]", out)
	}
}

func TestMatchExpression(t *testing.T) {
	out, err := run(t, `
fn classify(x: i32) -> i32 {
	match x {
		0 => 100,
		1 => 200,
		_ => 300,
	}
}
fn main() {
	displayi32(classify(1));
	displayi32(classify(5));
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 2 || out[0] != "200" || out[1] != "300" {
		t.Errorf("output = %v, want [200 300]", out)
	}
}

func TestMatchDefaultArmNotLast(t *testing.T) {
	out, err := run(t, `
fn classify(x: i32) -> i32 {
	match x {
		_ => 300,
		0 => 100,
		1 => 200,
	}
}
fn main() {
	displayi32(classify(0));
	displayi32(classify(9));
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 2 || out[0] != "300" || out[1] != "300" {
		t.Errorf("output = %v, want [300 300]", out)
	}
}
