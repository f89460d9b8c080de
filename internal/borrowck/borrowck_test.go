package borrowck

import (
	"testing"

	"github.com/ribbc/ribbon/internal/parser"
	"github.com/ribbc/ribbon/internal/typecheck"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{
			name: "move of copy type then reuse is fine",
			input: `
fn main() {
	let x: i32 = 5;
	let y: i32 = x;
	let z: i32 = x;
}
`,
		},
		{
			name: "move of box then reuse is an error",
			input: `
fn main() {
	let a: Box<i32> = Box::new(5);
	let b: Box<i32> = a;
	let c: Box<i32> = a;
}
`,
			wantErr: true,
			errMsg:  "use of moved value: a",
		},
		{
			name: "two shared borrows are fine",
			input: `
fn main() {
	let x: i32 = 5;
	let a: &i32 = &x;
	let b: &i32 = &x;
}
`,
		},
		{
			name: "mutable borrow then shared borrow conflicts",
			input: `
fn main() {
	let mut a: i32 = 1;
	let r: &mut i32 = &mut a;
	let s: &i32 = &a;
	*r = 2;
}
`,
			wantErr: true,
			errMsg:  "Cannot borrow a as immutable because it is already borrowed mutably",
		},
		{
			name: "two mutable borrows conflict",
			input: `
fn main() {
	let mut a: i32 = 1;
	let r: &mut i32 = &mut a;
	let s: &mut i32 = &mut a;
}
`,
			wantErr: true,
		},
		{
			name: "assign through mutable reference is fine",
			input: `
fn main() {
	let mut a: i32 = 1;
	let r: &mut i32 = &mut a;
	*r = 2;
}
`,
		},
		{
			name: "assign through immutable reference is rejected",
			input: `
fn main() {
	let a: i32 = 1;
	let r: &i32 = &a;
	*r = 2;
}
`,
			wantErr: true,
		},
		{
			name: "borrow released at scope exit allows reborrow",
			input: `
fn main() {
	let mut a: i32 = 1;
	{
		let r: &mut i32 = &mut a;
		*r = 2;
	}
	let s: &mut i32 = &mut a;
	*s = 3;
}
`,
		},
		{
			name: "branches that both move the same local agree",
			input: `
fn main() {
	let cond: bool = true;
	let a: Box<i32> = Box::new(1);
	let c: Box<i32> = if cond { a } else { a };
}
`,
		},
		{
			name: "branches moving different locals disagree",
			input: `
fn main() {
	let cond: bool = true;
	let a: Box<i32> = Box::new(1);
	let b: Box<i32> = Box::new(2);
	let c: Box<i32> = if cond { a } else { b };
}
`,
			wantErr: true,
		},
		{
			name: "one branch moves and the other doesn't disagrees",
			input: `
fn main() {
	let cond: bool = true;
	let a: Box<i32> = Box::new(1);
	if cond {
		let b: Box<i32> = a;
	}
	let c: Box<i32> = a;
}
`,
			wantErr: true,
		},
		{
			name: "reading a box through deref does not require a move",
			input: `
fn main() {
	let a: Box<i32> = Box::new(5);
	displayi32(*a);
	displayi32(*a);
}
`,
		},
		{
			name: "assigning through a box deref is rejected",
			input: `
fn main() {
	let b: Box<i32> = Box::new(5);
	*b = 6;
}
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crate, perr := parser.Parse(tt.input)
			if perr != nil {
				t.Fatalf("Parse() error = %v", perr)
			}

			typed, terr := typecheck.Check(crate)
			if terr != nil {
				t.Fatalf("Check() typecheck error = %v", terr)
			}

			err := Check(crate, typed)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr && tt.errMsg != "" {
				be, ok := err.(*Error)
				if !ok {
					t.Fatalf("expected *Error, got %T", err)
				}

				if be.Msg != tt.errMsg {
					t.Errorf("error message = %q, want %q", be.Msg, tt.errMsg)
				}
			}
		})
	}
}
