package typecheck

import (
	"testing"

	"github.com/ribbc/ribbon/internal/parser"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{
			name: "let with matching annotation",
			input: `
fn main() {
	let x: i32 = 5;
}
`,
		},
		{
			name: "let type mismatch",
			input: `
fn main() {
	let x: bool = 5;
}
`,
			wantErr: true,
		},
		{
			name: "forward-referenced recursion",
			input: `
fn add(x: i32, y: i32) -> i32 {
	return x + y;
}

fn main() -> i32 {
	return fact(3);
}

fn fact(n: i32) -> i32 {
	if n == 0 {
		1
	} else {
		n * fact(n - 1)
	}
}
`,
		},
		{
			name: "undefined variable",
			input: `
fn main() {
	let x: i32 = y;
}
`,
			wantErr: true,
			errMsg:  "undefined variable: y",
		},
		{
			name: "if without else must be unit",
			input: `
fn main() {
	if true {
		5
	}
}
`,
			wantErr: true,
		},
		{
			name: "if/else arm type mismatch",
			input: `
fn main() -> i32 {
	if true { 1 } else { true }
}
`,
			wantErr: true,
		},
		{
			name: "match missing default arm",
			input: `
fn main() -> i32 {
	let x: i32 = 1;
	match x {
		1 => 10,
		2 => 20,
	}
}
`,
			wantErr: true,
			errMsg:  "match must end in a default arm",
		},
		{
			name: "match with default arm",
			input: `
fn main() -> i32 {
	let x: i32 = 1;
	match x {
		1 => 10,
		_ => 0,
	}
}
`,
		},
		{
			name: "break outside loop",
			input: `
fn main() {
	break;
}
`,
			wantErr: true,
		},
		{
			name: "arithmetic type mismatch",
			input: `
fn mix(x: i32, y: u32) -> i32 {
	x + y
}

fn main() {
}
`,
			wantErr: true,
			errMsg:  "operator + requires two operands of the same numeric type, got i32 and u32",
		},
		{
			name: "borrow of non-lvalue",
			input: `
fn main() {
	let r: &i32 = &5;
}
`,
			wantErr: true,
		},
		{
			name: "deref of non-reference",
			input: `
fn main() {
	let x: i32 = 5;
	let y: i32 = *x;
}
`,
			wantErr: true,
		},
		{
			name: "box and deref round trip",
			input: `
fn main() {
	let b: Box<i32> = Box::new(5);
	let x: i32 = *b;
}
`,
		},
		{
			name: "if/else arms that both return diverge, not unit",
			input: `
fn add(x: i32, y: i32) -> i32 {
	if y == 0 { return x; } else { return add(x+1, y-1); }
}

fn main() {
	let a: i32 = 32;
}
`,
		},
		{
			name: "wrong argument count",
			input: `
fn add(x: i32, y: i32) -> i32 {
	return x + y;
}

fn main() {
	let z: i32 = add(1);
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

			_, err := Check(crate)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr && tt.errMsg != "" {
				te, ok := err.(*Error)
				if !ok {
					t.Fatalf("expected *Error, got %T", err)
				}

				if te.Msg != tt.errMsg {
					t.Errorf("error message = %q, want %q", te.Msg, tt.errMsg)
				}
			}
		})
	}
}
