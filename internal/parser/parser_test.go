package parser

import "testing"

func TestParseValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name: "minimal main",
			input: `
fn main() {
	let x: i32 = 5;
}
`,
		},
		{
			name: "function with params and return",
			input: `
fn add(x: i32, y: i32) -> i32 {
	return x + y;
}
`,
		},
		{
			name: "if else as trailing expression",
			input: `
fn main() -> i32 {
	let x: i32 = 1;
	if x == 1 { 10 } else { 20 }
}
`,
		},
		{
			name: "loop with break and continue",
			input: `
fn main() {
	let mut i: i32 = 0;
	loop {
		if i == 10 {
			break;
		}
		i = i + 1;
		continue;
	}
}
`,
		},
		{
			name: "match with literal and default arm",
			input: `
fn main() -> i32 {
	let x: i32 = 2;
	match x {
		1 => 10,
		2 => 20,
		_ => 0,
	}
}
`,
		},
		{
			name: "borrow, deref, box",
			input: `
fn main() {
	let a: i32 = 5;
	let r: &i32 = &a;
	let b: Box<i32> = Box::new(10);
	let v: i32 = *r + *b;
}
`,
		},
		{
			name: "nested else if",
			input: `
fn classify(x: i32) -> i32 {
	if x < 0 {
		0
	} else if x == 0 {
		1
	} else {
		2
	}
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crate, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			if len(crate.Funcs) == 0 {
				t.Fatalf("expected at least one function")
			}
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name: "let without type annotation",
			input: `
fn main() {
	let x = 5;
}
`,
		},
		{
			name: "missing semicolon after let",
			input: `
fn main() {
	let x: i32 = 5
}
`,
		},
		{
			name: "unclosed block",
			input: `
fn main() {
	let x: i32 = 5;
`,
		},
		{
			name: "missing fn keyword",
			input: `
add(x: i32) {
	return x;
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Fatalf("expected a syntax error, got none")
			}
		})
	}
}

func TestOperatorPrecedence(t *testing.T) {
	input := `
fn main() -> bool {
	1 + 2 * 3 == 7 && true
}
`

	crate, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fn, ok := crate.FuncByName("main")
	if !ok {
		t.Fatalf("expected main function")
	}

	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected one trailing expression statement, got %d", len(fn.Body.Stmts))
	}

	if got, want := fn.Body.Stmts[0].String(), "(((1 + (2 * 3)) == 7) && true)"; got != want {
		t.Errorf("parsed %s, want %s", got, want)
	}
}
