package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `fn add(x: i32, mut y: &mut i32) -> i32 {
	let z: i32 = x + *y;
	if z >= 10 && z != 0 {
		return z;
	}
	z::new(1)
	_
}
`

	tests := []struct {
		wantType TokenType
		wantLit  string
	}{
		{FN, "fn"}, {IDENT, "add"}, {LPAREN, "("}, {IDENT, "x"}, {COLON, ":"},
		{IDENT, "i32"}, {COMMA, ","}, {MUT, "mut"}, {IDENT, "y"}, {COLON, ":"},
		{AMP, "&"}, {MUT, "mut"}, {IDENT, "i32"}, {RPAREN, ")"}, {ARROW, "->"},
		{IDENT, "i32"}, {LBRACE, "{"},
		{LET, "let"}, {IDENT, "z"}, {COLON, ":"}, {IDENT, "i32"}, {ASSIGN, "="},
		{IDENT, "x"}, {PLUS, "+"}, {STAR, "*"}, {IDENT, "y"}, {SEMICOLON, ";"},
		{IF, "if"}, {IDENT, "z"}, {GTE, ">="}, {INT, "10"}, {ANDAND, "&&"},
		{IDENT, "z"}, {NEQ, "!="}, {INT, "0"}, {LBRACE, "{"},
		{RETURN, "return"}, {IDENT, "z"}, {SEMICOLON, ";"},
		{RBRACE, "}"},
		{IDENT, "z"}, {COLONCOLON, "::"}, {IDENT, "new"}, {LPAREN, "("}, {INT, "1"}, {RPAREN, ")"},
		{UNDERSCORE, "_"},
		{RBRACE, "}"},
		{EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.wantType {
			t.Fatalf("test[%d] - type wrong. expected=%s, got=%s (%q)", i, tt.wantType, tok.Type, tok.Literal)
		}

		if tt.wantLit != "" && tok.Literal != tt.wantLit {
			t.Fatalf("test[%d] - literal wrong. expected=%q, got=%q", i, tt.wantLit, tok.Literal)
		}
	}
}

func TestLineTracking(t *testing.T) {
	input := "let a: i32 = 1;\nlet b: i32 = 2;\n"
	l := New(input)

	var firstLet, secondLet Token

	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			break
		}

		if tok.Type == LET && firstLet.Line == 0 {
			firstLet = tok
		} else if tok.Type == LET {
			secondLet = tok
		}
	}

	if firstLet.Line != 1 {
		t.Errorf("first let: want line 1, got %d", firstLet.Line)
	}

	if secondLet.Line != 2 {
		t.Errorf("second let: want line 2, got %d", secondLet.Line)
	}
}

func TestIllegalChar(t *testing.T) {
	l := New("|")
	tok := l.NextToken()

	if tok.Type != ILLEGAL {
		t.Errorf("want ILLEGAL, got %s", tok.Type)
	}
}

func TestLineComment(t *testing.T) {
	l := New("// a comment\nlet")
	tok := l.NextToken()

	if tok.Type != LET {
		t.Errorf("want LET after comment, got %s", tok.Type)
	}
}
