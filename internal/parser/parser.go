// Package parser turns a token stream into the internal/ast tree.
// Grounded on yarlson/yarlang's parser/parser.go: a Pratt expression
// parser (precedence table + expectPeek-style token assertions) over a
// recursive-descent statement/declaration layer, narrowed to spec.md's
// grammar subset (functions, let, if/else, match, loop, break,
// continue, return, assignment, &/&mut/*, Box::new, calls).
package parser

import (
	"fmt"
	"strconv"

	"github.com/ribbc/ribbon/internal/ast"
	"github.com/ribbc/ribbon/internal/lexer"
)

const (
	_ int = iota
	LOWEST
	OR
	AND
	EQUALS
	LESSGREATER
	SUM
	PRODUCT
)

var precedences = map[lexer.TokenType]int{
	lexer.OROR: OR, lexer.ANDAND: AND,
	lexer.EQ: EQUALS, lexer.NEQ: EQUALS,
	lexer.LT: LESSGREATER, lexer.GT: LESSGREATER, lexer.LTE: LESSGREATER, lexer.GTE: LESSGREATER,
	lexer.PLUS: SUM, lexer.MINUS: SUM,
	lexer.STAR: PRODUCT, lexer.SLASH: PRODUCT, lexer.PERCENT: PRODUCT,
}

// tokenSymbols renders a token type as the literal text a syntax error
// should name it by, rather than lexer.TokenType's debug name.
var tokenSymbols = map[lexer.TokenType]string{
	lexer.LPAREN: "(", lexer.RPAREN: ")", lexer.LBRACE: "{", lexer.RBRACE: "}",
	lexer.COMMA: ",", lexer.SEMICOLON: ";", lexer.COLON: ":", lexer.COLONCOLON: "::",
	lexer.ARROW: "->", lexer.FATARROW: "=>", lexer.ASSIGN: "=", lexer.LT: "<", lexer.GT: ">",
	lexer.FN: "fn",
}

func symbol(t lexer.TokenType) string {
	if s, ok := tokenSymbols[t]; ok {
		return s
	}

	return t.String()
}

// Error is a syntax error carrying the offending token's position, in
// the "mismatched input '<got>' expecting '<want>' at <got>" style
// spec.md's scenario S4 names.
type Error struct {
	Msg  string
	Line int
	Col  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("Syntax error. line %d:%d %s", e.Line, e.Col, e.Msg)
}

// Parser is a recursive-descent parser with Pratt-style expression
// parsing for binary operators.
type Parser struct {
	l *lexer.Lexer

	curToken  lexer.Token
	peekToken lexer.Token
}

// Parse lexes and parses input into a *ast.Crate, or returns the first
// syntax error encountered.
func Parse(input string) (*ast.Crate, error) {
	p := &Parser{l: lexer.New(input)}
	p.nextToken()
	p.nextToken()

	return p.parseCrate()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) pos() ast.Position {
	return ast.Position{Line: p.curToken.Line, Column: p.curToken.Column}
}

func (p *Parser) fail(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Line: p.curToken.Line, Col: p.curToken.Column}
}

// tokenText is the current token's display text for error messages;
// EOF has no literal of its own.
func (p *Parser) tokenText() string {
	if p.curToken.Type == lexer.EOF {
		return "<EOF>"
	}

	return p.curToken.Literal
}

// mismatched builds a syntax error in ANTLR's "mismatched input 'X'
// expecting 'Y' at X" shape (spec.md scenario S4).
func (p *Parser) mismatched(want string) error {
	got := p.tokenText()
	return p.fail("mismatched input '%s' expecting '%s' at %s", got, want, got)
}

func (p *Parser) expect(t lexer.TokenType) error {
	if p.curToken.Type != t {
		return p.mismatched(symbol(t))
	}

	p.nextToken()

	return nil
}

func (p *Parser) parseCrate() (*ast.Crate, error) {
	crate := &ast.Crate{Position: p.pos()}

	for p.curToken.Type != lexer.EOF {
		if p.curToken.Type != lexer.FN {
			return nil, p.mismatched("fn")
		}

		fn, err := p.parseFuncDecl()
		if err != nil {
			return nil, err
		}

		crate.Funcs = append(crate.Funcs, fn)
	}

	return crate, nil
}

func (p *Parser) parseFuncDecl() (*ast.FuncDecl, error) {
	pos := p.pos()
	if err := p.expect(lexer.FN); err != nil {
		return nil, err
	}

	if p.curToken.Type != lexer.IDENT {
		return nil, p.mismatched("identifier")
	}

	name := p.curToken.Literal
	p.nextToken()

	if err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	var params []ast.Param

	for p.curToken.Type != lexer.RPAREN {
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}

		params = append(params, param)

		if p.curToken.Type == lexer.COMMA {
			p.nextToken()
		}
	}

	if err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}

	var retType ast.Type

	if p.curToken.Type == lexer.ARROW {
		p.nextToken()

		t, err := p.parseType()
		if err != nil {
			return nil, err
		}

		retType = t
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.FuncDecl{Position: pos, Name: name, Params: params, ReturnType: retType, Body: body}, nil
}

func (p *Parser) parseParam() (ast.Param, error) {
	pos := p.pos()
	mut := false

	if p.curToken.Type == lexer.MUT {
		mut = true
		p.nextToken()
	}

	if p.curToken.Type != lexer.IDENT {
		return ast.Param{}, p.mismatched("identifier")
	}

	name := p.curToken.Literal
	p.nextToken()

	if err := p.expect(lexer.COLON); err != nil {
		return ast.Param{}, err
	}

	t, err := p.parseType()
	if err != nil {
		return ast.Param{}, err
	}

	return ast.Param{Position: pos, Mut: mut, Name: name, Type: t}, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	pos := p.pos()

	switch p.curToken.Type {
	case lexer.AMP:
		p.nextToken()

		mut := false
		if p.curToken.Type == lexer.MUT {
			mut = true
			p.nextToken()
		}

		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}

		return &ast.RefTypeExpr{Position: pos, Mut: mut, Elem: elem}, nil
	case lexer.BOX:
		p.nextToken()

		if err := p.expect(lexer.LT); err != nil {
			return nil, err
		}

		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}

		if err := p.expect(lexer.GT); err != nil {
			return nil, err
		}

		return &ast.BoxTypeExpr{Position: pos, Elem: elem}, nil
	case lexer.IDENT:
		name := p.curToken.Literal
		p.nextToken()

		return &ast.PrimName{Position: pos, Name: name}, nil
	default:
		return nil, p.mismatched("a type")
	}
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	pos := p.pos()
	if err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}

	block := &ast.Block{Position: pos}

	for p.curToken.Type != lexer.RBRACE {
		if p.curToken.Type == lexer.EOF {
			return nil, p.mismatched("}")
		}

		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		block.Stmts = append(block.Stmts, stmt)
	}

	if err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}

	return block, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	if p.curToken.Type == lexer.LET {
		return p.parseLetStmt()
	}

	expr, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}

	semicolon := false
	if p.curToken.Type == lexer.SEMICOLON {
		p.nextToken()
		semicolon = true
	}

	return &ast.ExprStmt{Expr: expr, Semicolon: semicolon}, nil
}

func (p *Parser) parseLetStmt() (*ast.LetStmt, error) {
	pos := p.pos()
	if err := p.expect(lexer.LET); err != nil {
		return nil, err
	}

	mut := false
	if p.curToken.Type == lexer.MUT {
		mut = true
		p.nextToken()
	}

	if p.curToken.Type != lexer.IDENT {
		return nil, p.mismatched("identifier")
	}

	name := p.curToken.Literal
	p.nextToken()

	// The type annotation is mandatory (spec.md §4.1): a bare `let x = e;`
	// is a syntax error, not inferred.
	if err := p.expect(lexer.COLON); err != nil {
		return nil, err
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if err := p.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}

	value, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}

	if err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}

	return &ast.LetStmt{Position: pos, Mut: mut, Name: name, Type: typ, Value: value}, nil
}

// parseExpr parses an assignment (lowest precedence, not part of the
// Pratt climb since only an l-value may appear on its left) wrapping
// parseBinary for everything else.
func (p *Parser) parseExpr(precedence int) (ast.Expr, error) {
	left, err := p.parseBinary(precedence)
	if err != nil {
		return nil, err
	}

	if precedence == LOWEST && p.curToken.Type == lexer.ASSIGN {
		pos := p.pos()
		p.nextToken()

		value, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}

		return &ast.AssignExpr{Position: pos, Target: left, Value: value}, nil
	}

	return left, nil
}

func (p *Parser) parseBinary(precedence int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for precedence < p.curPrecedence() {
		op := p.curToken.Literal
		pos := p.pos()
		opPrec := p.curPrecedence()
		p.nextToken()

		right, err := p.parseBinary(opPrec)
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{Position: pos, Left: left, Op: op, Right: right}
	}

	return left, nil
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}

	return LOWEST
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	pos := p.pos()

	switch p.curToken.Type {
	case lexer.AMP:
		p.nextToken()

		mut := false
		if p.curToken.Type == lexer.MUT {
			mut = true
			p.nextToken()
		}

		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.BorrowExpr{Position: pos, Mut: mut, Expr: inner}, nil
	case lexer.STAR:
		p.nextToken()

		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.DerefExpr{Position: pos, Expr: inner}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.curToken.Type == lexer.LPAREN {
		pos := p.pos()
		p.nextToken()

		var args []ast.Expr

		for p.curToken.Type != lexer.RPAREN {
			arg, err := p.parseExpr(LOWEST)
			if err != nil {
				return nil, err
			}

			args = append(args, arg)

			if p.curToken.Type == lexer.COMMA {
				p.nextToken()
			}
		}

		if err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}

		expr = &ast.CallExpr{Position: pos, Callee: expr, Args: args}
	}

	return expr, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	pos := p.pos()

	switch p.curToken.Type {
	case lexer.INT:
		n, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			return nil, p.fail("invalid integer literal '%s'", p.curToken.Literal)
		}

		p.nextToken()

		return &ast.IntLit{Position: pos, Value: n}, nil
	case lexer.TRUE:
		p.nextToken()
		return &ast.BoolLit{Position: pos, Value: true}, nil
	case lexer.FALSE:
		p.nextToken()
		return &ast.BoolLit{Position: pos, Value: false}, nil
	case lexer.IDENT:
		name := p.curToken.Literal
		p.nextToken()

		return &ast.Ident{Position: pos, Name: name}, nil
	case lexer.UNDERSCORE:
		p.nextToken()
		return &ast.Ident{Position: pos, Name: "_"}, nil
	case lexer.LPAREN:
		p.nextToken()

		expr, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}

		if err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}

		return expr, nil
	case lexer.LBRACE:
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}

		return &ast.BlockExpr{Position: pos, Block: block}, nil
	case lexer.IF:
		return p.parseIf()
	case lexer.MATCH:
		return p.parseMatch()
	case lexer.LOOP:
		p.nextToken()

		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}

		return &ast.LoopExpr{Position: pos, Body: body}, nil
	case lexer.BREAK:
		p.nextToken()
		return &ast.BreakExpr{Position: pos}, nil
	case lexer.CONTINUE:
		p.nextToken()
		return &ast.ContinueExpr{Position: pos}, nil
	case lexer.RETURN:
		p.nextToken()

		if p.curToken.Type == lexer.SEMICOLON || p.curToken.Type == lexer.RBRACE {
			return &ast.ReturnExpr{Position: pos}, nil
		}

		value, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}

		return &ast.ReturnExpr{Position: pos, Value: value}, nil
	case lexer.BOX:
		p.nextToken()

		if err := p.expect(lexer.COLONCOLON); err != nil {
			return nil, err
		}

		if p.curToken.Type != lexer.IDENT || p.curToken.Literal != "new" {
			return nil, p.mismatched("new")
		}

		p.nextToken()

		if err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}

		value, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}

		if err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}

		return &ast.BoxNewExpr{Position: pos, Value: value}, nil
	default:
		return nil, p.mismatched("an expression")
	}
}

func (p *Parser) parseIf() (ast.Expr, error) {
	pos := p.pos()
	if err := p.expect(lexer.IF); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	ifExpr := &ast.IfExpr{Position: pos, Cond: cond, Then: then}

	if p.curToken.Type == lexer.ELSE {
		p.nextToken()

		if p.curToken.Type == lexer.IF {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}

			ifExpr.Else = elseIf.(*ast.IfExpr)
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}

			ifExpr.Else = elseBlock
		}
	}

	return ifExpr, nil
}

func (p *Parser) parseMatch() (ast.Expr, error) {
	pos := p.pos()
	if err := p.expect(lexer.MATCH); err != nil {
		return nil, err
	}

	scrutinee, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}

	if err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}

	match := &ast.MatchExpr{Position: pos, Scrutinee: scrutinee}

	for p.curToken.Type != lexer.RBRACE {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}

		match.Arms = append(match.Arms, arm)

		if p.curToken.Type == lexer.COMMA {
			p.nextToken()
		}
	}

	if err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}

	return match, nil
}

func (p *Parser) parseMatchArm() (ast.MatchArm, error) {
	var arm ast.MatchArm

	switch p.curToken.Type {
	case lexer.INT:
		n, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			return arm, p.fail("invalid integer literal '%s'", p.curToken.Literal)
		}

		p.nextToken()
		arm.IntPat = &n
	case lexer.TRUE:
		v := true
		p.nextToken()
		arm.BoolPat = &v
	case lexer.FALSE:
		v := false
		p.nextToken()
		arm.BoolPat = &v
	case lexer.UNDERSCORE:
		p.nextToken()
		arm.BindingName = "_"
	case lexer.IDENT:
		arm.BindingName = p.curToken.Literal
		p.nextToken()
	default:
		return arm, p.mismatched("a match pattern")
	}

	if err := p.expect(lexer.FATARROW); err != nil {
		return arm, err
	}

	body, err := p.parseExpr(LOWEST)
	if err != nil {
		return arm, err
	}

	arm.Body = body

	return arm, nil
}
