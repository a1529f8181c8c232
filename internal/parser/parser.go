// Package parser implements a recursive-descent, precedence-climbing parser
// over internal/token, producing internal/ast trees. It is grounded on
// sentra/internal/parser's recursive-descent shape (one method per grammar
// production, returning nil on failure rather than panicking) and on
// original_source/src/parser.cc's exact grammar — priority-ordered binary
// operators, prefix/postfix unary handling, and the single growable node
// that unifies function declarations and calls.
//
// Unlike sentra's parser, which panics and recovers at the top level, this
// parser never panics: every production returns (*ast.Node, bool), and a
// failure just records a diagnostic and lets its caller try an alternative
// (an if-statement's brace-less body, for instance). Parse surfaces the
// last recorded diagnostic as a *cerr.CandorError sentinel only if a
// top-level statement failed to parse (spec.md §7 — "the parser never
// throws").
package parser

import (
	"candor/internal/ast"
	"candor/internal/cerr"
	"candor/internal/token"
)

// sign tracks the NegateSign mechanism from original_source/src/parser.h:
// entering a unary/binary operator context can flip Add/Sub so that, e.g.,
// `1 - -2` parses its trailing `-2` as a negated primary rather than a
// double-subtraction.
type sign int

const (
	signNormal sign = iota
	signNegated
)

// Parser holds the token stream and the most recently recorded diagnostic.
// err is not a stop signal — productions keep trying alternatives after
// recording one (the same way original_source's ErrorHandler lets Execute
// retry ParseStatement and simply overwrite the message) — it only becomes
// the returned sentinel if a top-level statement fails to parse.
type Parser struct {
	toks   *token.Stream
	source string
	sign   sign
	err    *cerr.CandorError
}

// New builds a Parser over source, scanning it fully up front the way
// sentra's NewParser(lexer.Scan(src)) does.
func New(source string) *Parser {
	return &Parser{
		toks:   token.NewStream(token.NewScanner(source).ScanTokens()),
		source: source,
	}
}

// Parse scans and parses source as a top-level program: a sequence of
// statements normalized into a single Block (spec.md §3's root is the
// degenerate case of a Block with no enclosing function).
func Parse(source string) (*ast.Node, error) {
	p := New(source)
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*ast.Node, error) {
	var stmts []*ast.Node
	failed := false
	for {
		p.skipCr()
		if p.toks.AtEnd() {
			break
		}
		stmt, ok := p.parseStatement()
		if !ok {
			failed = true
			break
		}
		stmts = append(stmts, stmt)
	}
	// Loosely mirrors original_source's Execute(), which clears any
	// diagnostic once the token stream reaches kEnd — but a failed final
	// statement can itself consume every remaining token while still
	// failing (e.g. "a = " with nothing after the '='), which would
	// otherwise read as a clean, empty program. `failed` keeps that case
	// an error.
	if p.toks.AtEnd() && !failed {
		return ast.NormalizeBlock(0, stmts), nil
	}
	if p.err == nil {
		p.setError("unexpected token", p.toks.Peek().Offset)
	}
	return nil, p.err
}

// setError overwrites the most recently recorded diagnostic. It is not a
// stop signal: callers keep trying alternative productions afterward, the
// same way original_source's ErrorHandler::SetError does not abort parsing.
func (p *Parser) setError(message string, offset int) {
	p.err = cerr.NewSyntaxError(message, offset)
}

func (p *Parser) skipCr() {
	for p.toks.Peek().Is(token.Cr) {
		p.toks.Advance()
	}
}

// ---- statements ----

func (p *Parser) parseStatement() (*ast.Node, bool) {
	p.skipCr()

	var result *ast.Node
	switch p.toks.Peek().Kind {
	case token.Return:
		tok := p.toks.Advance()
		value, ok := p.parseExpression(1)
		if !ok {
			value = &ast.Node{Kind: ast.Nil, Lexeme: "nil", Offset: tok.Offset, Length: 3}
		}
		result = &ast.Node{Kind: ast.Return, Offset: tok.Offset, Children: []*ast.Node{value}}

	case token.Break:
		tok := p.toks.Advance()
		result = &ast.Node{Kind: ast.Break, Offset: tok.Offset}

	case token.Continue:
		tok := p.toks.Advance()
		result = &ast.Node{Kind: ast.Continue, Offset: tok.Offset}

	case token.If:
		var ok bool
		result, ok = p.parseIf()
		if !ok {
			return nil, false
		}

	case token.While:
		var ok bool
		result, ok = p.parseWhile()
		if !ok {
			return nil, false
		}

	case token.LBrace:
		var ok bool
		result, ok = p.parseBlock(nil)
		if !ok {
			return nil, false
		}

	default:
		var ok bool
		result, ok = p.parseExpression(1)
		if !ok {
			return nil, false
		}
	}

	if !p.toks.Peek().Is(token.End) && !p.toks.Peek().Is(token.Cr) && !p.toks.Peek().Is(token.RBrace) {
		p.setError("expected CR, EOF, or '}' after statement", p.toks.Peek().Offset)
		return nil, false
	}
	if p.toks.Peek().Is(token.Cr) {
		p.toks.Advance()
	}

	return result, true
}

func (p *Parser) parseIf() (*ast.Node, bool) {
	tok := p.toks.Advance() // 'if'

	if !p.toks.Peek().Is(token.LParen) {
		p.setError("expected '(' before if's condition", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	cond, ok := p.parseExpression(1)
	if !ok {
		p.setError("expected if's condition", p.toks.Peek().Offset)
		return nil, false
	}
	if !p.toks.Peek().Is(token.RParen) {
		p.setError("expected ')' after if's condition", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	body, bodyOK := p.parseBlock(nil)
	var elseBody *ast.Node
	if !bodyOK {
		body, bodyOK = p.parseStatement()
		if !bodyOK {
			p.setError("expected if's body", p.toks.Peek().Offset)
			return nil, false
		}
	} else if p.toks.Peek().Is(token.Else) {
		p.toks.Advance()
		var elseOK bool
		elseBody, elseOK = p.parseBlock(nil)
		if !elseOK {
			p.setError("expected else's body", p.toks.Peek().Offset)
			return nil, false
		}
	}

	children := []*ast.Node{cond, body}
	if elseBody != nil {
		children = append(children, elseBody)
	}
	return &ast.Node{Kind: ast.If, Offset: tok.Offset, Children: children}, true
}

func (p *Parser) parseWhile() (*ast.Node, bool) {
	tok := p.toks.Advance() // 'while'

	if !p.toks.Peek().Is(token.LParen) {
		p.setError("expected '(' before while's condition", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	cond, ok := p.parseExpression(1)
	if !ok {
		p.setError("expected while's condition", p.toks.Peek().Offset)
		return nil, false
	}
	if !p.toks.Peek().Is(token.RParen) {
		p.setError("expected ')' after while's condition", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	body, bodyOK := p.parseBlock(nil)
	if !bodyOK {
		return nil, false
	}

	return &ast.Node{Kind: ast.While, Offset: tok.Offset, Children: []*ast.Node{cond, body}}, true
}

// parseBlock parses a '{' ... '}' sequence of statements. If fn is non-nil
// (a FunctionLiteral being built by parseMember), its Body is filled in
// place instead of allocating a fresh Block node — the same dual-purpose
// shape original_source's ParseBlock(AstNode* block) uses, so a function
// declaration's body and a bare block share one production.
func (p *Parser) parseBlock(fn *ast.Node) (*ast.Node, bool) {
	if !p.toks.Peek().Is(token.LBrace) {
		return nil, false
	}
	// A standalone block (fn == nil) is tried speculatively by parseIf's
	// brace-less-body fallback, so a failure here must roll all the way
	// back to before the '{' — the same rollback original_source's
	// Position destructor performs when ParseBlock's result stays nil.
	// A function literal's body (fn != nil) has no such alternative to
	// fall back to, so its failure is simply propagated.
	sp := p.toks.Mark()
	offset := p.toks.Advance().Offset

	var stmts []*ast.Node
	for !p.toks.AtEnd() && !p.toks.Peek().Is(token.RBrace) {
		p.skipCr()
		if p.toks.Peek().Is(token.RBrace) {
			break
		}
		stmt, ok := p.parseStatement()
		if !ok {
			p.setError("expected statement after '{'", p.toks.Peek().Offset)
			if fn == nil {
				p.toks.Reset(sp)
			}
			return nil, false
		}
		stmts = append(stmts, stmt)
	}
	if !p.toks.Peek().Is(token.RBrace) {
		p.setError("expected '}'", p.toks.Peek().Offset)
		if fn == nil {
			p.toks.Reset(sp)
		}
		return nil, false
	}
	p.toks.Advance()

	block := ast.NormalizeBlock(offset, stmts)
	if fn != nil {
		fn.Body = block
		return fn, true
	}
	return block, true
}

// ---- expressions ----

// priority levels mirror original_source's BINOP_PRI1..6: 1 is loosest
// (||, &&), 6 is tightest (*, /); 7 means "parse no binary operator at
// all" (used for unary operand parsing).
var binOpPriority = map[token.Kind]int{
	token.LOr:  1,
	token.LAnd: 1,

	token.Eq:          2,
	token.NotEq:       2,
	token.StrictEq:    2,
	token.StrictNotEq: 2,

	token.Lt: 3,
	token.Gt: 3,
	token.Le: 3,
	token.Ge: 3,

	token.BOr:  4,
	token.BAnd: 4,
	token.BXor: 4,

	token.Add: 5,
	token.Sub: 5,

	token.Mul: 6,
	token.Div: 6,
}

func (p *Parser) parseExpression(priority int) (*ast.Node, bool) {
	var member *ast.Node
	var ok bool

	switch p.toks.Peek().Kind {
	case token.Inc, token.Dec, token.Not, token.Add, token.Sub:
		member, ok = p.parsePrefixUnOp()
		if !ok {
			return nil, false
		}
	case token.LBrace:
		member, ok = p.parseObjectLiteral()
		if !ok {
			return nil, false
		}
	case token.LBracket:
		member, ok = p.parseArrayLiteral()
		if !ok {
			return nil, false
		}
	case token.Typeof, token.Sizeof, token.Keysof:
		tok := p.toks.Advance()
		expr, exprOK := p.parseExpression(7)
		if !exprOK {
			p.setError("expected body of prefix operation", p.toks.Peek().Offset)
			return nil, false
		}
		kind := map[token.Kind]ast.Kind{token.Typeof: ast.Typeof, token.Sizeof: ast.Sizeof, token.Keysof: ast.Keysof}[tok.Kind]
		member = &ast.Node{Kind: kind, Offset: tok.Offset, Children: []*ast.Node{expr}}
	default:
		member, ok = p.parseMember()
		if !ok {
			member = nil
		}
	}

	var result *ast.Node
	if p.toks.Peek().Is(token.Assign) {
		if member == nil {
			p.setError("expected lhs before '='", p.toks.Peek().Offset)
			return nil, false
		}
		p.toks.Advance()
		value, valueOK := p.parseExpression(1)
		if !valueOK {
			p.setError("expected rhs after '='", p.toks.Peek().Offset)
			return nil, false
		}
		result = &ast.Node{Kind: ast.Assign, Offset: member.Offset, Children: []*ast.Node{member, value}}
	} else {
		result = member
	}

	if result == nil {
		return nil, false
	}

	switch p.toks.Peek().Kind {
	case token.Inc:
		p.toks.Advance()
		result = &ast.Node{Kind: ast.UnOp, Op: ast.OpPostInc, Offset: result.Offset, Children: []*ast.Node{result}}
	case token.Dec:
		p.toks.Advance()
		result = &ast.Node{Kind: ast.UnOp, Op: ast.OpPostDec, Offset: result.Offset, Children: []*ast.Node{result}}
	}

	// Parse binops ordered by priority, re-scanning from the caller's floor
	// up through the tightest level (6) each pass until a pass makes no
	// progress — the same fixed-point loop as original_source's
	// BINOP_SWITCH fallthrough chain, where a floor of `priority` means
	// "only consider operators at this precedence or tighter."
	for {
		initial := result
		for pri := priority; pri <= 6; pri++ {
			if want, has := binOpPriority[p.toks.Peek().Kind]; has && want == pri {
				var binOK bool
				result, binOK = p.parseBinOp(p.toks.Peek().Kind, result, pri)
				if !binOK {
					return nil, false
				}
			}
		}
		if initial == result {
			break
		}
	}

	return result, true
}

func (p *Parser) parsePrefixUnOp() (*ast.Node, bool) {
	tok := p.toks.Advance()

	prevSign := p.sign
	if p.sign == signNormal && tok.Kind == token.Sub {
		p.sign = signNegated
	} else if p.sign == signNegated && tok.Kind == token.Add {
		p.sign = signNormal
	}

	expr, ok := p.parseExpression(7)
	p.sign = prevSign
	if !ok {
		p.setError("expected expression after unary operation", p.toks.Peek().Offset)
		return nil, false
	}

	op := prefixOp(tok.Kind)
	return &ast.Node{Kind: ast.UnOp, Op: op, Offset: tok.Offset, Children: []*ast.Node{expr}}, true
}

func prefixOp(k token.Kind) ast.Op {
	switch k {
	case token.Inc:
		return ast.OpInc
	case token.Dec:
		return ast.OpDec
	case token.Not:
		return ast.OpNot
	case token.Add:
		return ast.OpAdd
	case token.Sub:
		return ast.OpSub
	}
	return ast.Op(k)
}

// negate implements original_source's NegateType: while a NegateSign scope
// is active, Add and Sub trade places.
func (p *Parser) negate(k token.Kind) token.Kind {
	if p.sign != signNegated {
		return k
	}
	switch k {
	case token.Add:
		return token.Sub
	case token.Sub:
		return token.Add
	default:
		return k
	}
}

var binOpText = map[token.Kind]ast.Op{
	token.LOr: ast.OpLOr, token.LAnd: ast.OpLAnd,
	token.Eq: ast.OpEq, token.NotEq: ast.OpNotEq, token.StrictEq: ast.OpStrictEq, token.StrictNotEq: ast.OpStrictNe,
	token.Lt: ast.OpLt, token.Gt: ast.OpGt, token.Le: ast.OpLe, token.Ge: ast.OpGe,
	token.BOr: ast.OpBOr, token.BAnd: ast.OpBAnd, token.BXor: ast.OpBXor,
	token.Add: ast.OpAdd, token.Sub: ast.OpSub,
	token.Mul: ast.OpMul, token.Div: ast.OpDiv,
}

func (p *Parser) parseBinOp(kind token.Kind, lhs *ast.Node, priority int) (*ast.Node, bool) {
	tok := p.toks.Advance()

	prevSign := p.sign
	if p.sign == signNormal && tok.Kind == token.Sub {
		p.sign = signNegated
	} else if p.sign == signNegated && tok.Kind == token.Add {
		p.sign = signNormal
	}

	rhs, ok := p.parseExpression(priority)
	p.sign = prevSign
	if !ok {
		p.setError("expected rhs for binary operation", p.toks.Peek().Offset)
		return nil, false
	}

	op := binOpText[p.negate(kind)]
	return &ast.Node{Kind: ast.BinOp, Op: op, Offset: lhs.Offset, Children: []*ast.Node{lhs, rhs}}, true
}

func (p *Parser) parsePrimary() (*ast.Node, bool) {
	tok := p.toks.Peek()
	switch tok.Kind {
	case token.Name:
		p.toks.Advance()
		return ast.NewLeaf(ast.Name, tok.Text, tok.Offset, tok.Length), true
	case token.Number:
		p.toks.Advance()
		return ast.NewLeaf(ast.Number, tok.Text, tok.Offset, tok.Length), true
	case token.String:
		p.toks.Advance()
		return ast.NewLeaf(ast.String, tok.Text, tok.Offset, tok.Length), true
	case token.True:
		p.toks.Advance()
		return ast.NewLeaf(ast.True, tok.Text, tok.Offset, tok.Length), true
	case token.False:
		p.toks.Advance()
		return ast.NewLeaf(ast.False, tok.Text, tok.Offset, tok.Length), true
	case token.Nil:
		p.toks.Advance()
		return ast.NewLeaf(ast.Nil, tok.Text, tok.Offset, tok.Length), true
	case token.LParen:
		// A parenthesized expression is tried first, but any failure here —
		// including seeing a '{' right after the ')', which means this was
		// actually a function literal's argument list — rolls all the way
		// back to before the '(' so parseMember can retry the same tokens
		// as a call/declaration's argument list (original_source's
		// ParsePrimary wraps the whole method in one Position, so every
		// failing return here is a rollback, not just the brace case).
		sp := p.toks.Mark()
		p.toks.Advance()
		expr, ok := p.parseExpression(1)
		if !ok {
			p.toks.Reset(sp)
			return nil, false
		}
		if !p.toks.Peek().Is(token.RParen) {
			p.setError("expected closing paren for primary expression", p.toks.Peek().Offset)
			p.toks.Reset(sp)
			return nil, false
		}
		p.toks.Advance()
		if p.toks.Peek().Is(token.LBrace) {
			p.toks.Reset(sp)
			return nil, false
		}
		return expr, true
	default:
		return nil, false
	}
}

// parseMember parses a primary expression followed by any chain of member
// accesses (`.name`, `[expr]`) and calls/declarations (`(args) { body }`).
// A `(` always opens a FunctionLiteral node — call and declaration share
// one production, validated after the fact by checkDeclaration, exactly as
// original_source/src/parser.cc's ParseMember does.
func (p *Parser) parseMember() (*ast.Node, bool) {
	// result may end up nil here: parsePrimary rolls back and fails when
	// the upcoming '(' turns out to belong to a function literal's
	// argument list rather than a parenthesized expression (see the
	// LParen case in parsePrimary). The loop below still runs in that
	// case, exactly as original_source's ParseMember does — its first
	// iteration builds an anonymous FunctionLiteral with a nil receiver.
	result, _ := p.parsePrimary()

	for !p.toks.AtEnd() && !p.toks.Peek().Is(token.Cr) {
		if p.toks.Peek().Is(token.LParen) {
			fnOffset := p.toks.Peek().Offset
			receiver := result
			p.toks.Advance()

			var args []*ast.Node
			for !p.toks.Peek().Is(token.RParen) && !p.toks.AtEnd() {
				expr, exprOK := p.parseExpression(1)
				if !exprOK {
					break
				}
				args = append(args, expr)
				if p.toks.Peek().Is(token.Comma) {
					p.toks.Advance()
				}
			}
			if !p.toks.Peek().Is(token.RParen) {
				p.setError("failed to parse function's arguments", p.toks.Peek().Offset)
				return nil, false
			}
			p.toks.Advance()

			fn := &ast.Node{Kind: ast.FunctionLiteral, Offset: fnOffset, Children: []*ast.Node{receiver}, Args: args}

			if p.toks.Peek().Is(token.LBrace) {
				var blockOK bool
				fn, blockOK = p.parseBlock(fn)
				if !blockOK {
					return nil, false
				}
			}

			node, validOK := checkDeclaration(fn, receiver, args)
			if !validOK {
				p.setError("incorrect function declaration or call", p.toks.Peek().Offset)
				return nil, false
			}
			result = node
		} else {
			if result == nil {
				p.setError("unexpected '.' or '['", p.toks.Peek().Offset)
				break
			}

			var next *ast.Node
			if p.toks.Peek().Is(token.Dot) {
				p.toks.Advance()
				var primOK bool
				next, primOK = p.parsePrimary()
				if primOK && next != nil && next.Kind == ast.Name {
					next.Kind = ast.Property
				}
			} else if p.toks.Peek().Is(token.LBracket) {
				p.toks.Advance()
				var exprOK bool
				next, exprOK = p.parseExpression(1)
				if exprOK && p.toks.Peek().Is(token.RBracket) {
					p.toks.Advance()
				} else {
					next = nil
				}
			}

			if next == nil {
				break
			}
			result = &ast.Node{Kind: ast.Member, Offset: result.Offset, Children: []*ast.Node{result, next}}
		}
	}

	return result, true
}

// checkDeclaration decides, after the fact, whether a FunctionLiteral node
// built by parseMember is a legal call (receiver present, any arguments, no
// body) or a legal declaration (every argument a bare Name, body present).
// A declaration's receiver is not checked: it is nil for an anonymous
// function literal and the declared name for `foo(x) { ... }`, which the
// HIR builder binds to that name.
func checkDeclaration(fn *ast.Node, receiver *ast.Node, args []*ast.Node) (*ast.Node, bool) {
	if fn.Body == nil {
		// Call: receiver required.
		if receiver == nil {
			return nil, false
		}
		return &ast.Node{Kind: ast.Call, Offset: fn.Offset, Children: append([]*ast.Node{receiver}, args...)}, true
	}

	// Declaration: every arg must be a bare Name; the receiver, if any, is
	// kept as Children[0].
	for _, a := range args {
		if a.Kind != ast.Name {
			return nil, false
		}
	}
	return fn, true
}

func (p *Parser) parseObjectLiteral() (*ast.Node, bool) {
	if !p.toks.Peek().Is(token.LBrace) {
		return nil, false
	}
	offset := p.toks.Advance().Offset

	result := &ast.Node{Kind: ast.ObjectLiteral, Offset: offset}

	for !p.toks.Peek().Is(token.RBrace) && !p.toks.AtEnd() {
		tok := p.toks.Peek()
		var key *ast.Node
		switch tok.Kind {
		case token.String, token.Name, token.Number:
			key = ast.NewLeaf(ast.Property, tok.Text, tok.Offset, tok.Length)
			p.toks.Advance()
		default:
			p.setError("expected string or number as object literal's key", tok.Offset)
			return nil, false
		}

		if !p.toks.Peek().Is(token.Colon) {
			p.setError("expected colon after object literal's key", p.toks.Peek().Offset)
			return nil, false
		}
		p.toks.Advance()

		value, ok := p.parseExpression(1)
		if !ok {
			p.setError("expected expression after colon", p.toks.Peek().Offset)
			return nil, false
		}

		result.Keys = append(result.Keys, key)
		result.Values = append(result.Values, value)

		if p.toks.Peek().Is(token.Comma) {
			p.toks.Advance()
		} else if !p.toks.Peek().Is(token.RBrace) {
			p.setError("expected '}' or ','", p.toks.Peek().Offset)
			return nil, false
		}
	}

	if !p.toks.Peek().Is(token.RBrace) {
		p.setError("expected '}'", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	return result, true
}

func (p *Parser) parseArrayLiteral() (*ast.Node, bool) {
	if !p.toks.Peek().Is(token.LBracket) {
		return nil, false
	}
	offset := p.toks.Advance().Offset

	result := &ast.Node{Kind: ast.ArrayLiteral, Offset: offset}

	for !p.toks.Peek().Is(token.RBracket) && !p.toks.AtEnd() {
		value, ok := p.parseExpression(1)
		if !ok {
			p.setError("expected expression after array literal's start", p.toks.Peek().Offset)
			return nil, false
		}
		result.Children = append(result.Children, value)

		if p.toks.Peek().Is(token.Comma) {
			p.toks.Advance()
		} else if !p.toks.Peek().Is(token.RBracket) {
			p.setError("expected ']' or ','", p.toks.Peek().Offset)
			return nil, false
		}
	}

	if !p.toks.Peek().Is(token.RBracket) {
		p.setError("expected ']'", p.toks.Peek().Offset)
		return nil, false
	}
	p.toks.Advance()

	return result, true
}
