package parser

import (
	"testing"

	"candor/internal/ast"
)

func mustParse(t *testing.T, source string) *ast.Node {
	t.Helper()
	node, err := Parse(source)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", source, err)
	}
	return node
}

func firstStmt(t *testing.T, source string) *ast.Node {
	t.Helper()
	root := mustParse(t, source)
	if len(root.Children) == 0 {
		t.Fatalf("Parse(%q): empty program", source)
	}
	return root.Children[0]
}

func TestParseLiteralsAndAssign(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   ast.Kind
	}{
		{"name assign", "a = 1", ast.Assign},
		{"string literal", "a = \"hi\"", ast.Assign},
		{"true", "a = true", ast.Assign},
		{"false", "a = false", ast.Assign},
		{"nil", "a = nil", ast.Assign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := firstStmt(t, tt.source)
			if stmt.Kind != tt.kind {
				t.Fatalf("got kind %s, want %s", stmt.Kind, tt.kind)
			}
		})
	}
}

func TestParseReturnDefaultsToNil(t *testing.T) {
	stmt := firstStmt(t, "return")
	if stmt.Kind != ast.Return {
		t.Fatalf("got kind %s, want Return", stmt.Kind)
	}
	if len(stmt.Children) != 1 || stmt.Children[0].Kind != ast.Nil {
		t.Fatalf("expected implicit Nil child, got %+v", stmt.Children)
	}
}

func TestParseBinOpPrecedence(t *testing.T) {
	// "1 + 2 * 3" must bind as 1 + (2 * 3): the top node is BinOp(+)
	// whose rhs is itself BinOp(*).
	stmt := firstStmt(t, "a = 1 + 2 * 3")
	value := stmt.Children[1]
	if value.Kind != ast.BinOp || value.Op != ast.OpAdd {
		t.Fatalf("expected top-level BinOp(+), got %s %s", value.Kind, value.Op)
	}
	rhs := value.Children[1]
	if rhs.Kind != ast.BinOp || rhs.Op != ast.OpMul {
		t.Fatalf("expected rhs BinOp(*), got %s %s", rhs.Kind, rhs.Op)
	}
}

func TestParseLogicalLooserThanComparison(t *testing.T) {
	// "a == 1 && b == 2" must bind as (a==1) && (b==2).
	stmt := firstStmt(t, "return a == 1 && b == 2")
	value := stmt.Children[0]
	if value.Kind != ast.BinOp || value.Op != ast.OpLAnd {
		t.Fatalf("expected top-level BinOp(&&), got %s %s", value.Kind, value.Op)
	}
	for i, side := range value.Children {
		if side.Kind != ast.BinOp || side.Op != ast.OpEq {
			t.Fatalf("child %d: expected BinOp(==), got %s %s", i, side.Kind, side.Op)
		}
	}
}

func TestParseNegateSign(t *testing.T) {
	// "1 - -2" is subtraction of a negated 2, not a double-subtraction.
	stmt := firstStmt(t, "return 1 - -2")
	value := stmt.Children[0]
	if value.Kind != ast.BinOp || value.Op != ast.OpSub {
		t.Fatalf("expected BinOp(-), got %s %s", value.Kind, value.Op)
	}
	rhs := value.Children[1]
	if rhs.Kind != ast.UnOp || rhs.Op != ast.OpSub {
		t.Fatalf("expected rhs UnOp(-), got %s %s", rhs.Kind, rhs.Op)
	}

	// "1 - +2" keeps its unary '+': entering '+' while negated flips the
	// sign back to kNormal for the operand, and the prefix operator itself
	// is not rewritten.
	stmt2 := firstStmt(t, "return 1 - +2")
	value2 := stmt2.Children[0]
	if value2.Kind != ast.BinOp || value2.Op != ast.OpSub {
		t.Fatalf("expected BinOp(-), got %s %s", value2.Kind, value2.Op)
	}
	rhs2 := value2.Children[1]
	if rhs2.Kind != ast.UnOp || rhs2.Op != ast.OpAdd {
		t.Fatalf("expected rhs UnOp(+), got %s %s", rhs2.Kind, rhs2.Op)
	}
}

func TestParsePostfixIncDec(t *testing.T) {
	stmt := firstStmt(t, "i++")
	if stmt.Kind != ast.UnOp || stmt.Op != ast.OpPostInc {
		t.Fatalf("expected UnOp(post++), got %s %s", stmt.Kind, stmt.Op)
	}

	stmt2 := firstStmt(t, "++i")
	if stmt2.Kind != ast.UnOp || stmt2.Op != ast.OpInc {
		t.Fatalf("expected UnOp(++), got %s %s", stmt2.Kind, stmt2.Op)
	}
}

func TestParseIfElse(t *testing.T) {
	stmt := firstStmt(t, "if (a) { return 1 } else { return 2 }")
	if stmt.Kind != ast.If {
		t.Fatalf("expected If, got %s", stmt.Kind)
	}
	if len(stmt.Children) != 3 {
		t.Fatalf("expected cond+body+else children, got %d", len(stmt.Children))
	}
	if stmt.Children[1].Kind != ast.Block || stmt.Children[2].Kind != ast.Block {
		t.Fatalf("expected Block body/else, got %s/%s", stmt.Children[1].Kind, stmt.Children[2].Kind)
	}
}

func TestParseIfBraceLessBody(t *testing.T) {
	// No '{' after the condition: parseBlock declines without consuming
	// anything, and parseIf falls back to a single statement body.
	stmt := firstStmt(t, "if (a) return 1")
	if stmt.Kind != ast.If {
		t.Fatalf("expected If, got %s", stmt.Kind)
	}
	if stmt.Children[1].Kind != ast.Return {
		t.Fatalf("expected bare Return body, got %s", stmt.Children[1].Kind)
	}
}

func TestParseWhile(t *testing.T) {
	stmt := firstStmt(t, "while (i) { i-- }")
	if stmt.Kind != ast.While {
		t.Fatalf("expected While, got %s", stmt.Kind)
	}
	body := stmt.Children[1]
	if body.Kind != ast.Block || len(body.Children) != 1 {
		t.Fatalf("unexpected while body: %+v", body)
	}
}

func TestParseWhileBreakContinue(t *testing.T) {
	stmt := firstStmt(t, "while (i) { break\ncontinue }")
	body := stmt.Children[1]
	if body.Kind != ast.Block || len(body.Children) != 2 {
		t.Fatalf("unexpected while body: %+v", body)
	}
	if body.Children[0].Kind != ast.Break {
		t.Fatalf("expected Break, got %s", body.Children[0].Kind)
	}
	if body.Children[1].Kind != ast.Continue {
		t.Fatalf("expected Continue, got %s", body.Children[1].Kind)
	}
}

func TestParseEmptyBlockNormalizesToNop(t *testing.T) {
	stmt := firstStmt(t, "while (i) { }")
	body := stmt.Children[1]
	if body.Kind != ast.Block || len(body.Children) != 1 || body.Children[0].Kind != ast.Nop {
		t.Fatalf("expected single Nop child, got %+v", body.Children)
	}
}

func TestParseObjectLiteral(t *testing.T) {
	stmt := firstStmt(t, `return {a: 1, "b": 2}`)
	obj := stmt.Children[0]
	if obj.Kind != ast.ObjectLiteral {
		t.Fatalf("expected ObjectLiteral, got %s", obj.Kind)
	}
	if len(obj.Keys) != 2 || len(obj.Values) != 2 {
		t.Fatalf("expected 2 keys/values, got %d/%d", len(obj.Keys), len(obj.Values))
	}
	for i, key := range obj.Keys {
		if key.Kind != ast.Property {
			t.Fatalf("key %d: expected Property, got %s", i, key.Kind)
		}
	}
}

func TestParseArrayLiteral(t *testing.T) {
	stmt := firstStmt(t, `return ["a", "b"]`)
	arr := stmt.Children[0]
	if arr.Kind != ast.ArrayLiteral || len(arr.Children) != 2 {
		t.Fatalf("unexpected array literal: %+v", arr)
	}
}

func TestParseMemberAccess(t *testing.T) {
	stmt := firstStmt(t, "a.b = 1\n")
	if stmt.Kind != ast.Assign {
		t.Fatalf("expected Assign, got %s", stmt.Kind)
	}
	member := stmt.Children[0]
	if member.Kind != ast.Member {
		t.Fatalf("expected Member, got %s", member.Kind)
	}
	if member.Children[1].Kind != ast.Property {
		t.Fatalf("expected Property child, got %s", member.Children[1].Kind)
	}
}

func TestParseCall(t *testing.T) {
	stmt := firstStmt(t, "global(1, 2, 3)")
	if stmt.Kind != ast.Call {
		t.Fatalf("expected Call, got %s", stmt.Kind)
	}
	if len(stmt.Children) != 4 { // receiver + 3 args
		t.Fatalf("expected 4 children, got %d", len(stmt.Children))
	}
}

func TestParseAnonymousFunctionDeclaration(t *testing.T) {
	stmt := firstStmt(t, "a = (x, y) { return x }")
	fn := stmt.Children[1]
	if fn.Kind != ast.FunctionLiteral {
		t.Fatalf("expected FunctionLiteral, got %s", fn.Kind)
	}
	if len(fn.Args) != 2 || fn.Body == nil {
		t.Fatalf("unexpected function literal shape: %+v", fn)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("a = ")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestParseTypeofSizeofKeysof(t *testing.T) {
	tests := []struct {
		source string
		kind   ast.Kind
	}{
		{"return typeof a", ast.Typeof},
		{"return sizeof a", ast.Sizeof},
		{"return keysof a", ast.Keysof},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			stmt := firstStmt(t, tt.source)
			value := stmt.Children[0]
			if value.Kind != tt.kind {
				t.Fatalf("got %s, want %s", value.Kind, tt.kind)
			}
		})
	}
}
