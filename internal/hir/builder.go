package hir

import (
	"fmt"

	"candor/internal/ast"
	"candor/internal/cerr"
	"candor/internal/scope"
)

// Program is the finished artifact of a Build call: every basic block the
// build created (the implicit top-level function's and those of any nested
// function literals, in creation order), plus the root constant pool
// Literal values were interned into.
type Program struct {
	Blocks []*Block
	Root   *scope.RootPool
}

type loopFrame struct {
	continueTarget *Block
	breakTarget    *Block
}

// Builder lowers an AST into SSA-form HIR, one pass, using the
// incomplete-phi technique (spec.md §9) instead of a dominance pre-pass.
type Builder struct {
	root  *scope.RootPool
	scope *scope.Scope

	blocks      []*Block
	nextBlockID int
	nextValueID int

	cur   *Block
	loops []loopFrame
}

// invariantError is the internal panic Builder raises on a violated
// contract (spec.md §7 "internal invariant violations... should terminate
// compilation with a diagnostic; they are not user-visible"). Build
// recovers it at the top and returns it as a *cerr.CandorError.
type invariantError struct{ msg string }

func (e invariantError) Error() string { return e.msg }

// Build lowers root (the parser's top-level Block, standing in for the
// synthetic top-level FunctionLiteral spec.md §4.1 describes) into a
// Program, or an internal error if a contract was violated.
func Build(root *ast.Node) (prog *Program, err error) {
	b := &Builder{root: scope.NewRootPool(), scope: scope.New(nil)}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(invariantError)
			if !ok {
				panic(r)
			}
			err = cerr.Internal(0, "%s", ie.msg)
		}
	}()

	entry := b.newBlockFor()
	b.cur = entry
	b.seal(entry)
	b.emit(Entry)
	b.lowerStatement(root)
	b.closeWithImplicitReturn()

	infer(b.blocks)
	return &Program{Blocks: b.blocks, Root: b.root}, nil
}

func (b *Builder) closeWithImplicitReturn() {
	if b.cur.closed {
		return
	}
	nilv := b.emit(NilConst)
	b.emit(Return, nilv)
	b.cur.closed = true
}

func (b *Builder) fail(format string, args ...interface{}) {
	panic(invariantError{fmt.Sprintf(format, args...)})
}

// ---- block / value construction ----

func (b *Builder) newBlockFor() *Block {
	blk := newBlock(b.nextBlockID)
	b.nextBlockID++
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *Builder) newValueIn(blk *Block, tag Tag, args ...*Value) *Value {
	v := &Value{ID: b.nextValueID, Tag: tag, Args: args, Block: blk}
	b.nextValueID += 2
	for _, a := range args {
		a.addUse(v)
	}
	if tag == Phi {
		blk.Phis = append(blk.Phis, v)
	} else {
		blk.Instrs = append(blk.Instrs, v)
	}
	return v
}

// emit appends an instruction to the current block, refusing to write into
// a block whose terminator has already been emitted (spec.md §4.2 "Block
// model"; spec.md §7 names this an internal invariant violation).
func (b *Builder) emit(tag Tag, args ...*Value) *Value {
	if b.cur.closed {
		b.fail("emit %s into closed block %d", tag, b.cur.ID)
	}
	return b.newValueIn(b.cur, tag, args...)
}

func (b *Builder) addSucc(from, to *Block) {
	from.addSucc(to)
}

// ---- SSA environment: Read / Write / Seal ----

func (b *Builder) writeSlot(slot scope.Slot, v *Value, blk *Block) {
	blk.defs[slot] = v
}

func (b *Builder) readSlot(slot scope.Slot, blk *Block) *Value {
	if v, ok := blk.defs[slot]; ok {
		return v
	}
	if !blk.sealed {
		phi := b.newValueIn(blk, Phi)
		blk.defs[slot] = phi
		blk.incompletePhis[slot] = phi
		return phi
	}
	switch len(blk.Preds) {
	case 0:
		// No predecessors: a function's entry block (lowerIf never creates
		// a predecessor-less join). The slot has no definition on the path
		// reaching here, so a Nil is materialized as its definition.
		v := b.newValueIn(blk, NilConst)
		blk.defs[slot] = v
		return v
	case 1:
		v := b.readSlot(slot, blk.Preds[0])
		blk.defs[slot] = v
		return v
	default:
		phi := b.newValueIn(blk, Phi)
		blk.defs[slot] = phi
		return b.addPhiOperands(slot, phi, blk)
	}
}

func (b *Builder) addPhiOperands(slot scope.Slot, phi *Value, blk *Block) *Value {
	for _, pred := range blk.Preds {
		arg := b.readSlot(slot, pred)
		phi.Args = append(phi.Args, arg)
		arg.addUse(phi)
	}
	resolved := b.tryRemoveTrivialPhi(phi)
	if resolved != phi {
		blk.defs[slot] = resolved
	}
	return resolved
}

// tryRemoveTrivialPhi implements spec.md §4.2's "a φ whose inputs are all
// identical is replaced in-place by that value and removed from B".
func (b *Builder) tryRemoveTrivialPhi(phi *Value) *Value {
	var same *Value
	for _, op := range phi.Args {
		if op == phi || op == same {
			continue
		}
		if same != nil {
			return phi // genuinely merges two distinct values: not trivial
		}
		same = op
	}
	if same == nil {
		// Every operand is the phi itself: unreachable merge point.
		return phi
	}
	phi.ReplaceAllUsesWith(same)
	for _, blk := range b.blocks {
		for slot, def := range blk.defs {
			if def == phi {
				blk.defs[slot] = same
			}
		}
	}
	phi.Removed = true
	phi.Block.removeInstr(phi)
	return same
}

func (b *Builder) seal(blk *Block) {
	blk.sealed = true
	pending := blk.incompletePhis
	blk.incompletePhis = make(map[scope.Slot]*Value)
	for slot, phi := range pending {
		b.addPhiOperands(slot, phi, blk)
	}
}

// ---- literals ----

func (b *Builder) literalNode(n *ast.Node) *Value {
	slot := b.root.Intern(n.Lexeme)
	v := b.emit(Literal)
	v.Slot = &slot
	v.Source = n
	v.withOperand(n.Lexeme)
	return v
}

func (b *Builder) literalNumber(n int) *Value {
	return b.literalNode(&ast.Node{Kind: ast.Number, Lexeme: fmt.Sprintf("%d", n)})
}

func (b *Builder) literalString(text string) *Value {
	return b.literalNode(&ast.Node{Kind: ast.String, Lexeme: text})
}

// allocationSize rounds an object/array literal's entry count up to the
// next power of two and doubles it for slot-count headroom, matching
// original_source/src/hir-instructions.h's PowerOfTwo(size << 1) sizing
// rule for AllocateObject/AllocateArray. Not rendered in the dump (spec.md
// §6 only gives Literal/BinOp a bracketed operand); carried in Attr for the
// benefit of a later code generator.
func allocationSize(entries int) int {
	size := 1
	for size < entries {
		size <<= 1
	}
	return size << 1
}

// ---- statements ----

func (b *Builder) lowerStatement(n *ast.Node) {
	if b.cur.closed {
		return
	}
	switch n.Kind {
	case ast.Block:
		for _, stmt := range n.Children {
			if b.cur.closed {
				return
			}
			b.lowerStatement(stmt)
		}

	case ast.Nop:
		// no-op statement (normalized empty block); nothing to emit.

	case ast.Return:
		val := b.lowerExpr(n.Children[0])
		b.emit(Return, val)
		b.cur.closed = true

	case ast.Break:
		if len(b.loops) == 0 {
			b.fail("break outside a loop")
		}
		target := b.loops[len(b.loops)-1].breakTarget
		b.addSucc(b.cur, target)
		b.emit(Goto)
		b.cur.closed = true

	case ast.Continue:
		if len(b.loops) == 0 {
			b.fail("continue outside a loop")
		}
		target := b.loops[len(b.loops)-1].continueTarget
		b.addSucc(b.cur, target)
		b.emit(Goto)
		b.cur.closed = true

	case ast.If:
		b.lowerIf(n)

	case ast.While:
		b.lowerWhile(n)

	default:
		val := b.lowerExpr(n)
		if n.Kind == ast.FunctionLiteral {
			b.bindNamedFunction(n, val)
		}
	}
}

// bindNamedFunction handles `foo(x) { ... }` used as a statement: the
// receiver slot (parseMember's Children[0]) names the declaration, and the
// function value is written to it exactly like an assignment's RHS.
func (b *Builder) bindNamedFunction(n *ast.Node, val *Value) {
	if len(n.Children) == 0 || n.Children[0] == nil || n.Children[0].Kind != ast.Name {
		return
	}
	b.writeName(n.Children[0].Lexeme, val)
}

func (b *Builder) writeName(name string, val *Value) {
	slot := b.scope.DeclareOrResolve(name)
	if slot.Kind == scope.Local {
		b.writeSlot(slot, val, b.cur)
		return
	}
	sc := b.emit(StoreContext, val)
	sc.Slot = &slot
	sc.Attr = slot.Index
}

func (b *Builder) lowerIf(n *ast.Node) {
	cond := b.lowerExpr(n.Children[0])
	condBlk := b.cur
	b.emit(If, cond)
	condBlk.closed = true

	thenBlk := b.newBlockFor()
	elseBlk := b.newBlockFor()
	b.addSucc(condBlk, thenBlk)
	b.addSucc(condBlk, elseBlk)
	b.seal(thenBlk)
	b.seal(elseBlk)

	b.cur = thenBlk
	b.lowerStatement(n.Children[1])
	thenTail := b.cur

	b.cur = elseBlk
	if len(n.Children) > 2 {
		b.lowerStatement(n.Children[2])
	}
	elseTail := b.cur

	if thenTail.closed && elseTail.closed {
		// Both arms terminate (return/break/continue): no join block is
		// reachable, so none is created (spec.md §8 property 7 — every
		// non-entry block has at least one predecessor). Whatever follows
		// the if in the enclosing block is dead code; lowerStatement's
		// closed-block guard skips it.
		b.cur = thenTail
		return
	}

	join := b.newBlockFor()
	if !thenTail.closed {
		b.addSucc(thenTail, join)
		savedCur := b.cur
		b.cur = thenTail
		b.emit(Goto)
		thenTail.closed = true
		b.cur = savedCur
	}
	if !elseTail.closed {
		b.addSucc(elseTail, join)
		savedCur := b.cur
		b.cur = elseTail
		b.emit(Goto)
		elseTail.closed = true
		b.cur = savedCur
	}
	b.seal(join)
	b.cur = join
}

func (b *Builder) lowerWhile(n *ast.Node) {
	header := b.newBlockFor()
	header.IsLoopHeader = true
	b.addSucc(b.cur, header)
	b.emit(Goto)
	b.cur.closed = true

	b.cur = header
	condBlk := b.newBlockFor()
	b.addSucc(header, condBlk)
	b.emit(Goto)
	header.closed = true
	b.seal(condBlk) // condBlk's only predecessor is header, known now

	b.cur = condBlk
	cond := b.lowerExpr(n.Children[0])

	body := b.newBlockFor()
	post := b.newBlockFor()
	b.addSucc(condBlk, body)
	b.addSucc(condBlk, post)
	b.emit(While, cond)
	condBlk.closed = true
	b.seal(body)

	header.LoopContinueTarget = header
	header.LoopBreakTarget = post
	b.loops = append(b.loops, loopFrame{continueTarget: header, breakTarget: post})

	b.cur = body
	b.lowerStatement(n.Children[1])
	bodyTail := b.cur
	if !bodyTail.closed {
		b.addSucc(bodyTail, header)
		savedCur := b.cur
		b.cur = bodyTail
		b.emit(Goto)
		bodyTail.closed = true
		b.cur = savedCur
	}

	b.loops = b.loops[:len(b.loops)-1]
	b.seal(header) // back-edge (if any) is now known
	b.seal(post)   // every break target is now known

	b.cur = post
}

// ---- expressions ----

func (b *Builder) lowerExpr(n *ast.Node) *Value {
	switch n.Kind {
	case ast.Number, ast.String, ast.True, ast.False:
		return b.literalNode(n)

	case ast.Nil:
		return b.emit(NilConst)

	case ast.Name:
		return b.lowerNameRead(n.Lexeme)

	case ast.Assign:
		return b.lowerAssign(n)

	case ast.Member:
		receiver := b.lowerExpr(n.Children[0])
		key := b.lowerMemberKey(n.Children[1])
		return b.emit(LoadProperty, receiver, key)

	case ast.ObjectLiteral:
		// Value before key, matching spec.md §8's golden dump for
		// `return { a: 1 }` (Literal[1] before Literal[a]).
		obj := b.emit(AllocateObject)
		obj.Attr = allocationSize(len(n.Keys))
		for i, key := range n.Keys {
			val := b.lowerExpr(n.Values[i])
			keyVal := b.literalString(key.Lexeme)
			b.emit(StoreProperty, obj, keyVal, val)
		}
		return obj

	case ast.ArrayLiteral:
		// Index before value, matching original_source/test/test-hir.cc's
		// golden dump for `return ['a']` (the index literal's id precedes
		// the element value's id) — the reverse of ObjectLiteral's order.
		arr := b.emit(AllocateArray)
		arr.Attr = allocationSize(len(n.Children))
		for i, elem := range n.Children {
			idx := b.literalNumber(i)
			val := b.lowerExpr(elem)
			b.emit(StoreProperty, arr, idx, val)
		}
		return arr

	case ast.BinOp:
		return b.lowerBinOp(n)

	case ast.UnOp:
		return b.lowerUnOp(n)

	case ast.Typeof:
		return b.emit(Typeof, b.lowerExpr(n.Children[0]))
	case ast.Sizeof:
		return b.emit(Sizeof, b.lowerExpr(n.Children[0]))
	case ast.Keysof:
		return b.emit(Keysof, b.lowerExpr(n.Children[0]))

	case ast.Call:
		return b.lowerCall(n)

	case ast.FunctionLiteral:
		return b.lowerFunctionLiteral(n)

	default:
		b.fail("unsupported expression node %s", n.Kind)
		return nil
	}
}

func (b *Builder) lowerNameRead(name string) *Value {
	slot, hops, ok := b.scope.ResolveContext(name)
	if !ok {
		// First use of a name with no prior binding: treat as an implicit
		// declaration yielding Nil, the same way the SSA environment would
		// answer Read(slot) in a block with no predecessors.
		slot = b.scope.Declare(name)
		v := b.emit(NilConst)
		b.writeSlot(slot, v, b.cur)
		return v
	}
	if slot.Kind == scope.Local && hops == 0 {
		return b.readSlot(slot, b.cur)
	}
	v := b.emit(LoadContext)
	v.Slot = &slot
	v.Attr = slot.Index
	return v
}

func (b *Builder) lowerMemberKey(key *ast.Node) *Value {
	if key.Kind == ast.Property {
		return b.literalString(key.Lexeme)
	}
	return b.lowerExpr(key)
}

func (b *Builder) lowerAssign(n *ast.Node) *Value {
	lhs := n.Children[0]
	rhs := b.lowerExpr(n.Children[1])

	switch lhs.Kind {
	case ast.Name:
		b.writeName(lhs.Lexeme, rhs)
	case ast.Member:
		receiver := b.lowerExpr(lhs.Children[0])
		key := b.lowerMemberKey(lhs.Children[1])
		b.emit(StoreProperty, receiver, key, rhs)
	default:
		b.fail("invalid assignment target %s", lhs.Kind)
	}
	return rhs
}

func (b *Builder) lowerBinOp(n *ast.Node) *Value {
	switch n.Op {
	case ast.OpLAnd:
		return b.lowerLogical(n, true)
	case ast.OpLOr:
		return b.lowerLogical(n, false)
	default:
		lhs := b.lowerExpr(n.Children[0])
		rhs := b.lowerExpr(n.Children[1])
		v := b.emit(BinOp, lhs, rhs)
		v.withOperand(string(n.Op))
		return v
	}
}

// lowerLogical builds the short-circuit If+φ join spec.md §4.2 requires,
// with the exact φ-input order the dump format makes observable: `&&`
// joins as [rhs, lhs], `||` as [lhs, rhs]. The join's args follow the If's
// successor order (truthy branch first, falsy second); `&&` evaluates rhs
// on the truthy branch and `||` on the falsy one, which yields exactly this
// ordering.
func (b *Builder) lowerLogical(n *ast.Node, isAnd bool) *Value {
	lhs := b.lowerExpr(n.Children[0])
	condBlk := b.cur
	b.emit(If, lhs)
	condBlk.closed = true

	trueBlk := b.newBlockFor()
	falseBlk := b.newBlockFor()
	b.addSucc(condBlk, trueBlk)
	b.addSucc(condBlk, falseBlk)
	b.seal(trueBlk)
	b.seal(falseBlk)

	join := b.newBlockFor()

	var firstVal, secondVal *Value
	if isAnd {
		b.cur = trueBlk
		firstVal = b.lowerExpr(n.Children[1]) // rhs
		trueTail := b.cur
		b.addSucc(trueTail, join)
		b.cur = trueTail
		b.emit(Goto)
		trueTail.closed = true

		b.cur = falseBlk
		secondVal = lhs // short-circuited: lhs itself
		b.addSucc(falseBlk, join)
		b.emit(Goto)
		falseBlk.closed = true
	} else {
		b.cur = trueBlk
		firstVal = lhs // short-circuited: lhs itself
		b.addSucc(trueBlk, join)
		b.emit(Goto)
		trueBlk.closed = true

		b.cur = falseBlk
		secondVal = b.lowerExpr(n.Children[1]) // rhs
		falseTail := b.cur
		b.addSucc(falseTail, join)
		b.cur = falseTail
		b.emit(Goto)
		falseTail.closed = true
	}

	b.seal(join)
	phi := b.newValueIn(join, Phi, firstVal, secondVal)
	b.cur = join
	return phi
}

func (b *Builder) lowerUnOp(n *ast.Node) *Value {
	switch n.Op {
	case ast.OpNot:
		return b.emit(Not, b.lowerExpr(n.Children[0]))

	case ast.OpAdd:
		v := b.lowerExpr(n.Children[0])
		r := b.emit(BinOp, b.literalNumber(0), v)
		r.withOperand("+")
		return r

	case ast.OpSub:
		v := b.lowerExpr(n.Children[0])
		r := b.emit(BinOp, b.literalNumber(0), v)
		r.withOperand("-")
		return r

	case ast.OpInc, ast.OpDec:
		target := n.Children[0]
		old := b.lowerExpr(target)
		sym := "+"
		if n.Op == ast.OpDec {
			sym = "-"
		}
		fresh := b.emit(BinOp, b.literalNumber(1), old)
		fresh.withOperand(sym)
		b.writeBack(target, fresh)
		return fresh

	case ast.OpPostInc, ast.OpPostDec:
		target := n.Children[0]
		old := b.lowerExpr(target)
		sym := "+"
		if n.Op == ast.OpPostDec {
			sym = "-"
		}
		fresh := b.emit(BinOp, b.literalNumber(1), old)
		fresh.withOperand(sym)
		b.writeBack(target, fresh)
		return old

	default:
		b.fail("unsupported unary operator %s", n.Op)
		return nil
	}
}

func (b *Builder) writeBack(target *ast.Node, val *Value) {
	switch target.Kind {
	case ast.Name:
		b.writeName(target.Lexeme, val)
	case ast.Member:
		receiver := b.lowerExpr(target.Children[0])
		key := b.lowerMemberKey(target.Children[1])
		b.emit(StoreProperty, receiver, key, val)
	default:
		b.fail("invalid increment/decrement target %s", target.Kind)
	}
}

// lowerCall distinguishes a method call `a.b(args)` — receiver is itself a
// Member — from a plain call `f(args)`: spec.md §4.2 lowers the former to
// LoadProperty(a, "b") then Call(fn, a, args...), passing the receiver as
// the first argument.
func (b *Builder) lowerCall(n *ast.Node) *Value {
	receiver := n.Children[0]
	argNodes := n.Children[1:]

	if receiver != nil && receiver.Kind == ast.Member {
		obj := b.lowerExpr(receiver.Children[0])
		key := b.lowerMemberKey(receiver.Children[1])
		fn := b.emit(LoadProperty, obj, key)
		args := append([]*Value{fn, obj}, b.lowerArgs(argNodes)...)
		return b.emit(Call, args...)
	}

	fn := b.lowerExpr(receiver)
	args := append([]*Value{fn}, b.lowerArgs(argNodes)...)
	return b.emit(Call, args...)
}

func (b *Builder) lowerArgs(nodes []*ast.Node) []*Value {
	vals := make([]*Value, len(nodes))
	for i, a := range nodes {
		vals[i] = b.lowerExpr(a)
	}
	return vals
}

func (b *Builder) lowerFunctionLiteral(n *ast.Node) *Value {
	savedCur := b.cur
	savedScope := b.scope
	savedLoops := b.loops

	b.scope = scope.New(savedScope)
	b.loops = nil

	entry := b.newBlockFor()
	b.cur = entry
	b.seal(entry)
	b.emit(Entry)

	for i, arg := range n.Args {
		slot := b.scope.Declare(arg.Lexeme)
		argVal := b.emit(LoadArg)
		argVal.Attr = i
		b.writeSlot(slot, argVal, b.cur)
	}

	if n.Body != nil {
		b.lowerStatement(n.Body)
	}
	b.closeWithImplicitReturn()

	bodyEntryID := entry.ID

	b.cur = savedCur
	b.scope = savedScope
	b.loops = savedLoops

	fn := b.emit(Function)
	fn.Attr = bodyEntryID
	fn.Attr2 = len(n.Args)
	return fn
}
