// Package hir builds the Static-Single-Assignment high-level intermediate
// representation spec.md §4.2 describes: a control-flow graph of basic
// blocks whose instructions are HIR values, with φ-nodes at join points
// built through the Braun et al. incomplete-phi technique rather than a
// dominance pre-pass. The builder is grounded on sentra/internal/hir's
// block-and-instruction shape, generalized from sentra's bytecode-oriented
// instruction set to this module's own tag list (spec.md §3) and to this
// module's slot model (internal/scope) in place of sentra's register
// allocator.
package hir

import (
	"fmt"

	"candor/internal/ast"
	"candor/internal/scope"
)

// Tag is the closed set of HIR instruction variants spec.md §3 names.
type Tag int

const (
	Nop Tag = iota
	NilConst
	Entry
	Return
	Function
	LoadArg
	LoadVarArg
	StoreArg
	StoreVarArg
	AlignStack
	LoadContext
	StoreContext
	LoadProperty
	StoreProperty
	DeleteProperty
	If
	While
	Literal
	Goto
	Not
	BinOp
	Typeof
	Sizeof
	Keysof
	Clone
	Call
	CollectGarbage
	GetStackTrace
	AllocateObject
	AllocateArray
	Phi
)

var tagNames = map[Tag]string{
	Nop:            "Nop",
	NilConst:       "Nil",
	Entry:          "Entry",
	Return:         "Return",
	Function:       "Function",
	LoadArg:        "LoadArg",
	LoadVarArg:     "LoadVarArg",
	StoreArg:       "StoreArg",
	StoreVarArg:    "StoreVarArg",
	AlignStack:     "AlignStack",
	LoadContext:    "LoadContext",
	StoreContext:   "StoreContext",
	LoadProperty:   "LoadProperty",
	StoreProperty:  "StoreProperty",
	DeleteProperty: "DeleteProperty",
	If:             "If",
	While:          "While",
	Literal:        "Literal",
	Goto:           "Goto",
	Not:            "Not",
	BinOp:          "BinOp",
	Typeof:         "Typeof",
	Sizeof:         "Sizeof",
	Keysof:         "Keysof",
	Clone:          "Clone",
	Call:           "Call",
	CollectGarbage: "CollectGarbage",
	GetStackTrace:  "GetStackTrace",
	AllocateObject: "AllocateObject",
	AllocateArray:  "AllocateArray",
	Phi:            "Phi",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// Representation is the bitmask spec.md §4.2's fixed-point inference pass
// computes for every value, drawn from the closed set spec.md §3 names.
type Representation uint16

const (
	RepNil Representation = 1 << iota
	RepNumber
	RepSmi
	RepHeapNumber
	RepString
	RepBoolean
	RepObject
	RepArray
	RepFunction
	RepAny
	RepHole
)

// RepNone is the zero value before inference runs.
const RepNone Representation = 0

// Value is a single SSA instruction: spec.md §3's "HIR Value".
type Value struct {
	ID  int
	Tag Tag

	// Operand carries the textual attribute the dump format (spec.md §6)
	// actually renders in brackets: "Literal's operand is the literal
	// text... BinOp's operand is the operator symbol" are the only two
	// cases §6 calls out, so Operand/HasOperand are used only by those two
	// tags. HasOperand distinguishes "no operand" from "operand is the
	// empty string"; BinOp values built here always carry their operator
	// symbol.
	Operand    string
	HasOperand bool

	// Attr/Attr2 hold the other tag-specific attributes spec.md §3 models
	// (Entry's context_slot_count, LoadArg/StoreArg's argument index,
	// LoadContext/StoreContext's slot index, Function's body_block and
	// arg_count) that are part of the data model but not part of the
	// dump's bracket notation.
	Attr  int
	Attr2 int

	Args []*Value // ordered, read-only reference list
	Uses []*Value // back-edges: values that consume this one as an arg

	Block  *Block
	Source *ast.Node
	Slot   *scope.Slot

	Repr Representation

	Pinned  bool
	Removed bool
}

func (v *Value) withOperand(operand string) *Value {
	v.Operand = operand
	v.HasOperand = true
	return v
}

// addUse records that user consumes v as an argument.
func (v *Value) addUse(user *Value) {
	v.Uses = append(v.Uses, user)
}

// removeUse drops the first recorded use of v by user, mirroring the
// use-list's back-edge bookkeeping on argument removal.
func (v *Value) removeUse(user *Value) {
	for i, u := range v.Uses {
		if u == user {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// ReplaceArg swaps one of v's input arguments, updating both use-lists
// (spec.md §4.2 "instruction bookkeeping").
func (v *Value) ReplaceArg(old, replacement *Value) {
	replaced := false
	for i, a := range v.Args {
		if a == old {
			v.Args[i] = replacement
			replaced = true
		}
	}
	if !replaced {
		return
	}
	old.removeUse(v)
	replacement.addUse(v)
}

// ReplaceAllUsesWith rewrites every user of v to reference replacement
// instead, used by trivial φ elimination.
func (v *Value) ReplaceAllUsesWith(replacement *Value) {
	users := append([]*Value(nil), v.Uses...)
	for _, user := range users {
		user.ReplaceArg(v, replacement)
	}
	v.Uses = nil
}

// Remove marks v logically deleted and drops it from every argument's
// use-list (spec.md §4.2). It does not attempt to splice out dangling
// uses of v — callers must rewrite or discard those first.
func (v *Value) Remove() {
	if v.Removed {
		return
	}
	v.Removed = true
	for _, a := range v.Args {
		a.removeUse(v)
	}
	v.Block.removeInstr(v)
}

// Pin marks v unmovable for the benefit of a later code-motion pass; this
// module does not implement one, but the flag is part of the data model
// (spec.md §3). Nothing in this module calls Pin.
func (v *Value) Pin() { v.Pinned = true }
