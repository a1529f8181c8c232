package hir

import "candor/internal/scope"

// Block is spec.md §3's "Basic Block": an ordered instruction list plus an
// ordered φ list, up to two successors, and loop-header bookkeeping.
type Block struct {
	ID int

	Preds   []*Block
	Succs   [2]*Block
	nsuccs  int
	Instrs  []*Value
	Phis    []*Value

	IsLoopHeader       bool
	LoopContinueTarget *Block
	LoopBreakTarget    *Block

	sealed bool
	closed bool // a terminator has been emitted

	defs           map[scope.Slot]*Value
	incompletePhis map[scope.Slot]*Value // only populated while unsealed
}

func newBlock(id int) *Block {
	return &Block{
		ID:             id,
		defs:           make(map[scope.Slot]*Value),
		incompletePhis: make(map[scope.Slot]*Value),
	}
}

// Closed reports whether a terminator has already been emitted, per
// spec.md §4.2 "Emitting a terminator... closes the block. Instructions
// added to a closed block are dropped."
func (b *Block) Closed() bool { return b.closed }

// Sealed reports whether every predecessor of b is known.
func (b *Block) Sealed() bool { return b.sealed }

func (b *Block) addSucc(succ *Block) {
	if b.nsuccs >= 2 {
		panic("hir: block already has two successors")
	}
	b.Succs[b.nsuccs] = succ
	b.nsuccs++
	succ.Preds = append(succ.Preds, b)
}

func (b *Block) removeInstr(v *Value) {
	for i, instr := range b.Instrs {
		if instr == v {
			b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
			return
		}
	}
	for i, phi := range b.Phis {
		if phi == v {
			b.Phis = append(b.Phis[:i], b.Phis[i+1:]...)
			return
		}
	}
}

// NumSuccs reports how many successors have been attached so far.
func (b *Block) NumSuccs() int { return b.nsuccs }
