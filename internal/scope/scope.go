// Package scope is the abstract slot resolver spec.md §2 places behind an
// assumed interface: "assigns each variable an abstract storage slot
// (local, context, or root-constant)... referenced by the HIR builder."
// Nothing in the retrieval pack implements Candor's actual scope analysis
// (it is not among the original_source/ files retrieved for this spec), so
// this package is grounded on spec.md's own description rather than a
// specific teacher file, kept in sentra's plain-struct, no-visitor style.
package scope

// Kind is the storage class a Resolve or Declare assigns a variable to.
type Kind int

const (
	// Local lives in the current function's register/stack frame and is
	// read through the HIR builder's per-block environment (spec.md §4.2
	// Read/Write/Seal), never through a LoadContext/StoreContext pair.
	Local Kind = iota
	// Context lives in an enclosing function's frame, reached through a
	// chain of context pointers (LoadContext(slot)/StoreContext(slot)).
	Context
	// RootConstant is an entry in the process-wide root scope's constant
	// pool, referenced from a Literal instruction so identical literals
	// across the whole compilation share one slot (spec.md §4.2, §9
	// "Global state").
	RootConstant
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "Local"
	case Context:
		return "Context"
	case RootConstant:
		return "RootConstant"
	default:
		return "Unknown"
	}
}

// Slot is the abstract storage location a name resolves to.
type Slot struct {
	Kind  Kind
	Index int
}

// Scope tracks one function's variable-to-slot bindings and chains to its
// lexical parent for context-slot resolution. A fresh Scope is created per
// FunctionLiteral the HIR builder lowers (including the synthetic
// top-level one parser.Parse's root Block stands in for).
type Scope struct {
	parent    *Scope
	names     map[string]int // name -> local slot index, this scope only
	nextLocal int
	depth     int // distance from the root scope, for context slot chains
}

// New creates a scope nested under parent (nil for the top-level scope).
func New(parent *Scope) *Scope {
	s := &Scope{parent: parent, names: make(map[string]int)}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	return s
}

// Declare introduces name as a new local in this scope, shadowing any
// binding of the same name in an enclosing scope. Redeclaring a name
// already local to this scope returns its existing slot rather than
// allocating a second one — Candor has no block-level shadowing within a
// single function scope (spec.md's grammar has no `let`/`var`; every
// assignment to an undeclared name declares it).
func (s *Scope) Declare(name string) Slot {
	if idx, ok := s.names[name]; ok {
		return Slot{Kind: Local, Index: idx}
	}
	idx := s.nextLocal
	s.names[name] = idx
	s.nextLocal++
	return Slot{Kind: Local, Index: idx}
}

// Resolve finds name's slot: Local if declared in this exact scope,
// Context if declared in an ancestor scope. A Context slot's Index is the
// ancestor's local index alone; the number of scope hops is not encoded in
// it and is returned by ResolveContext instead.
func (s *Scope) Resolve(name string) (Slot, bool) {
	if idx, ok := s.names[name]; ok {
		return Slot{Kind: Local, Index: idx}, true
	}
	for anc := s.parent; anc != nil; anc = anc.parent {
		if idx, ok := anc.names[name]; ok {
			return Slot{Kind: Context, Index: idx}, true
		}
	}
	return Slot{}, false
}

// ResolveContext is Resolve's Context-only form, additionally returning the
// number of enclosing-scope hops to the declaring scope — the piece of
// information LoadContext/StoreContext's generated code needs to walk the
// context-pointer chain at run time.
func (s *Scope) ResolveContext(name string) (slot Slot, hops int, ok bool) {
	if idx, ok := s.names[name]; ok {
		return Slot{Kind: Local, Index: idx}, 0, true
	}
	hop := 1
	for anc := s.parent; anc != nil; anc = anc.parent {
		if idx, ok := anc.names[name]; ok {
			return Slot{Kind: Context, Index: idx}, hop, true
		}
		hop++
	}
	return Slot{}, 0, false
}

// DeclareOrResolve is the common case the HIR builder uses while lowering
// a Name node used as an assignment target: resolve it if already bound
// anywhere in the scope chain, otherwise declare it fresh as a local in
// the current scope.
func (s *Scope) DeclareOrResolve(name string) Slot {
	if slot, ok := s.Resolve(name); ok {
		return slot
	}
	return s.Declare(name)
}

// RootPool interns literal values into the process-wide root scope's
// constant pool (spec.md §4.2 "Literal(kind, root_slot)... identical
// literals share storage", §9 "Global state"). One RootPool is shared
// across an entire compilation by the HIR builder, independent of however
// many function Scopes are nested within it.
type RootPool struct {
	index map[string]int
	order []string
}

// NewRootPool creates an empty constant pool.
func NewRootPool() *RootPool {
	return &RootPool{index: make(map[string]int)}
}

// Intern returns the RootConstant slot for text, allocating a fresh one on
// first use and reusing it for every later identical literal.
func (p *RootPool) Intern(text string) Slot {
	if idx, ok := p.index[text]; ok {
		return Slot{Kind: RootConstant, Index: idx}
	}
	idx := len(p.order)
	p.index[text] = idx
	p.order = append(p.order, text)
	return Slot{Kind: RootConstant, Index: idx}
}

// Len reports how many distinct constants have been interned.
func (p *RootPool) Len() int { return len(p.order) }

// At returns the literal text stored at a RootConstant slot's index, for
// callers (e.g. a dump or emitter) that need to walk the pool.
func (p *RootPool) At(index int) string { return p.order[index] }
