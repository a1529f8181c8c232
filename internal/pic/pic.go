// Package pic implements the polymorphic inline cache state machine and
// miss protocol spec.md §4.3 specifies: a per-call-site cache of
// (prototype, result) pairs that falls back to a generic lookup once a
// bounded number of distinct prototypes have been observed. It is grounded
// field-for-field on original_source/src/pic.cc's PIC class, adapted from
// that class's raw-pointer/byte-scanning machine-code model to the
// internal/heap and internal/codespace contracts this module exposes in
// their place (spec.md §1 places the emitter and collector themselves out
// of scope).
package pic

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"candor/internal/codespace"
	"candor/internal/heap"
)

// MaxSize is kMaxSize: spec.md §4.1 "implementation chooses a small
// constant, typically 4-8."
const MaxSize = 4

// State is the three-state machine spec.md §4.3 names.
type State int

const (
	Empty State = iota
	Populated
	Saturated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Populated:
		return "Populated"
	case Saturated:
		return "Saturated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PIC is a single call site's cache: spec.md §4.1's
// {size, protos[kMaxSize], results[kMaxSize], code_chunk}. size is derived
// from len(protos) rather than stored separately — the "two historical
// variants" spec.md §9's open question describes (an in-code byte offset
// vs. an external software counter); this module follows the newer,
// counter-based variant spec.md names as authoritative.
type PIC struct {
	space *codespace.CodeSpace
	heap  *heap.Heap

	protos  []*heap.Object
	results []int
	chunk   *codespace.Chunk
}

// New builds an empty PIC over the given code space and heap.
func New(space *codespace.CodeSpace, h *heap.Heap) *PIC {
	return &PIC{space: space, heap: h}
}

// Size reports the number of distinct prototypes currently cached.
func (p *PIC) Size() int { return len(p.protos) }

func (p *PIC) State() State {
	switch {
	case p.Size() == 0:
		return Empty
	case p.Size() >= MaxSize:
		return Saturated
	default:
		return Populated
	}
}

// Lookup is the Populated-state generated code's straight-line scan
// (spec.md §4.3's "Generated code shape"): it checks obj's prototype
// against each cached prototype in observation order. A miss — including
// an Empty PIC, which has nothing to scan — reports ok=false; the caller
// is expected to perform the generic lookup itself and report the result
// to Miss.
func (p *PIC) Lookup(obj *heap.Object) (result int, ok bool) {
	proto := obj.Proto()
	for i, cached := range p.protos {
		if cached == proto {
			return p.results[i], true
		}
	}
	return 0, false
}

// Miss implements spec.md §4.3's eight-step protocol.
func (p *PIC) Miss(obj *heap.Object, result int, site *codespace.CallSite) {
	// Step 2: not a heap object -> return without mutation.
	if p.heap.GetTag(obj) != heap.TagObject {
		return
	}

	// Step 3, "scan a small window immediately preceding caller_ip for a
	// machine word equal to its own code chunk address," locates the call
	// site by raw instruction-pointer arithmetic. This module never emits
	// or executes machine code, so there is nothing to scan for: the
	// caller always hands Miss the CallSite directly. See DESIGN.md.

	proto := obj.Proto()

	// Step 4: the IC-disabled sentinel is checked strictly before the
	// saturation check (original_source/src/pic.cc's ordering).
	if proto == heap.Disabled() {
		return
	}

	// Step 5: saturated -> retire to the generic lookup stub.
	if p.Size() >= MaxSize {
		site.Store(p.space.Stubs().LookupPropertyStub())
		return
	}

	// Step 6: append the new pair and register its prototype as a weak
	// reference. Step 7: dereference every previously registered weak
	// reference at the slot address it was registered under (in the old
	// backing array, which append may have replaced) and re-register it
	// against the current storage. The prior slot addresses are treated as
	// stale whether or not append relocated the array, matching "moving
	// the backing memory."
	old := p.protos
	p.protos = append(p.protos, proto)
	p.results = append(p.results, result)
	last := len(p.protos) - 1
	p.heap.Reference(heap.RefWeak, &p.protos[last], p.protos[last])
	for i := range old {
		p.heap.Dereference(&old[i])
	}
	for i := range old {
		p.heap.Reference(heap.RefWeak, &p.protos[i], p.protos[i])
	}

	p.generate(site)
}

// generate builds a fresh chunk testing the current (possibly longer)
// prototype list and patches the call site to it, unref'ing whatever chunk
// preceded it. original_source/src/pic.cc's PIC::Generate.
func (p *PIC) generate(site *codespace.CallSite) {
	old := p.chunk
	p.chunk = p.space.CreateChunk(fmt.Sprintf("pic_%d_protos", p.Size()), nil)
	site.Store(p.chunk)
	if old != nil {
		old.Unref()
	}
}

// String renders a debug summary of the cache's current occupancy.
func (p *PIC) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PIC{state=%s, size=%d/%d, storage=%s}",
		p.State(), p.Size(), MaxSize,
		humanize.Bytes(uint64(p.Size()*(8+8)))) // protos + results, one word each
	return sb.String()
}
