// Package codespace models the machine-code emitter's address space: the
// piece of it internal/pic actually consumes (chunk allocation, the
// generic lookup-property stub, and the atomic call-site patch word), per
// spec.md §4.3's "Generated code shape (specified as a contract, not an
// encoding)." It holds no real executable bytes and patches no real call
// instructions — this module builds the compilation front half only and
// never emits or executes machine code (spec.md §1). The Chunk/Stubs shape
// is grounded on sentra/internal/jit/jit.go's CompiledFunction and its
// unsafe.Pointer-patching style, adapted to a uuid.UUID-addressed handle in
// place of a raw pointer, since nothing here ever becomes a real address.
package codespace

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Chunk is a uniquely addressable code object: the PIC's generated
// prototype-dispatch sequence, or the process-wide generic lookup stub.
// ID stands in for the "relocatable code chunk address" spec.md §4.3 talks
// about; the actual bytes are an opaque placeholder.
type Chunk struct {
	ID   uuid.UUID
	Name string
	code []byte
	refs int32
}

// Ref increments the chunk's reference count.
func (c *Chunk) Ref() { atomic.AddInt32(&c.refs, 1) }

// Unref decrements the chunk's reference count; spec.md §4.3's "a PIC
// whose call site has been patched away is unreferenced and will be
// collected like any other chunk."
func (c *Chunk) Unref() { atomic.AddInt32(&c.refs, -1) }

// RefCount reports the chunk's current reference count.
func (c *Chunk) RefCount() int32 { return atomic.LoadInt32(&c.refs) }

// Stubs is the set of process-wide generated stubs the embedding host
// supplies at runtime initialization, per spec.md §9's "Global state"
// design note.
type Stubs interface {
	LookupPropertyStub() *Chunk
}

// StaticStubs is a fixed Stubs implementation good enough for this
// module's tests: a single generic lookup-property stub chunk, minted
// once and never replaced.
type StaticStubs struct {
	lookup *Chunk
}

// NewStaticStubs builds a StaticStubs with a freshly minted lookup stub.
func NewStaticStubs() *StaticStubs {
	return &StaticStubs{lookup: &Chunk{ID: uuid.New(), Name: "lookup_property_stub", refs: 1}}
}

func (s *StaticStubs) LookupPropertyStub() *Chunk { return s.lookup }

// CodeSpace allocates chunks and hands out the stubs the embedding host
// installed at startup.
type CodeSpace struct {
	stubs Stubs
}

// New builds a CodeSpace backed by the given stub set.
func New(stubs Stubs) *CodeSpace {
	return &CodeSpace{stubs: stubs}
}

// CreateChunk allocates a fresh chunk. code is an opaque placeholder for
// the generated prototype-dispatch sequence; this module never encodes or
// executes it.
func (s *CodeSpace) CreateChunk(name string, code []byte) *Chunk {
	return &Chunk{ID: uuid.New(), Name: name, code: code, refs: 1}
}

// Stubs returns the embedding host's process-wide stub set.
func (s *CodeSpace) Stubs() Stubs { return s.stubs }

// CallSite models spec.md §5's "single aligned pointer" patch target: the
// relocatable word a call instruction reads its destination chunk from.
// Patching it is specified as an atomic word-sized store; atomic.Pointer
// gives that guarantee directly instead of hand-rolled unsafe.Pointer CAS
// loops.
type CallSite struct {
	target atomic.Pointer[Chunk]
}

// Load reads the chunk the call site currently targets.
func (cs *CallSite) Load() *Chunk { return cs.target.Load() }

// Store atomically retargets the call site to chunk.
func (cs *CallSite) Store(chunk *Chunk) { cs.target.Store(chunk) }
