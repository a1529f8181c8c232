package pic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"candor/internal/codespace"
	"candor/internal/heap"
)

func setup(t *testing.T) (*PIC, *codespace.CallSite, *heap.Heap, *codespace.StaticStubs) {
	t.Helper()
	h := heap.New()
	stubs := codespace.NewStaticStubs()
	space := codespace.New(stubs)
	return New(space, h), &codespace.CallSite{}, h, stubs
}

func TestEmptyPICHasNothingToLookUp(t *testing.T) {
	p, _, _, _ := setup(t)
	require.Equal(t, Empty, p.State())

	obj := heap.NewObject(heap.NewObject(nil))
	_, ok := p.Lookup(obj)
	require.False(t, ok)
}

func TestMissIgnoresNonObjectTag(t *testing.T) {
	p, site, _, _ := setup(t)
	notAnObject := heap.NewTagged(heap.TagNumber)

	p.Miss(notAnObject, 1, site)

	require.Equal(t, 0, p.Size())
	require.Nil(t, site.Load())
}

// Property 9: after k <= kMaxSize distinct prototypes, size == k and the
// call site references a chunk generated from exactly those k prototypes,
// in observation order.
func TestMissAppendsDistinctPrototypesInObservationOrder(t *testing.T) {
	p, site, _, _ := setup(t)

	a := heap.NewObject(heap.NewObject(nil))
	b := heap.NewObject(heap.NewObject(nil))
	c := heap.NewObject(heap.NewObject(nil))

	p.Miss(a, 10, site)
	p.Miss(b, 20, site)
	p.Miss(c, 30, site)

	require.Equal(t, 3, p.Size())
	require.Equal(t, Populated, p.State())
	require.Equal(t, []*heap.Object{a.Proto(), b.Proto(), c.Proto()}, p.protos)
	require.Equal(t, []int{10, 20, 30}, p.results)

	for i, obj := range []*heap.Object{a, b, c} {
		want := []int{10, 20, 30}[i]
		result, ok := p.Lookup(obj)
		require.True(t, ok)
		require.Equal(t, want, result)
	}

	require.NotNil(t, site.Load(), "a chunk should have been generated and patched in")
}

// Property 10: after kMaxSize+1 distinct prototypes, the call site equals
// the generic lookup stub address.
func TestMissRetiresToGenericStubAfterSaturation(t *testing.T) {
	p, site, _, stubs := setup(t)

	for i := 0; i < MaxSize; i++ {
		obj := heap.NewObject(heap.NewObject(nil))
		p.Miss(obj, i, site)
	}
	require.Equal(t, Saturated, p.State())
	lastGenerated := site.Load()
	require.NotNil(t, lastGenerated)

	extra := heap.NewObject(heap.NewObject(nil))
	p.Miss(extra, 99, site)

	require.Equal(t, MaxSize, p.Size(), "a saturated PIC never grows past kMaxSize")
	require.Same(t, stubs.LookupPropertyStub(), site.Load(),
		"the next miss after saturation retires the call site to the generic lookup stub")
}

// Property 11: GC weak-nulling a cached prototype turns that slot into a
// permanent miss; the next access with an object of that prototype falls
// through to Miss, which caches the prototype again in a new slot (the
// nulled slot is not reused).
func TestGCNulledPrototypeFallsThroughToMissAndRefills(t *testing.T) {
	p, site, h, _ := setup(t)

	proto := heap.NewObject(nil)
	obj := heap.NewObject(proto)

	p.Miss(obj, 7, site)
	require.Equal(t, 1, p.Size())

	result, ok := p.Lookup(obj)
	require.True(t, ok)
	require.Equal(t, 7, result)

	h.CollectGarbage(proto)
	require.Nil(t, p.protos[0], "GC should have nulled the weakly-referenced slot")

	_, ok = p.Lookup(obj)
	require.False(t, ok, "a nulled slot can never match a live prototype again")

	p.Miss(obj, 7, site)
	require.Equal(t, 2, p.Size(), "the miss re-adds the prototype into a fresh slot")

	result, ok = p.Lookup(obj)
	require.True(t, ok)
	require.Equal(t, 7, result)
}

// Property 12: IC-disabled objects (prototype == sentinel) never cause
// entries to be added.
func TestICDisabledObjectsNeverCached(t *testing.T) {
	p, site, _, _ := setup(t)

	obj := heap.NewObject(heap.Disabled())
	p.Miss(obj, 5, site)

	require.Equal(t, 0, p.Size())
	require.Equal(t, Empty, p.State())
	require.Nil(t, site.Load())
}

func TestStringReportsStateAndSize(t *testing.T) {
	p, site, _, _ := setup(t)
	require.Contains(t, p.String(), "state=Empty")

	obj := heap.NewObject(heap.NewObject(nil))
	p.Miss(obj, 1, site)
	require.Contains(t, p.String(), "state=Populated")
	require.Contains(t, p.String(), "size=1/4")
}
