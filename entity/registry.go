// Package entity provides a minimal generational entity registry: the
// external collaborator cotask.BindEntity/HostEntity bind task lifetimes
// against. It deliberately is not a component system or a game — just
// enough to create, destroy, and check the liveness of an opaque handle.
//
// Grounded on the teacher's engine/world.go CreateEntity/DestroyEntity
// id-counter pattern, generalized with a per-slot generation counter in the
// style of its audio/engine.go Generation/soundGeneration staleness check
// and content/service.go's swap-generation atomic counter, since the
// teacher's own entity ids are not themselves generational.
package entity

// Kind distinguishes what a handle refers to; the registry itself never
// inspects it beyond storing and returning it.
type Kind int

type slot struct {
	generation uint32
	alive      bool
	kind       Kind
	obj        any
}

// Registry owns a set of generational entity slots. Not safe for concurrent
// use from multiple goroutines, consistent with cotask's own single-
// threaded contract.
type Registry struct {
	slots []*slot
	free  []*slot
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Handle is a generation-checked reference to an entity slot. The zero
// Handle is never alive.
type Handle struct {
	slot       *slot
	generation uint32
}

// Create allocates a new entity of the given kind holding obj, reusing a
// destroyed slot's storage (and bumping its generation) when one is
// available.
func (r *Registry) Create(kind Kind, obj any) Handle {
	var s *slot
	if n := len(r.free); n > 0 {
		s = r.free[n-1]
		r.free = r.free[:n-1]
		s.generation++
		s.alive = true
		s.kind = kind
		s.obj = obj
	} else {
		s = &slot{generation: 1, alive: true, kind: kind, obj: obj}
		r.slots = append(r.slots, s)
	}
	return Handle{slot: s, generation: s.generation}
}

// Destroy marks h's entity dead and returns its slot to the free list.
// No-op if h is already stale or dead.
func (r *Registry) Destroy(h Handle) {
	if !h.alive() {
		return
	}
	h.slot.alive = false
	h.slot.obj = nil
	r.free = append(r.free, h.slot)
}

func (h Handle) alive() bool {
	return h.slot != nil && h.slot.generation == h.generation && h.slot.alive
}

// Alive reports whether h still refers to a live entity. Implements
// cotask.BoxedEntity structurally — no import of cotask needed.
func (h Handle) Alive() bool { return h.alive() }

// Kind returns the entity's kind, or 0 if h is stale.
func (h Handle) Kind() Kind {
	if !h.alive() {
		return 0
	}
	return h.slot.kind
}

// Get returns the entity's stored value and whether h is still live.
func (h Handle) Get() (any, bool) {
	if !h.alive() {
		return nil, false
	}
	return h.slot.obj, true
}

// Count returns the number of currently live entities.
func (r *Registry) Count() int {
	n := 0
	for _, s := range r.slots {
		if s.alive {
			n++
		}
	}
	return n
}
