// Package arena provides a generational slot arena.
//
// Removal is two-phase: Retire marks a slot dead (lookups fail, iteration
// skips it) but keeps the slot reserved, and Sweep reclaims every retired
// slot at a point where no iteration is in flight. A Handle carries the
// generation it was issued with, so handles to reclaimed slots never
// resolve to the slot's next occupant.
package arena

// Handle identifies an arena slot. The zero Handle is never issued.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Less orders handles by slot index, then generation.
func (h Handle) Less(o Handle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}
	return h.Gen < o.Gen
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h == Handle{} }

type slotState uint8

const (
	slotFree slotState = iota
	slotLive
	slotRetired
)

type slot[T any] struct {
	value T
	gen   uint32
	state slotState
}

// Arena stores values of type T in reusable slots.
type Arena[T any] struct {
	slots   []slot[T]
	free    []uint32
	retired []uint32
	live    int
}

// New returns an arena with room for capacity values before growing.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]slot[T], 0, capacity)}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.gen++
	s.value = v
	s.state = slotLive
	a.live++
	return Handle{Index: idx, Gen: s.gen}
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.Gen == 0 || int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if s.gen != h.Gen || s.state != slotLive {
		return nil
	}
	return s
}

// Get returns the value stored under h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.lookup(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Ptr returns a pointer to the value stored under h, or nil. The pointer is
// invalidated by the next Insert.
func (a *Arena[T]) Ptr(h Handle) *T {
	if s := a.lookup(h); s != nil {
		return &s.value
	}
	return nil
}

// Valid reports whether h refers to a live value.
func (a *Arena[T]) Valid(h Handle) bool {
	return a.lookup(h) != nil
}

// Retire marks the value under h dead. The slot is not reused until Sweep.
func (a *Arena[T]) Retire(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	s.state = slotRetired
	a.retired = append(a.retired, h.Index)
	a.live--
	return true
}

// Pending returns the number of retired slots waiting for Sweep.
func (a *Arena[T]) Pending() int { return len(a.retired) }

// Sweep reclaims retired slots and returns how many were reclaimed.
func (a *Arena[T]) Sweep() int {
	var zero T
	n := len(a.retired)
	for _, idx := range a.retired {
		s := &a.slots[idx]
		s.value = zero
		s.state = slotFree
		a.free = append(a.free, idx)
	}
	a.retired = a.retired[:0]
	return n
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Each calls fn for every live value in slot order until fn returns false.
// Values retired during iteration are skipped from then on; values inserted
// during iteration may or may not be visited.
func (a *Arena[T]) Each(fn func(h Handle, v T) bool) {
	for i := 0; i < len(a.slots); i++ {
		s := &a.slots[i]
		if s.state != slotLive {
			continue
		}
		if !fn(Handle{Index: uint32(i), Gen: s.gen}, s.value) {
			return
		}
	}
}

// Handles returns the handles of all live values in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ T) bool {
		out = append(out, h)
		return true
	})
	return out
}
