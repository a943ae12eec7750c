package dynamics

import "github.com/0x5844/rigid2d/collision"

// ContactFunc is called when two fixtures start or stop touching.
type ContactFunc func(c *Contact)

// PreSolveFunc is called after a touching contact's manifold is updated and
// before it is solved. oldManifold is the manifold of the previous step.
// Calling c.SetEnabled(false) skips the contact for this step.
type PreSolveFunc func(c *Contact, oldManifold *collision.Manifold)

// PostSolveFunc is called for every solved contact after the whole solve,
// with the impulses the solver applied.
type PostSolveFunc func(c *Contact, impulse *ContactImpulse)

// ContactImpulse holds the accumulated impulses of a solved contact, one
// entry per manifold point.
type ContactImpulse struct {
	NormalImpulses  [collision.MaxManifoldPoints]float64
	TangentImpulses [collision.MaxManifoldPoints]float64
	Count           int
}

// MaxNormal returns the largest normal impulse.
func (ci *ContactImpulse) MaxNormal() float64 {
	best := 0.0
	for i := 0; i < ci.Count; i++ {
		best = max(best, ci.NormalImpulses[i])
	}
	return best
}

type eventKind uint8

const (
	eventBeginContact eventKind = iota + 1
	eventEndContact
	eventPreSolve
	eventPostSolve
)

// Subscription identifies a registered callback. Pass it to
// World.Unsubscribe to remove the callback.
type Subscription struct {
	kind eventKind
	id   uint64
}

// IsZero reports whether s is the zero Subscription.
func (s Subscription) IsZero() bool { return s.id == 0 }

type listener[F any] struct {
	id      uint64
	fn      F
	removed bool
}

// listeners is an ordered callback list. Removal during dispatch only
// marks the entry; the list is compacted once dispatch unwinds.
type listeners[F any] struct {
	entries     []listener[F]
	dispatching int
	dirty       bool
}

func (l *listeners[F]) add(id uint64, fn F) {
	l.entries = append(l.entries, listener[F]{id: id, fn: fn})
}

func (l *listeners[F]) remove(id uint64) bool {
	for i := range l.entries {
		e := &l.entries[i]
		if e.id != id || e.removed {
			continue
		}
		if l.dispatching > 0 {
			e.removed = true
			l.dirty = true
		} else {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
		}
		return true
	}
	return false
}

func (l *listeners[F]) len() int {
	n := 0
	for _, e := range l.entries {
		if !e.removed {
			n++
		}
	}
	return n
}

func (l *listeners[F]) each(call func(F)) {
	if len(l.entries) == 0 {
		return
	}
	l.dispatching++
	for i := 0; i < len(l.entries); i++ {
		if e := l.entries[i]; !e.removed {
			call(e.fn)
		}
	}
	l.dispatching--
	if l.dispatching == 0 && l.dirty {
		kept := l.entries[:0]
		for _, e := range l.entries {
			if !e.removed {
				kept = append(kept, e)
			}
		}
		clear(l.entries[len(kept):])
		l.entries = kept
		l.dirty = false
	}
}

type eventHub struct {
	nextID       uint64
	beginContact listeners[ContactFunc]
	endContact   listeners[ContactFunc]
	preSolve     listeners[PreSolveFunc]
	postSolve    listeners[PostSolveFunc]
}

func (h *eventHub) id() uint64 {
	h.nextID++
	return h.nextID
}

// OnBeginContact registers fn for contacts that start touching.
func (w *World) OnBeginContact(fn ContactFunc) Subscription {
	id := w.events.id()
	w.events.beginContact.add(id, fn)
	return Subscription{kind: eventBeginContact, id: id}
}

// OnEndContact registers fn for contacts that stop touching, including
// contacts destroyed while touching.
func (w *World) OnEndContact(fn ContactFunc) Subscription {
	id := w.events.id()
	w.events.endContact.add(id, fn)
	return Subscription{kind: eventEndContact, id: id}
}

// OnPreSolve registers fn to run before touching contacts are solved.
func (w *World) OnPreSolve(fn PreSolveFunc) Subscription {
	id := w.events.id()
	w.events.preSolve.add(id, fn)
	return Subscription{kind: eventPreSolve, id: id}
}

// OnPostSolve registers fn to receive solver impulses after each step.
func (w *World) OnPostSolve(fn PostSolveFunc) Subscription {
	id := w.events.id()
	w.events.postSolve.add(id, fn)
	return Subscription{kind: eventPostSolve, id: id}
}

// Unsubscribe removes a callback. It is safe to call from inside any
// callback; the removed callback is not called again. It reports whether
// the subscription was registered.
func (w *World) Unsubscribe(s Subscription) bool {
	switch s.kind {
	case eventBeginContact:
		return w.events.beginContact.remove(s.id)
	case eventEndContact:
		return w.events.endContact.remove(s.id)
	case eventPreSolve:
		return w.events.preSolve.remove(s.id)
	case eventPostSolve:
		return w.events.postSolve.remove(s.id)
	}
	return false
}

func (w *World) fireBeginContact(c *Contact) {
	w.events.beginContact.each(func(fn ContactFunc) { fn(c) })
}

func (w *World) fireEndContact(c *Contact) {
	w.events.endContact.each(func(fn ContactFunc) { fn(c) })
}

func (w *World) firePreSolve(c *Contact, old *collision.Manifold) {
	w.events.preSolve.each(func(fn PreSolveFunc) { fn(c, old) })
}

func (w *World) firePostSolve(c *Contact, impulse *ContactImpulse) {
	w.events.postSolve.each(func(fn PostSolveFunc) { fn(c, impulse) })
}
