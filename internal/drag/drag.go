// Package drag models pointer-driven resizing as an explicit state machine.
//
// A drag starts with Press, which records the pointer position and the size
// at that moment and attaches move/release listeners. Each Move derives the
// new size from those recorded values and the pointer delta only, so the
// result does not depend on how many move events arrived. Release ends the
// drag normally; Cancel ends it on teardown. Both detach the listeners.
package drag

import "sync"

// State is the phase of a Resizer.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Size is a width/height pair in pointer units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pointer is a pointer position.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Hooks are invoked on listener attach and detach. Either may be nil.
type Hooks struct {
	Attach func()
	Detach func()
}

// Limits bounds the computed size. A zero Max field means unbounded.
type Limits struct {
	Min Size
	Max Size
}

// Resizer tracks one resize interaction.
type Resizer struct {
	mu        sync.Mutex
	limits    Limits
	hooks     Hooks
	state     State
	start     Pointer
	startSize Size
	current   Size
	attached  bool
}

// NewResizer returns an idle resizer.
func NewResizer(limits Limits, hooks Hooks) *Resizer {
	return &Resizer{limits: limits, hooks: hooks}
}

// State returns the current phase.
func (r *Resizer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Listening reports whether move/release listeners are attached.
func (r *Resizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Current returns the size computed by the last Press or Move.
func (r *Resizer) Current() Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Press begins a drag at p with the given starting size. Pressing while
// already dragging restarts from the new position.
func (r *Resizer) Press(p Pointer, size Size) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Dragging
	r.start = p
	r.startSize = size
	r.current = r.clamp(size)
	r.attachLocked()
}

// Move returns the size for pointer p. The boolean is false when no drag is
// in progress, in which case the size is the last computed one.
func (r *Resizer) Move(p Pointer) (Size, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Dragging {
		return r.current, false
	}
	r.current = r.clamp(Size{
		Width:  r.startSize.Width + (p.X - r.start.X),
		Height: r.startSize.Height + (p.Y - r.start.Y),
	})
	return r.current, true
}

// Release ends the drag and returns the final size.
func (r *Resizer) Release() Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Idle
	r.detachLocked()
	return r.current
}

// Cancel ends the drag because its owner is going away. It is safe to call
// in any state.
func (r *Resizer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Idle
	r.detachLocked()
}

func (r *Resizer) attachLocked() {
	if r.attached {
		return
	}
	r.attached = true
	if r.hooks.Attach != nil {
		r.hooks.Attach()
	}
}

func (r *Resizer) detachLocked() {
	if !r.attached {
		return
	}
	r.attached = false
	if r.hooks.Detach != nil {
		r.hooks.Detach()
	}
}

func (r *Resizer) clamp(s Size) Size {
	return Size{
		Width:  clampAxis(s.Width, r.limits.Min.Width, r.limits.Max.Width),
		Height: clampAxis(s.Height, r.limits.Min.Height, r.limits.Max.Height),
	}
}

func clampAxis(v, lo, hi float64) float64 {
	if v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}
