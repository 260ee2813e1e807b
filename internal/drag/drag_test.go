package drag

import "testing"

func TestMoveDependsOnlyOnTotalDelta(t *testing.T) {
	limits := Limits{Min: Size{Width: 450, Height: 450}}
	start := Size{Width: 600, Height: 500}

	paths := map[string][]Pointer{
		"single jump": {{X: 137, Y: 71}},
		"many small steps": func() []Pointer {
			var pts []Pointer
			for i := 1; i <= 37; i++ {
				pts = append(pts, Pointer{X: 100 + float64(i), Y: 40 + float64(i)*31/37})
			}
			return append(pts, Pointer{X: 137, Y: 71})
		}(),
		"detour": {{X: 900, Y: -300}, {X: -50, Y: 10}, {X: 400, Y: 400}, {X: 137, Y: 71}},
	}

	for name, path := range paths {
		r := NewResizer(limits, Hooks{})
		r.Press(Pointer{X: 100, Y: 40}, start)
		for _, p := range path {
			r.Move(p)
		}
		if got := r.Release(); got != (Size{Width: 637, Height: 531}) {
			t.Fatalf("%s: final size = %+v", name, got)
		}
	}
}

func TestMoveClampsToMinimum(t *testing.T) {
	r := NewResizer(Limits{Min: Size{Width: 450, Height: 450}}, Hooks{})
	r.Press(Pointer{X: 500, Y: 500}, Size{Width: 500, Height: 500})
	got, ok := r.Move(Pointer{X: 0, Y: 0})
	if !ok {
		t.Fatalf("Move reported no drag")
	}
	if got != (Size{Width: 450, Height: 450}) {
		t.Fatalf("size = %+v, want clamped to minimum", got)
	}
	got, _ = r.Move(Pointer{X: 520, Y: 510})
	if got != (Size{Width: 520, Height: 510}) {
		t.Fatalf("size after returning = %+v", got)
	}
}

func TestMoveClampsToMaximum(t *testing.T) {
	r := NewResizer(Limits{Min: Size{Width: 5}, Max: Size{Width: 80}}, Hooks{})
	r.Press(Pointer{}, Size{Width: 20})
	if got, _ := r.Move(Pointer{X: 200}); got.Width != 80 {
		t.Fatalf("width = %v, want 80", got.Width)
	}
}

func TestListenersFollowTransitions(t *testing.T) {
	var attached, detached int
	r := NewResizer(Limits{}, Hooks{
		Attach: func() { attached++ },
		Detach: func() { detached++ },
	})

	if _, ok := r.Move(Pointer{X: 10}); ok {
		t.Fatalf("Move while idle should not resize")
	}
	r.Press(Pointer{}, Size{Width: 100, Height: 100})
	if r.State() != Dragging || !r.Listening() {
		t.Fatalf("expected dragging with listeners attached")
	}
	r.Press(Pointer{X: 5}, Size{Width: 100, Height: 100})
	if attached != 1 {
		t.Fatalf("attach called %d times, want 1", attached)
	}
	r.Release()
	if r.State() != Idle || r.Listening() || detached != 1 {
		t.Fatalf("release did not detach: state=%v listening=%v detached=%d", r.State(), r.Listening(), detached)
	}
	r.Release()
	if detached != 1 {
		t.Fatalf("second release detached again")
	}
}

func TestCancelDetachesWithoutRelease(t *testing.T) {
	detached := 0
	r := NewResizer(Limits{}, Hooks{Detach: func() { detached++ }})
	r.Press(Pointer{}, Size{Width: 10, Height: 10})
	r.Move(Pointer{X: 5, Y: 5})
	r.Cancel()
	if detached != 1 || r.Listening() || r.State() != Idle {
		t.Fatalf("cancel left drag active: detached=%d", detached)
	}
	if _, ok := r.Move(Pointer{X: 50}); ok {
		t.Fatalf("Move after cancel should not resize")
	}
	r.Cancel()
	if detached != 1 {
		t.Fatalf("cancel while idle detached again")
	}
}
