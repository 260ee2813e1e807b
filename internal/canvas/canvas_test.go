package canvas

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"studio/internal/domain"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func loadedSurface(t *testing.T, w, h int) *Surface {
	t.Helper()
	s := NewSurface()
	if err := s.Load(solidImage(w, h, color.RGBA{R: 10, G: 120, B: 200, A: 255}), image.Pt(2000, 2000)); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return s
}

func alphaAt(img *image.RGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)+3]
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		box  image.Point
		want image.Point
	}{
		{name: "fits without scaling", w: 400, h: 600, box: image.Pt(800, 800), want: image.Pt(400, 600)},
		{name: "width bound", w: 800, h: 600, box: image.Pt(400, 400), want: image.Pt(400, 300)},
		{name: "height bound", w: 600, h: 800, box: image.Pt(400, 400), want: image.Pt(300, 400)},
		{name: "square into wide box", w: 1000, h: 1000, box: image.Pt(300, 200), want: image.Pt(200, 200)},
		{name: "exact box", w: 640, h: 480, box: image.Pt(640, 480), want: image.Pt(640, 480)},
		{name: "empty box", w: 640, h: 480, box: image.Pt(0, 480), want: image.Point{}},
		{name: "empty image", w: 0, h: 480, box: image.Pt(640, 480), want: image.Point{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitSize(tt.w, tt.h, tt.box); got != tt.want {
				t.Fatalf("FitSize(%d, %d, %v) = %v, want %v", tt.w, tt.h, tt.box, got, tt.want)
			}
		})
	}
}

func TestLoadRejectsEmptyImage(t *testing.T) {
	s := NewSurface()
	err := s.Load(nil, image.Pt(100, 100))
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if err := s.Fit(image.Pt(100, 100)); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage from Fit, got %v", err)
	}
}

func TestLoadSizesBothLayers(t *testing.T) {
	s := NewSurface()
	if err := s.Load(solidImage(400, 600, color.White), image.Pt(800, 800)); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := s.Background().Bounds().Size(); got != image.Pt(400, 600) {
		t.Fatalf("background size = %v", got)
	}
	if got := s.Annotation().Bounds().Size(); got != image.Pt(400, 600) {
		t.Fatalf("annotation size = %v", got)
	}
	for i := 3; i < len(s.Annotation().Pix); i += 4 {
		if s.Annotation().Pix[i] != 0 {
			t.Fatalf("fresh annotation not transparent")
		}
	}
}

func TestFitRecomputesFromOriginal(t *testing.T) {
	s := NewSurface()
	red := color.RGBA{R: 255, A: 255}
	if err := s.Load(solidImage(1000, 500, red), image.Pt(1000, 1000)); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := s.Fit(image.Pt(100, 100)); err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if got := s.Size(); got != image.Pt(100, 50) {
		t.Fatalf("size after shrink = %v", got)
	}
	if err := s.Fit(image.Pt(2000, 2000)); err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if got := s.Size(); got != image.Pt(1000, 500) {
		t.Fatalf("size after grow = %v, want natural size", got)
	}
	if got := s.Background().RGBAAt(500, 250); got != red {
		t.Fatalf("background pixel = %v, want %v", got, red)
	}
	if s.SourceSize() != image.Pt(1000, 500) {
		t.Fatalf("source size = %v", s.SourceSize())
	}
}

func TestClearKeepsBackground(t *testing.T) {
	s := loadedSurface(t, 200, 200)
	before := s.Background()
	c := NewController(s)
	c.Apply(StrokeEvent{Tool: ToolPaint, Radius: 20, Points: []Point{{X: 50, Y: 50}, {X: 150, Y: 150}}})
	if alphaAt(s.Annotation(), 100, 100) == 0 {
		t.Fatalf("expected painted pixel before clear")
	}
	s.Clear()
	for i := 3; i < len(s.Annotation().Pix); i += 4 {
		if s.Annotation().Pix[i] != 0 {
			t.Fatalf("annotation not cleared at byte %d", i)
		}
	}
	if !bytes.Equal(before.Pix, s.Background().Pix) {
		t.Fatalf("background changed by Clear")
	}
}

func TestEraseIsDestructive(t *testing.T) {
	s := loadedSurface(t, 200, 200)
	c := NewController(s)
	c.SetBrushRadius(20)
	for i := 0; i < 5; i++ {
		c.BeginStroke(Point{X: 100, Y: 100})
		c.EndStroke()
	}
	if alphaAt(s.Annotation(), 100, 100) == 0 {
		t.Fatalf("expected painted centre")
	}

	c.SetTool(ToolErase)
	c.BeginStroke(Point{X: 100, Y: 100})
	c.EndStroke()

	ann := s.Annotation()
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			if a := alphaAt(ann, x, y); a != 0 {
				t.Fatalf("pixel (%d,%d) alpha = %d after erase", x, y, a)
			}
		}
	}
}

func TestEraseAcrossLaterStroke(t *testing.T) {
	s := loadedSurface(t, 300, 100)
	c := NewController(s)
	c.Apply(StrokeEvent{Tool: ToolPaint, Radius: 10, Points: []Point{{X: 20, Y: 50}, {X: 280, Y: 50}}})
	c.Apply(StrokeEvent{Tool: ToolPaint, Radius: 10, Points: []Point{{X: 20, Y: 50}, {X: 280, Y: 50}}})
	c.Apply(StrokeEvent{Tool: ToolErase, Radius: 30, Points: []Point{{X: 150, Y: 10}, {X: 150, Y: 90}}})

	ann := s.Annotation()
	for x := 130; x <= 170; x++ {
		if a := alphaAt(ann, x, 50); a != 0 {
			t.Fatalf("pixel (%d,50) alpha = %d inside erased band", x, a)
		}
	}
	if alphaAt(ann, 40, 50) == 0 || alphaAt(ann, 260, 50) == 0 {
		t.Fatalf("erase leaked outside its footprint")
	}
}

func TestToolSwitchOnlyAffectsNextStroke(t *testing.T) {
	s := loadedSurface(t, 200, 200)
	c := NewController(s)
	c.SetBrushRadius(10)
	c.BeginStroke(Point{X: 30, Y: 30})
	c.SetTool(ToolErase)
	c.ContinueStroke(Point{X: 90, Y: 30})
	c.EndStroke()
	if alphaAt(s.Annotation(), 90, 30) == 0 {
		t.Fatalf("tool switch altered the stroke in progress")
	}

	c.BeginStroke(Point{X: 150, Y: 150})
	c.EndStroke()
	if alphaAt(s.Annotation(), 60, 30) == 0 {
		t.Fatalf("erase stroke elsewhere removed an earlier stroke")
	}
	if alphaAt(s.Annotation(), 150, 150) != 0 {
		t.Fatalf("erase stroke painted")
	}
}

func TestRadiusChangeOnlyAffectsNextStroke(t *testing.T) {
	s := loadedSurface(t, 200, 200)
	c := NewController(s)
	c.SetBrushRadius(5)
	c.BeginStroke(Point{X: 20, Y: 20})
	c.SetBrushRadius(60)
	c.ContinueStroke(Point{X: 100, Y: 20})
	c.EndStroke()
	if alphaAt(s.Annotation(), 100, 50) != 0 {
		t.Fatalf("radius change widened the stroke in progress")
	}
	if c.BrushRadius() != 60 {
		t.Fatalf("radius = %v, want 60 for the next stroke", c.BrushRadius())
	}
}

func TestContinueStrokeLeavesNoGaps(t *testing.T) {
	s := loadedSurface(t, 400, 200)
	c := NewController(s)
	c.SetBrushRadius(MinBrushRadius)
	c.BeginStroke(Point{X: 20, Y: 100})
	c.ContinueStroke(Point{X: 380, Y: 100})
	c.EndStroke()
	ann := s.Annotation()
	for x := 20; x <= 380; x++ {
		if alphaAt(ann, x, 100) == 0 {
			t.Fatalf("gap at x=%d", x)
		}
	}
}

func TestEndStrokeForgetsPreviousPoint(t *testing.T) {
	s := loadedSurface(t, 200, 100)
	c := NewController(s)
	c.SetBrushRadius(5)
	c.BeginStroke(Point{X: 20, Y: 50})
	c.EndStroke()
	if c.ContinueStroke(Point{X: 100, Y: 50}) {
		t.Fatalf("ContinueStroke after EndStroke should be ignored")
	}
	c.BeginStroke(Point{X: 180, Y: 50})
	c.EndStroke()
	if alphaAt(s.Annotation(), 100, 50) != 0 {
		t.Fatalf("new stroke connected to a stale position")
	}
}

func TestStrokeDroppedAfterResize(t *testing.T) {
	s := loadedSurface(t, 400, 400)
	c := NewController(s)
	if !c.BeginStroke(Point{X: 50, Y: 50}) {
		t.Fatalf("BeginStroke failed")
	}
	if err := s.Fit(image.Pt(200, 200)); err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if c.ContinueStroke(Point{X: 150, Y: 150}) {
		t.Fatalf("stroke survived a resize")
	}
	if c.Drawing() {
		t.Fatalf("controller still drawing after stale stroke")
	}
	mask, err := Synthesize(s)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if n := mask.Coverage(); n != 0 {
		t.Fatalf("coverage after resize = %d, want 0", n)
	}
}

func TestClampBrushRadius(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{in: 1, want: MinBrushRadius},
		{in: 5, want: 5},
		{in: 40, want: 40},
		{in: 80, want: 80},
		{in: 500, want: MaxBrushRadius},
	}
	for _, tt := range tests {
		if got := ClampBrushRadius(tt.in); got != tt.want {
			t.Fatalf("ClampBrushRadius(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTool(t *testing.T) {
	for in, want := range map[string]Tool{"brush": ToolPaint, "paint": ToolPaint, "Eraser": ToolErase, "erase": ToolErase} {
		got, err := ParseTool(in)
		if err != nil || got != want {
			t.Fatalf("ParseTool(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTool("lasso"); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestSynthesizeIsBinaryAndRepeatable(t *testing.T) {
	s := loadedSurface(t, 120, 80)
	c := NewController(s)
	c.Apply(StrokeEvent{Tool: ToolPaint, Radius: 12, Points: []Point{{X: 10, Y: 10}, {X: 110, Y: 70}}})

	first, err := Synthesize(s)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	second, err := Synthesize(s)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	a, _ := first.PNG()
	b, _ := second.PNG()
	if !bytes.Equal(a, b) {
		t.Fatalf("mask encoding differs between runs")
	}
	for _, v := range first.Image().Pix {
		if v != 0 && v != 0xff {
			t.Fatalf("non-binary mask value %d", v)
		}
	}
	if first.Size() != image.Pt(120, 80) {
		t.Fatalf("mask size = %v", first.Size())
	}
}

func TestMaskResampleAndDecode(t *testing.T) {
	s := loadedSurface(t, 100, 50)
	c := NewController(s)
	c.Apply(StrokeEvent{Radius: 10, Points: []Point{{X: 25, Y: 25}}})
	mask, err := Synthesize(s)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	big := mask.Resample(image.Pt(200, 100))
	if big.Size() != image.Pt(200, 100) {
		t.Fatalf("resampled size = %v", big.Size())
	}
	for _, v := range big.Image().Pix {
		if v != 0 && v != 0xff {
			t.Fatalf("resampled mask not binary: %d", v)
		}
	}
	if !big.Covered(50, 50) || big.Covered(180, 20) {
		t.Fatalf("resampled coverage misplaced")
	}

	data, err := mask.PNG()
	if err != nil {
		t.Fatalf("PNG error: %v", err)
	}
	decoded, err := DecodeMask(data)
	if err != nil {
		t.Fatalf("DecodeMask error: %v", err)
	}
	if decoded.Coverage() != mask.Coverage() {
		t.Fatalf("decoded coverage = %d, want %d", decoded.Coverage(), mask.Coverage())
	}
}

func distanceToSegment(px, py float64, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = math.Max(0, math.Min(1, ((px-a.X)*dx+(py-a.Y)*dy)/l2))
	}
	cx, cy := a.X+t*dx, a.Y+t*dy
	return math.Hypot(px-cx, py-cy)
}

func TestCapsuleMaskAlongPath(t *testing.T) {
	s := NewSurface()
	if err := s.Load(solidImage(400, 600, color.White), image.Pt(800, 800)); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if s.Size() != image.Pt(400, 600) {
		t.Fatalf("surface size = %v", s.Size())
	}
	path := []Point{{X: 50, Y: 50}, {X: 100, Y: 50}, {X: 150, Y: 80}}
	c := NewController(s)
	c.Apply(StrokeEvent{Tool: ToolPaint, Radius: 40, Points: path})

	mask, err := Synthesize(s)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if mask.Size() != image.Pt(400, 600) {
		t.Fatalf("mask size = %v", mask.Size())
	}
	const radius, slack = 40.0, 2.0
	for y := 0; y < 600; y++ {
		for x := 0; x < 400; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			d := math.Min(distanceToSegment(px, py, path[0], path[1]), distanceToSegment(px, py, path[1], path[2]))
			switch {
			case d < radius-slack && !mask.Covered(x, y):
				t.Fatalf("pixel (%d,%d) at distance %.1f not selected", x, y, d)
			case d > radius+slack && mask.Covered(x, y):
				t.Fatalf("pixel (%d,%d) at distance %.1f selected", x, y, d)
			}
		}
	}
}
