package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
)

// BrushColor is the on-screen feedback colour of painted regions. Only its
// coverage matters for the mask.
var BrushColor = color.NRGBA{R: 255, G: 0, B: 0, A: 153}

// Point is a position in surface pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// segment is a round-capped line from one point to another. A segment whose
// ends coincide is a single disc.
type segment struct {
	from   Point
	to     Point
	radius float64
	tool   Tool
}

func (seg segment) area(limit image.Rectangle) image.Rectangle {
	pad := seg.radius + 2
	r := image.Rect(
		int(math.Floor(math.Min(seg.from.X, seg.to.X)-pad)),
		int(math.Floor(math.Min(seg.from.Y, seg.to.Y)-pad)),
		int(math.Ceil(math.Max(seg.from.X, seg.to.X)+pad)),
		int(math.Ceil(math.Max(seg.from.Y, seg.to.Y)+pad)),
	)
	return r.Intersect(limit)
}

// coverage rasterizes the capsule into an RGBA image whose origin maps to
// area.Min. The line is stroked at twice the radius with round caps and joins,
// and both ends are stamped as discs so a degenerate segment still marks.
func (seg segment) coverage(area image.Rectangle) *image.RGBA {
	cov := image.NewRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
	dc := gg.NewContextForRGBA(cov)
	dc.SetRGBA(1, 1, 1, 1)

	ox, oy := float64(area.Min.X), float64(area.Min.Y)
	fx, fy := seg.from.X-ox, seg.from.Y-oy
	tx, ty := seg.to.X-ox, seg.to.Y-oy

	dc.DrawCircle(fx, fy, seg.radius)
	dc.Fill()
	if seg.from != seg.to {
		dc.SetLineWidth(2 * seg.radius)
		dc.SetLineCapRound()
		dc.SetLineJoinRound()
		dc.MoveTo(fx, fy)
		dc.LineTo(tx, ty)
		dc.Stroke()
		dc.DrawCircle(tx, ty, seg.radius)
		dc.Fill()
	}
	return cov
}

func (seg segment) drawInto(dst *image.RGBA) {
	if seg.radius <= 0 {
		return
	}
	area := seg.area(dst.Bounds())
	if area.Empty() {
		return
	}
	cov := seg.coverage(area)
	switch seg.tool {
	case ToolErase:
		eraseCovered(dst, area, cov)
	default:
		draw.DrawMask(dst, area, image.NewUniform(BrushColor), image.Point{}, cov, image.Point{}, draw.Over)
	}
}

// eraseCovered clears every destination pixel the coverage touches. Partial
// coverage still clears fully.
func eraseCovered(dst *image.RGBA, area image.Rectangle, cov *image.RGBA) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if cov.Pix[cov.PixOffset(x-area.Min.X, y-area.Min.Y)+3] == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = 0
			dst.Pix[i+1] = 0
			dst.Pix[i+2] = 0
			dst.Pix[i+3] = 0
		}
	}
}
