package canvas

import (
	"fmt"
	"strings"
)

// Tool selects how a stroke composites onto the annotation layer.
type Tool string

const (
	// ToolPaint draws the feedback colour over whatever is there.
	ToolPaint Tool = "paint"
	// ToolErase clears touched pixels to fully transparent.
	ToolErase Tool = "erase"
)

// Brush radius limits applied by the controller's setters.
const (
	MinBrushRadius     = 5.0
	MaxBrushRadius     = 80.0
	DefaultBrushRadius = 20.0
)

// ParseTool accepts the tool names used by clients, including the editor's
// "brush" and "eraser" labels.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paint", "brush", "":
		return ToolPaint, nil
	case "erase", "eraser":
		return ToolErase, nil
	default:
		return "", fmt.Errorf("canvas: unknown tool %q", s)
	}
}

// ClampBrushRadius limits r to [MinBrushRadius, MaxBrushRadius].
func ClampBrushRadius(r float64) float64 {
	if r < MinBrushRadius {
		return MinBrushRadius
	}
	if r > MaxBrushRadius {
		return MaxBrushRadius
	}
	return r
}

// StrokeEvent is one continuous pointer drag. Tool and Radius are fixed for
// the whole stroke.
type StrokeEvent struct {
	Tool   Tool    `json:"tool" yaml:"tool"`
	Radius float64 `json:"radius" yaml:"radius"`
	Points []Point `json:"points" yaml:"points"`
}

type activeStroke struct {
	tool   Tool
	radius float64
	last   Point
	epoch  uint64
}

// Controller turns pointer positions into draw and erase operations on a
// Surface. It is not safe for concurrent use; callers serialize access.
type Controller struct {
	surface *Surface
	tool    Tool
	radius  float64
	active  *activeStroke
}

// NewController returns a controller painting with the default radius.
func NewController(surface *Surface) *Controller {
	return &Controller{
		surface: surface,
		tool:    ToolPaint,
		radius:  DefaultBrushRadius,
	}
}

// SetTool selects the tool for the next stroke.
func (c *Controller) SetTool(t Tool) {
	if t != ToolErase {
		t = ToolPaint
	}
	c.tool = t
}

// Tool returns the tool the next stroke will use.
func (c *Controller) Tool() Tool { return c.tool }

// SetBrushRadius sets the radius for the next stroke and returns the clamped value.
func (c *Controller) SetBrushRadius(r float64) float64 {
	c.radius = ClampBrushRadius(r)
	return c.radius
}

// BrushRadius returns the radius the next stroke will use.
func (c *Controller) BrushRadius() float64 { return c.radius }

// Drawing reports whether a stroke is in progress.
func (c *Controller) Drawing() bool { return c.active != nil }

// BeginStroke stamps a disc at p and starts a stroke with the current tool
// and radius. It returns false when the surface has no image.
func (c *Controller) BeginStroke(p Point) bool {
	epoch := c.surface.Epoch()
	stroke := &activeStroke{tool: c.tool, radius: c.radius, last: p, epoch: epoch}
	if !c.surface.apply(segment{from: p, to: p, radius: stroke.radius, tool: stroke.tool}, epoch) {
		c.active = nil
		return false
	}
	c.active = stroke
	return true
}

// ContinueStroke draws a capsule from the previous point to p. A stroke that
// outlived a resize of the surface is abandoned and false is returned.
func (c *Controller) ContinueStroke(p Point) bool {
	if c.active == nil {
		return false
	}
	seg := segment{from: c.active.last, to: p, radius: c.active.radius, tool: c.active.tool}
	if !c.surface.apply(seg, c.active.epoch) {
		c.active = nil
		return false
	}
	c.active.last = p
	return true
}

// EndStroke forgets the previous point.
func (c *Controller) EndStroke() {
	c.active = nil
}

// Apply replays a recorded stroke: the event's tool and radius become the
// controller's settings, then the points are drawn in order. It returns the
// number of points that reached the surface.
func (c *Controller) Apply(ev StrokeEvent) int {
	if len(ev.Points) == 0 {
		return 0
	}
	c.SetTool(ev.Tool)
	if ev.Radius > 0 {
		c.SetBrushRadius(ev.Radius)
	}
	defer c.EndStroke()
	if !c.BeginStroke(ev.Points[0]) {
		return 0
	}
	applied := 1
	for _, p := range ev.Points[1:] {
		if !c.ContinueStroke(p) {
			break
		}
		applied++
	}
	return applied
}
