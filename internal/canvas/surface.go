// Package canvas implements the raster side of the mask editor: a background
// layer holding the picture being cleaned, an annotation layer receiving brush
// strokes, and the conversion of that annotation into a binary inpainting mask.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"

	"studio/internal/domain"
)

// ErrNoImage is returned by operations that need a loaded surface.
var ErrNoImage = errors.New("canvas: no image loaded")

// Surface is a pair of same-sized RGBA buffers. The background is written only
// by Load and Fit; the annotation is what strokes draw into. Every Load or Fit
// starts a new epoch, and strokes begun in an older epoch are dropped.
type Surface struct {
	mu         sync.Mutex
	source     image.Image
	background *image.RGBA
	annotation *image.RGBA
	epoch      uint64
}

// NewSurface returns an empty surface. Call Load before drawing.
func NewSurface() *Surface {
	return &Surface{}
}

// Load keeps src as the original image and sizes both layers to fit box.
func (s *Surface) Load(src image.Image, box image.Point) error {
	if src == nil || src.Bounds().Empty() {
		return fmt.Errorf("canvas: load: %w", domain.ErrInvalidImage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	return s.fitLocked(box)
}

// Fit recomputes the layer size for a new bounding box. The background is
// resampled from the original image, never from the previous display copy,
// and the annotation is cleared.
func (s *Surface) Fit(box image.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return ErrNoImage
	}
	return s.fitLocked(box)
}

func (s *Surface) fitLocked(box image.Point) error {
	src := s.source.Bounds()
	size := FitSize(src.Dx(), src.Dy(), box)
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("canvas: bounding box %dx%d too small", box.X, box.Y)
	}
	rect := image.Rect(0, 0, size.X, size.Y)
	bg := image.NewRGBA(rect)
	if size == src.Size() {
		draw.Draw(bg, rect, s.source, src.Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(bg, rect, s.source, src, draw.Src, nil)
	}
	s.background = bg
	s.annotation = image.NewRGBA(rect)
	s.epoch++
	return nil
}

// Clear resets the annotation layer to fully transparent.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotation != nil {
		clear(s.annotation.Pix)
	}
}

// Close drops both layers and the original image.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = nil
	s.background = nil
	s.annotation = nil
	s.epoch++
}

// Loaded reports whether the surface currently holds an image.
func (s *Surface) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotation != nil
}

// Size returns the shared dimensions of both layers.
func (s *Surface) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotation == nil {
		return image.Point{}
	}
	return s.annotation.Bounds().Size()
}

// SourceSize returns the natural size of the original image.
func (s *Surface) SourceSize() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return image.Point{}
	}
	return s.source.Bounds().Size()
}

// Epoch identifies the current geometry of the surface.
func (s *Surface) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Background returns a copy of the background layer.
func (s *Surface) Background() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.background)
}

// Annotation returns a copy of the annotation layer.
func (s *Surface) Annotation() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.annotation)
}

// Composite renders the annotation over the background, as the editor shows it.
func (s *Surface) Composite() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cloneRGBA(s.background)
	if out == nil {
		return nil
	}
	draw.Draw(out, out.Bounds(), s.annotation, image.Point{}, draw.Over)
	return out
}

// apply draws seg into the annotation if the surface is still in epoch.
func (s *Surface) apply(seg segment, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotation == nil || epoch != s.epoch {
		return false
	}
	seg.drawInto(s.annotation)
	return true
}

func (s *Surface) withAnnotation(fn func(*image.RGBA)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotation == nil {
		return ErrNoImage
	}
	fn(s.annotation)
	return nil
}

// FitSize returns the display size for an imgW x imgH picture inside box. The
// aspect ratio is preserved and the picture is never enlarged past its
// natural size.
func FitSize(imgW, imgH int, box image.Point) image.Point {
	if imgW <= 0 || imgH <= 0 || box.X <= 0 || box.Y <= 0 {
		return image.Point{}
	}
	scale := math.Min(float64(box.X)/float64(imgW), float64(box.Y)/float64(imgH))
	if scale >= 1 {
		return image.Pt(imgW, imgH)
	}
	w := int(math.Round(float64(imgW) * scale))
	h := int(math.Round(float64(imgH) * scale))
	w = min(max(w, 1), box.X)
	h = min(max(h, 1), box.Y)
	return image.Pt(w, h)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
