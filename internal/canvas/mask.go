package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// MaskAlphaThreshold is the annotation alpha above which a pixel is selected.
const MaskAlphaThreshold uint8 = 0

const (
	maskOn  uint8 = 0xff
	maskOff uint8 = 0x00
)

// Mask is a binary selection: every pixel is opaque white (regenerate) or
// opaque black (keep). A Mask never changes after it is built.
type Mask struct {
	gray *image.Gray
}

// Synthesize builds the mask for the surface's current annotation. The result
// has exactly the annotation's dimensions.
func Synthesize(s *Surface) (*Mask, error) {
	var m *Mask
	err := s.withAnnotation(func(ann *image.RGBA) {
		m = MaskFromAnnotation(ann)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MaskFromAnnotation thresholds the alpha channel of ann.
func MaskFromAnnotation(ann *image.RGBA) *Mask {
	b := ann.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := ann.PixOffset(b.Min.X, b.Min.Y+y)
		out := gray.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			if ann.Pix[row+4*x+3] > MaskAlphaThreshold {
				gray.Pix[out+x] = maskOn
			} else {
				gray.Pix[out+x] = maskOff
			}
		}
	}
	return &Mask{gray: gray}
}

// DecodeMask reads an encoded image and binarizes it by luminance: any
// non-black pixel is selected.
func DecodeMask(data []byte) (*Mask, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("canvas: decode mask: %w", err)
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	for i, v := range gray.Pix {
		if v > 0 {
			gray.Pix[i] = maskOn
		}
	}
	return &Mask{gray: gray}, nil
}

// Size returns the mask dimensions.
func (m *Mask) Size() image.Point {
	return m.gray.Bounds().Size()
}

// Covered reports whether (x, y) is selected.
func (m *Mask) Covered(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.gray.Bounds()) {
		return false
	}
	return m.gray.Pix[m.gray.PixOffset(x, y)] == maskOn
}

// Coverage counts the selected pixels.
func (m *Mask) Coverage() int {
	n := 0
	for _, v := range m.gray.Pix {
		if v == maskOn {
			n++
		}
	}
	return n
}

// Image returns a copy of the mask as a grayscale image.
func (m *Mask) Image() *image.Gray {
	out := image.NewGray(m.gray.Bounds())
	copy(out.Pix, m.gray.Pix)
	return out
}

// PNG encodes the mask. Equal masks encode to identical bytes.
func (m *Mask) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.gray); err != nil {
		return nil, fmt.Errorf("canvas: encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// Resample returns the mask scaled to size with nearest-neighbour sampling,
// so the result stays strictly binary.
func (m *Mask) Resample(size image.Point) *Mask {
	if size == m.Size() || size.X <= 0 || size.Y <= 0 {
		return m
	}
	gray := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	xdraw.NearestNeighbor.Scale(gray, gray.Bounds(), m.gray, m.gray.Bounds(), draw.Src, nil)
	return &Mask{gray: gray}
}
