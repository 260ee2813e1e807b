package genai

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	_ "image/jpeg"

	"github.com/fogleman/gg"

	"studio/internal/canvas"
)

// aspectSizes holds the canvas used for common aspect ratios.
var aspectSizes = map[string]image.Point{
	"16:9": {X: 1920, Y: 1080},
	"9:16": {X: 1080, Y: 1920},
	"4:5":  {X: 1024, Y: 1280},
	"3:4":  {X: 768, Y: 1024},
	"3:2":  {X: 1536, Y: 1024},
	"1:1":  {X: 1024, Y: 1024},
}

// syntheticEdit fills the masked region of the source with the mean colour of
// the unmasked pixels. Without a mask the source comes back unchanged.
func (c *Client) syntheticEdit(req EditRequest) ([]ImageAsset, error) {
	src, _, err := image.Decode(bytes.NewReader(req.Images[0].Data))
	if err != nil {
		return nil, fmt.Errorf("genai: decode source: %w", err)
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)

	if len(req.Images) > 1 {
		mask, err := canvas.DecodeMask(req.Images[1].Data)
		if err != nil {
			return nil, fmt.Errorf("genai: %w", err)
		}
		fillMasked(out, mask.Resample(out.Bounds().Size()))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("genai: encode synthetic edit: %w", err)
	}
	c.logger.Debug().Str("request_id", req.RequestID).Msg("genai: synthetic edit")
	return []ImageAsset{{Format: "image/png", Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes()}}, nil
}

func fillMasked(img *image.RGBA, mask *canvas.Mask) {
	var sum [3]uint64
	var n uint64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.Covered(x, y) {
				continue
			}
			px := img.RGBAAt(x, y)
			sum[0] += uint64(px.R)
			sum[1] += uint64(px.G)
			sum[2] += uint64(px.B)
			n++
		}
	}
	fill := color.RGBA{A: 255}
	if n > 0 {
		fill = color.RGBA{R: uint8(sum[0] / n), G: uint8(sum[1] / n), B: uint8(sum[2] / n), A: 255}
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.Covered(x, y) {
				img.SetRGBA(x, y, fill)
			}
		}
	}
}

// syntheticImages renders one striped gradient per requested image. The
// colours derive from the request, so equal requests give equal bytes.
func (c *Client) syntheticImages(req ImageRequest) ([]ImageAsset, error) {
	size := aspectSize(req.AspectRatio)
	quantity := clampQuantity(req.Quantity)
	assets := make([]ImageAsset, 0, quantity)
	for i := 0; i < quantity; i++ {
		data, err := renderPlaceholder(size, seed(req.RequestID, req.Prompt, req.Locale, strconv.Itoa(i)))
		if err != nil {
			return nil, fmt.Errorf("genai: render synthetic image: %w", err)
		}
		assets = append(assets, ImageAsset{Format: "image/png", Width: size.X, Height: size.Y, Data: data})
	}
	c.logger.Debug().Str("request_id", req.RequestID).Int("quantity", quantity).Msg("genai: synthetic images")
	return assets, nil
}

func renderPlaceholder(size image.Point, seed uint64) ([]byte, error) {
	dc := gg.NewContext(size.X, size.Y)
	base := seedColor(seed)
	accent := seedColor(seed >> 24)

	grad := gg.NewLinearGradient(0, 0, float64(size.X), float64(size.Y))
	grad.AddColorStop(0, base)
	grad.AddColorStop(1, accent)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(size.X), float64(size.Y))
	dc.Fill()

	stripe := float64(max(32, size.Y/12))
	dc.SetColor(color.RGBA{R: 255, G: 255, B: 255, A: 48})
	for y := 0.0; y < float64(size.Y); y += 2 * stripe {
		dc.DrawRectangle(0, y, float64(size.X), stripe)
	}
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func seed(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func seedColor(s uint64) color.RGBA {
	return color.RGBA{R: uint8(s), G: uint8(s >> 8), B: uint8(s >> 16), A: 255}
}

// aspectSize maps "W:H" to a canvas. Unknown but well-formed ratios keep a
// width of 1024; anything else is square.
func aspectSize(aspect string) image.Point {
	aspect = strings.ToLower(strings.TrimSpace(aspect))
	if size, ok := aspectSizes[aspect]; ok {
		return size
	}
	ws, hs, ok := strings.Cut(aspect, ":")
	if ok {
		w, errW := strconv.Atoi(strings.TrimSpace(ws))
		h, errH := strconv.Atoi(strings.TrimSpace(hs))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return image.Pt(1024, 1024*h/w)
		}
	}
	return aspectSizes["1:1"]
}
