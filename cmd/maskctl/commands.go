package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/jpeg"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"studio/internal/canvas"
	"studio/internal/drag"
	"studio/internal/maskedit"
)

const defaultPanel = "1000x800"

func newRenderCommand() *cobra.Command {
	var (
		scriptPath    string
		panelFlag     string
		outPath       string
		compositePath string
		displaySize   bool
	)
	cmd := &cobra.Command{
		Use:   "render IMAGE",
		Short: "Replay a stroke script over an image and write the mask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := decodeImageFile(args[0])
			if err != nil {
				return err
			}
			script, err := loadStrokeScript(scriptPath)
			if err != nil {
				return err
			}
			panel, err := parseDimensions(panelFlag)
			if err != nil {
				return err
			}
			if script.Panel != nil && !cmd.Flags().Changed("panel") {
				panel = image.Pt(int(script.Panel.Width), int(script.Panel.Height))
			}

			result, err := render(src, panel, script.events())
			if err != nil {
				return err
			}
			mask := result.mask
			if !displaySize {
				mask = mask.Resample(result.source)
			}
			data, err := mask.PNG()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write mask: %w", err)
			}
			if compositePath != "" {
				var buf bytes.Buffer
				if err := png.Encode(&buf, result.composite); err != nil {
					return fmt.Errorf("encode composite: %w", err)
				}
				if err := os.WriteFile(compositePath, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write composite: %w", err)
				}
			}

			size := mask.Size()
			rows := [][]string{
				{"Source", dims(result.source)},
				{"Panel", dims(panel)},
				{"Display", dims(result.display)},
				{"Strokes", fmt.Sprint(len(script.Strokes))},
				{"Points applied", fmt.Sprint(result.applied)},
				{"Mask", dims(size)},
				{"Covered", fmt.Sprintf("%s px (%s)", humanize.Comma(int64(mask.Coverage())), percent(mask.Coverage(), size))},
				{"Written", fmt.Sprintf("%s (%s)", outPath, humanize.Bytes(uint64(len(data))))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&scriptPath, "strokes", "s", "", "YAML stroke script")
	cmd.Flags().StringVar(&panelFlag, "panel", defaultPanel, "Editor panel size as WIDTHxHEIGHT")
	cmd.Flags().StringVarP(&outPath, "out", "o", "mask.png", "Mask output path")
	cmd.Flags().StringVar(&compositePath, "composite", "", "Also write the annotated preview to this path")
	cmd.Flags().BoolVar(&displaySize, "display-size", false, "Keep the mask at display size instead of source size")
	_ = cmd.MarkFlagRequired("strokes")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats MASK",
		Short: "Summarize the coverage of a mask PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read mask: %w", err)
			}
			mask, err := canvas.DecodeMask(data)
			if err != nil {
				return err
			}
			size := mask.Size()
			bounds := "none"
			if b, ok := coveredBounds(mask); ok {
				bounds = fmt.Sprintf("(%d,%d)-(%d,%d)", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
			}
			rows := [][]string{
				{"Size", dims(size)},
				{"File", humanize.Bytes(uint64(len(data)))},
				{"Covered", humanize.Comma(int64(mask.Coverage()))},
				{"Ratio", percent(mask.Coverage(), size)},
				{"Bounds", bounds},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}

func newFitCommand() *cobra.Command {
	var sourceFlag, panelFlag string
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Show the display size of an image inside an editor panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseDimensions(sourceFlag)
			if err != nil {
				return err
			}
			panel, err := parseDimensions(panelFlag)
			if err != nil {
				return err
			}
			box := maskedit.SurfaceBox(drag.Size{Width: float64(panel.X), Height: float64(panel.Y)})
			display := canvas.FitSize(source.X, source.Y, box)
			rows := [][]string{
				{"Source", dims(source)},
				{"Panel", dims(panel)},
				{"Surface box", dims(box)},
				{"Display", dims(display)},
				{"Scale", fmt.Sprintf("%.3f", float64(display.X)/float64(source.X))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Source image size as WIDTHxHEIGHT")
	cmd.Flags().StringVar(&panelFlag, "panel", defaultPanel, "Editor panel size as WIDTHxHEIGHT")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

type renderResult struct {
	source    image.Point
	display   image.Point
	applied   int
	mask      *canvas.Mask
	composite *image.RGBA
}

func render(src image.Image, panel image.Point, strokes []canvas.StrokeEvent) (renderResult, error) {
	surface := canvas.NewSurface()
	defer surface.Close()
	box := maskedit.SurfaceBox(drag.Size{Width: float64(panel.X), Height: float64(panel.Y)})
	if err := surface.Load(src, box); err != nil {
		return renderResult{}, err
	}
	ctrl := canvas.NewController(surface)
	applied := 0
	for _, ev := range strokes {
		applied += ctrl.Apply(ev)
	}
	mask, err := canvas.Synthesize(surface)
	if err != nil {
		return renderResult{}, err
	}
	return renderResult{
		source:    surface.SourceSize(),
		display:   surface.Size(),
		applied:   applied,
		mask:      mask,
		composite: surface.Composite(),
	}, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

func coveredBounds(m *canvas.Mask) (image.Rectangle, bool) {
	size := m.Size()
	minX, minY, maxX, maxY := size.X, size.Y, -1, -1
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if !m.Covered(x, y) {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func dims(p image.Point) string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}

func percent(n int, size image.Point) string {
	total := size.X * size.Y
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
