package main

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"studio/internal/canvas"
	"studio/internal/drag"
)

// strokeScript is a recorded editing session:
//
//	panel: {width: 1000, height: 800}
//	strokes:
//	  - tool: paint
//	    radius: 24
//	    points: [{x: 10, y: 12}, {x: 80, y: 12}]
type strokeScript struct {
	Panel   *drag.Size     `yaml:"panel"`
	Strokes []scriptStroke `yaml:"strokes"`
}

type scriptStroke struct {
	Tool   string         `yaml:"tool"`
	Radius float64        `yaml:"radius"`
	Points []canvas.Point `yaml:"points"`
}

func loadStrokeScript(path string) (strokeScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return strokeScript{}, fmt.Errorf("read stroke script: %w", err)
	}
	return parseStrokeScript(data)
}

func parseStrokeScript(data []byte) (strokeScript, error) {
	var script strokeScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return strokeScript{}, fmt.Errorf("parse stroke script: %w", err)
	}
	for i, s := range script.Strokes {
		if _, err := canvas.ParseTool(s.Tool); err != nil {
			return strokeScript{}, fmt.Errorf("stroke %d: %w", i, err)
		}
		if len(s.Points) == 0 {
			return strokeScript{}, fmt.Errorf("stroke %d: no points", i)
		}
	}
	return script, nil
}

func (s strokeScript) events() []canvas.StrokeEvent {
	out := make([]canvas.StrokeEvent, 0, len(s.Strokes))
	for _, st := range s.Strokes {
		tool, _ := canvas.ParseTool(st.Tool)
		out = append(out, canvas.StrokeEvent{Tool: tool, Radius: st.Radius, Points: st.Points})
	}
	return out
}

// parseDimensions parses "WIDTHxHEIGHT".
func parseDimensions(s string) (image.Point, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("invalid dimensions %q, want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return image.Point{}, fmt.Errorf("invalid width in %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return image.Point{}, fmt.Errorf("invalid height in %q", s)
	}
	return image.Pt(w, h), nil
}
