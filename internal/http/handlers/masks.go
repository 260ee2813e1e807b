package handlers

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/canvas"
	"studio/internal/drag"
	"studio/internal/maskedit"
	"studio/internal/middleware"
	"studio/internal/results"
)

type openSessionRequest struct {
	View    string     `json:"view"`
	SubView string     `json:"sub_view"`
	Index   int        `json:"index"`
	Panel   *drag.Size `json:"panel,omitempty"`
}

type strokeRequest struct {
	Tool   string         `json:"tool"`
	Radius float64        `json:"radius"`
	Points []canvas.Point `json:"points"`
}

type toolRequest struct {
	Tool   string  `json:"tool"`
	Radius float64 `json:"radius"`
}

type pointerRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (a *App) OpenMaskSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	if req.View == "" || req.SubView == "" {
		a.badRequest(w, r, "view and sub_view are required")
		return
	}
	panel := a.DefaultPanel
	if req.Panel != nil {
		panel = *req.Panel
	}
	snap, err := a.Sessions.Open(results.ViewKey{View: req.View, SubView: req.SubView}, req.Index, panel)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, snap)
}

func (a *App) GetMaskSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) MaskStrokes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req []strokeRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	strokes := make([]canvas.StrokeEvent, 0, len(req))
	for i, s := range req {
		tool, err := canvas.ParseTool(s.Tool)
		if err != nil {
			a.badRequest(w, r, fmt.Sprintf("stroke %d: unknown tool %q", i, s.Tool))
			return
		}
		strokes = append(strokes, canvas.StrokeEvent{Tool: tool, Radius: s.Radius, Points: s.Points})
	}
	applied, err := a.Sessions.Strokes(id, strokes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.Sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"applied": applied, "session": snap})
}

func (a *App) MaskTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	tool, err := canvas.ParseTool(req.Tool)
	if err != nil {
		a.badRequest(w, r, fmt.Sprintf("unknown tool %q", req.Tool))
		return
	}
	snap, err := a.Sessions.SetTool(chi.URLParam(r, "id"), tool, req.Radius)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) MaskPanel(w http.ResponseWriter, r *http.Request) {
	a.pointer(w, r, a.Sessions.Panel)
}

func (a *App) MaskBrush(w http.ResponseWriter, r *http.Request) {
	a.pointer(w, r, a.Sessions.BrushDrag)
}

func (a *App) pointer(w http.ResponseWriter, r *http.Request, feed func(string, maskedit.Phase, drag.Pointer) (maskedit.Snapshot, error)) {
	var req pointerRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	phase, err := maskedit.ParsePhase(req.Phase)
	if err != nil {
		a.badRequest(w, r, fmt.Sprintf("unknown phase %q", req.Phase))
		return
	}
	snap, err := feed(chi.URLParam(r, "id"), phase, drag.Pointer{X: req.X, Y: req.Y})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) MaskClear(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Clear(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

// MaskPreview returns the mask the session would confirm right now.
func (a *App) MaskPreview(w http.ResponseWriter, r *http.Request) {
	mask, err := a.Sessions.Preview(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	data, err := mask.PNG()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.png(w, data)
}

// MaskComposite returns the annotation drawn over the background.
func (a *App) MaskComposite(w http.ResponseWriter, r *http.Request) {
	img, err := a.Sessions.Composite(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		a.fail(w, r, err)
		return
	}
	a.png(w, buf.Bytes())
}

// MaskConfirm ends the session and runs the inpaint for its mask.
func (a *App) MaskConfirm(w http.ResponseWriter, r *http.Request) {
	conf, err := a.Sessions.Confirm(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	artifact, err := a.Cleanup.CleanWithMask(r.Context(), conf.Key, conf.Index, conf.Artifact, conf.Mask, middleware.RequestIDFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.cleaned(w, r, conf.Key, artifact)
}

func (a *App) MaskCancel(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Cancel(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) png(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
