// Package maskedit hosts interactive mask-editing sessions. A session owns a
// canvas surface loaded with one stored artifact, the controller drawing on
// it, and the two resize interactions of the editor: the panel and the brush.
package maskedit

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/canvas"
	"studio/internal/domain"
	"studio/internal/drag"
	"studio/internal/infra"
	"studio/internal/results"
)

// Editor chrome around the drawing surface, in pixels.
const (
	ChromeWidth  = 32
	ChromeHeight = 150
)

// DefaultMaxPixels bounds the decoded size of an artifact opened for editing.
const DefaultMaxPixels = 40_000_000

// MinPanel is the smallest editor panel.
var MinPanel = drag.Size{Width: 450, Height: 450}

// Phase is a pointer phase of a resize interaction.
type Phase string

const (
	PhasePress   Phase = "press"
	PhaseMove    Phase = "move"
	PhaseRelease Phase = "release"
	PhaseCancel  Phase = "cancel"
)

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhasePress, PhaseMove, PhaseRelease, PhaseCancel:
		return p, nil
	default:
		return "", fmt.Errorf("maskedit: unknown phase %q", s)
	}
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	ID          string          `json:"id"`
	Key         results.ViewKey `json:"key"`
	Index       int             `json:"index"`
	Panel       drag.Size       `json:"panel"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	SourceW     int             `json:"sourceWidth"`
	SourceH     int             `json:"sourceHeight"`
	Tool        canvas.Tool     `json:"tool"`
	BrushRadius float64         `json:"brushRadius"`
	PanelDrag   string          `json:"panelDrag"`
	BrushDrag   string          `json:"brushDrag"`
	Listeners   int             `json:"listeners"`
	Covered     int             `json:"covered"`
}

// Confirmation is what a confirmed session hands to the cleanup step.
type Confirmation struct {
	Key   results.ViewKey
	Index int
	// Artifact is the stored artifact the mask was drawn on.
	Artifact string
	Mask     *canvas.Mask
}

type session struct {
	id       string
	key      results.ViewKey
	index    int
	artifact string

	mu        sync.Mutex
	surface   *canvas.Surface
	ctrl      *canvas.Controller
	panel     drag.Size
	panelDrag *drag.Resizer
	brushDrag *drag.Resizer
	listeners int
	touched   time.Time
}

// Manager owns every open session.
type Manager struct {
	reader    results.Reader
	logger    *infra.Logger
	maxPanel  drag.Size
	maxPixels int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Options configures a Manager.
type Options struct {
	Reader results.Reader
	Logger *infra.Logger
	// MaxPanel bounds panel resizing. Zero fields are unbounded.
	MaxPanel drag.Size
	// MaxPixels rejects artifacts whose width times height exceeds it.
	// Zero means DefaultMaxPixels.
	MaxPixels int
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Manager{
		reader:    opts.Reader,
		logger:    logger,
		maxPanel:  opts.MaxPanel,
		maxPixels: maxPixels,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Open starts a session on the artifact at index of key, laid out in a panel
// of the given size.
func (m *Manager) Open(key results.ViewKey, index int, panel drag.Size) (Snapshot, error) {
	rs := m.reader.Get(key)
	if index < 0 || index >= rs.Len() {
		return Snapshot{}, fmt.Errorf("maskedit: %s[%d] of %d: %w", key, index, rs.Len(), domain.ErrOutOfRange)
	}
	artifact := rs.URLs[index]
	img, err := m.decode(artifact)
	if err != nil {
		return Snapshot{}, err
	}

	s := &session{
		id:       uuid.NewString(),
		key:      key,
		index:    index,
		artifact: artifact,
		surface:  canvas.NewSurface(),
		touched:  m.now(),
	}
	s.panel = clampPanel(panel, m.maxPanel)
	if err := s.surface.Load(img, SurfaceBox(s.panel)); err != nil {
		return Snapshot{}, err
	}
	s.ctrl = canvas.NewController(s.surface)
	hooks := drag.Hooks{
		Attach: func() { s.listeners++ },
		Detach: func() { s.listeners-- },
	}
	s.panelDrag = drag.NewResizer(drag.Limits{Min: MinPanel, Max: m.maxPanel}, hooks)
	s.brushDrag = drag.NewResizer(drag.Limits{
		Min: drag.Size{Width: canvas.MinBrushRadius},
		Max: drag.Size{Width: canvas.MaxBrushRadius},
	}, hooks)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Debug().
		Str("session", s.id).
		Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
		Msg("maskedit: session opened")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Get returns the current state of a session.
func (m *Manager) Get(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(s *session) error {
		snap = s.snapshotLocked()
		return nil
	})
	return snap, err
}

// Strokes replays recorded strokes in order and returns the number of points
// that reached the surface.
func (m *Manager) Strokes(id string, strokes []canvas.StrokeEvent) (int, error) {
	applied := 0
	err := m.with(id, func(s *session) error {
		for _, ev := range strokes {
			applied += s.ctrl.Apply(ev)
		}
		return nil
	})
	return applied, err
}

// SetTool changes the tool and, when radius is positive, the brush radius
// for subsequent strokes.
func (m *Manager) SetTool(id string, tool canvas.Tool, radius float64) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(s *session) error {
		s.ctrl.SetTool(tool)
		if radius > 0 {
			s.ctrl.SetBrushRadius(radius)
		}
		snap = s.snapshotLocked()
		return nil
	})
	return snap, err
}

// Panel feeds one pointer event to the panel resize interaction. The surface
// is refitted whenever the panel size changes the display size, which clears
// the annotation.
func (m *Manager) Panel(id string, phase Phase, p drag.Pointer) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(s *session) error {
		var size drag.Size
		switch phase {
		case PhasePress:
			s.panelDrag.Press(p, s.panel)
			snap = s.snapshotLocked()
			return nil
		case PhaseMove:
			next, ok := s.panelDrag.Move(p)
			if !ok {
				snap = s.snapshotLocked()
				return nil
			}
			size = next
		case PhaseRelease:
			if s.panelDrag.State() != drag.Dragging {
				snap = s.snapshotLocked()
				return nil
			}
			size = s.panelDrag.Release()
		case PhaseCancel:
			s.panelDrag.Cancel()
			snap = s.snapshotLocked()
			return nil
		default:
			return fmt.Errorf("maskedit: unknown phase %q", phase)
		}
		if err := s.resizeLocked(size); err != nil {
			return err
		}
		snap = s.snapshotLocked()
		return nil
	})
	return snap, err
}

// BrushDrag feeds one pointer event to the brush-size interaction. Only the
// horizontal delta matters.
func (m *Manager) BrushDrag(id string, phase Phase, p drag.Pointer) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(s *session) error {
		switch phase {
		case PhasePress:
			s.brushDrag.Press(p, drag.Size{Width: s.ctrl.BrushRadius()})
		case PhaseMove:
			if size, ok := s.brushDrag.Move(p); ok {
				s.ctrl.SetBrushRadius(math.Round(size.Width))
			}
		case PhaseRelease:
			if s.brushDrag.State() == drag.Dragging {
				s.ctrl.SetBrushRadius(math.Round(s.brushDrag.Release().Width))
			}
		case PhaseCancel:
			s.brushDrag.Cancel()
		default:
			return fmt.Errorf("maskedit: unknown phase %q", phase)
		}
		snap = s.snapshotLocked()
		return nil
	})
	return snap, err
}

// Clear erases every annotation of the session.
func (m *Manager) Clear(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(s *session) error {
		s.ctrl.EndStroke()
		s.surface.Clear()
		snap = s.snapshotLocked()
		return nil
	})
	return snap, err
}

// Preview synthesizes the current mask without ending the session.
func (m *Manager) Preview(id string) (*canvas.Mask, error) {
	var mask *canvas.Mask
	err := m.with(id, func(s *session) error {
		var err error
		mask, err = canvas.Synthesize(s.surface)
		return err
	})
	return mask, err
}

// Composite renders the annotation over the background.
func (m *Manager) Composite(id string) (*image.RGBA, error) {
	var img *image.RGBA
	err := m.with(id, func(s *session) error {
		img = s.surface.Composite()
		return nil
	})
	return img, err
}

// Confirm synthesizes the final mask and ends the session. A session without
// any annotation stays open and ErrEmptyMask is returned.
func (m *Manager) Confirm(id string) (Confirmation, error) {
	var conf Confirmation
	err := m.with(id, func(s *session) error {
		s.ctrl.EndStroke()
		mask, err := canvas.Synthesize(s.surface)
		if err != nil {
			return err
		}
		if mask.Coverage() == 0 {
			return domain.ErrEmptyMask
		}
		conf = Confirmation{Key: s.key, Index: s.index, Artifact: s.artifact, Mask: mask}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}
	m.close(id)
	return conf, nil
}

// Cancel ends a session without producing a mask.
func (m *Manager) Cancel(id string) error {
	if !m.close(id) {
		return fmt.Errorf("maskedit: session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were closed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.touched.Before(cutoff) {
			stale = append(stale, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range stale {
		if m.close(id) {
			closed++
		}
	}
	if closed > 0 {
		m.logger.Info().Int("sessions", closed).Msg("maskedit: swept idle sessions")
	}
	return closed
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(maxIdle)
		}
	}
}

// IDs lists open session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	for _, id := range m.IDs() {
		m.close(id)
	}
}

// decode reads the image header first so oversized artifacts are rejected
// before their pixels are allocated.
func (m *Manager) decode(artifact string) (image.Image, error) {
	asset, err := domain.DecodeArtifact(artifact)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, fmt.Errorf("maskedit: %v: %w", err, domain.ErrInvalidImage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(m.maxPixels) {
		return nil, fmt.Errorf("maskedit: %dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, m.maxPixels, domain.ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, fmt.Errorf("maskedit: %v: %w", err, domain.ErrInvalidImage)
	}
	return img, nil
}

func (m *Manager) with(id string, fn func(*session) error) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("maskedit: session %s: %w", id, domain.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.surface.Loaded() {
		return fmt.Errorf("maskedit: session %s: %w", id, domain.ErrNotFound)
	}
	s.touched = m.now()
	return fn(s)
}

func (m *Manager) close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.EndStroke()
	s.panelDrag.Cancel()
	s.brushDrag.Cancel()
	s.surface.Close()
	m.logger.Debug().Str("session", id).Msg("maskedit: session closed")
	return true
}

func (s *session) resizeLocked(size drag.Size) error {
	s.panel = size
	box := SurfaceBox(size)
	src := s.surface.SourceSize()
	if canvas.FitSize(src.X, src.Y, box) == s.surface.Size() {
		return nil
	}
	return s.surface.Fit(box)
}

func (s *session) snapshotLocked() Snapshot {
	size := s.surface.Size()
	src := s.surface.SourceSize()
	covered := 0
	if mask, err := canvas.Synthesize(s.surface); err == nil {
		covered = mask.Coverage()
	}
	return Snapshot{
		ID:          s.id,
		Key:         s.key,
		Index:       s.index,
		Panel:       s.panel,
		Width:       size.X,
		Height:      size.Y,
		SourceW:     src.X,
		SourceH:     src.Y,
		Tool:        s.ctrl.Tool(),
		BrushRadius: s.ctrl.BrushRadius(),
		PanelDrag:   s.panelDrag.State().String(),
		BrushDrag:   s.brushDrag.State().String(),
		Listeners:   s.listeners,
		Covered:     covered,
	}
}

// SurfaceBox is the drawing area left inside a panel once the chrome is
// taken off. The panel is raised to MinPanel first.
func SurfaceBox(panel drag.Size) image.Point {
	panel = clampPanel(panel, drag.Size{})
	return image.Pt(int(panel.Width)-ChromeWidth, int(panel.Height)-ChromeHeight)
}

func clampPanel(p, max drag.Size) drag.Size {
	if p.Width < MinPanel.Width {
		p.Width = MinPanel.Width
	}
	if p.Height < MinPanel.Height {
		p.Height = MinPanel.Height
	}
	if max.Width > 0 && p.Width > max.Width {
		p.Width = max.Width
	}
	if max.Height > 0 && p.Height > max.Height {
		p.Height = max.Height
	}
	return p
}
