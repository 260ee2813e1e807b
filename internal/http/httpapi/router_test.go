package httpapi

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"studio/internal/cleanup"
	"studio/internal/domain"
	"studio/internal/http/handlers"
	"studio/internal/maskedit"
	"studio/internal/providers/genai"
	imageprov "studio/internal/providers/image"
	"studio/internal/results"
)

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	store *results.Store
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	client, err := genai.NewClient(genai.Options{Logger: &logger})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	store := results.NewStore()
	app := handlers.NewApp(handlers.Options{
		Store:    store,
		Selector: results.NewSelector(store, results.DefaultPolicies()),
		Cleanup: cleanup.NewService(cleanup.Options{
			Store:     store,
			Cleaner:   imageprov.NewGeminiCleaner(client),
			Generator: imageprov.NewGeminiGenerator(client),
			Logger:    &logger,
			Strict:    strict,
		}),
		Sessions:       maskedit.NewManager(maskedit.Options{Reader: store, Logger: &logger}),
		Logger:         &logger,
		MaxUploadBytes: 64 << 10,
	})
	srv := httptest.NewServer(NewRouter(app, Options{
		Logger:          logger,
		AllowedOrigins:  []string{"*"},
		RateLimitPerMin: 1000,
		DefaultLocale:   "en",
	}))
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, store: store}
}

func (h *harness) do(method, path string, body any, headers ...string) *http.Response {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) decode(resp *http.Response, wantStatus int, v any) {
	h.t.Helper()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		h.t.Fatalf("status = %d, want %d: %s", resp.StatusCode, wantStatus, body)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			h.t.Fatalf("decode: %v", err)
		}
	}
}

func artifact(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return domain.ArtifactURL("image/png", buf.Bytes())
}

type setBody struct {
	URLs        []string `json:"urls"`
	WasCreative bool     `json:"wasCreative"`
	Shadows     []int    `json:"shadows"`
	InFlight    []int    `json:"inFlight"`
}

type mutationBody struct {
	Applied  bool    `json:"applied"`
	Artifact string  `json:"artifact"`
	Message  string  `json:"message"`
	Set      setBody `json:"set"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	h := newHarness(t, true)
	var body map[string]any
	h.decode(h.do(http.MethodGet, "/v1/healthz", nil), http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestPutAndGetResults(t *testing.T) {
	h := newHarness(t, true)
	var set setBody
	h.decode(h.do(http.MethodPut, "/v1/results/style/ghost", map[string]any{"urls": []string{"a", "b"}, "wasCreative": true}), http.StatusOK, &set)
	if len(set.URLs) != 2 || !set.WasCreative || set.Shadows == nil || len(set.Shadows) != 0 {
		t.Fatalf("set = %+v", set)
	}

	h.decode(h.do(http.MethodPut, "/v1/results/style/ghost", nil), http.StatusBadRequest, nil)

	req, _ := http.NewRequest(http.MethodPut, h.srv.URL+"/v1/results/style/ghost", strings.NewReader("null"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put null: %v", err)
	}
	defer resp.Body.Close()
	h.decode(resp, http.StatusOK, &set)
	if len(set.URLs) != 0 || set.WasCreative {
		t.Fatalf("null did not clear: %+v", set)
	}

	var list struct {
		Results []struct {
			Key   results.ViewKey `json:"key"`
			Count int             `json:"count"`
		} `json:"results"`
	}
	h.decode(h.do(http.MethodGet, "/v1/results", nil), http.StatusOK, &list)
	if len(list.Results) != 1 || list.Results[0].Key != results.GhostMannequin {
		t.Fatalf("list = %+v", list)
	}
}

func TestMaskSessionConfirmAndRestore(t *testing.T) {
	h := newHarness(t, true)
	original := artifact(t, 100, 100, color.RGBA{R: 90, G: 90, B: 90, A: 255})
	h.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{original}})

	var snap maskedit.Snapshot
	h.decode(h.do(http.MethodPost, "/v1/mask-sessions", map[string]any{
		"view": "style", "sub_view": "ghost", "index": 0,
		"panel": map[string]float64{"width": 450, "height": 450},
	}), http.StatusCreated, &snap)
	if snap.Width != 100 || snap.Height != 100 || snap.ID == "" {
		t.Fatalf("snapshot = %+v", snap)
	}
	base := "/v1/mask-sessions/" + snap.ID

	var strokes struct {
		Applied int `json:"applied"`
	}
	h.decode(h.do(http.MethodPost, base+"/strokes", []map[string]any{{
		"tool": "brush", "radius": 10,
		"points": []map[string]float64{{"x": 20, "y": 20}, {"x": 60, "y": 20}},
	}}), http.StatusOK, &strokes)
	if strokes.Applied != 2 {
		t.Fatalf("applied = %d", strokes.Applied)
	}

	resp := h.do(http.MethodGet, base+"/mask.png", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("mask.png status %d", resp.StatusCode)
	}
	maskImg, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode mask: %v", err)
	}
	if maskImg.Bounds().Dx() != 100 {
		t.Fatalf("mask width = %d", maskImg.Bounds().Dx())
	}

	var cleaned mutationBody
	h.decode(h.do(http.MethodPost, base+"/confirm", nil), http.StatusOK, &cleaned)
	if !cleaned.Applied || cleaned.Set.URLs[0] != cleaned.Artifact || len(cleaned.Set.Shadows) != 1 {
		t.Fatalf("confirm = %+v", cleaned)
	}
	h.decode(h.do(http.MethodGet, base, nil), http.StatusNotFound, nil)

	var restored mutationBody
	h.decode(h.do(http.MethodPost, "/v1/results/style/ghost/0/restore", nil), http.StatusOK, &restored)
	if !restored.Applied || restored.Set.URLs[0] != original || len(restored.Set.Shadows) != 0 {
		t.Fatalf("restore = %+v", restored)
	}
	h.decode(h.do(http.MethodPost, "/v1/results/style/ghost/0/restore", nil), http.StatusOK, &restored)
	if restored.Applied {
		t.Fatalf("second restore applied")
	}
}

func TestMaskSessionConfirmAfterDeleteConflicts(t *testing.T) {
	h := newHarness(t, true)
	red := artifact(t, 100, 100, color.RGBA{R: 255, A: 255})
	blue := artifact(t, 300, 60, color.RGBA{B: 255, A: 255})
	h.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{red, blue}})

	var snap maskedit.Snapshot
	h.decode(h.do(http.MethodPost, "/v1/mask-sessions", map[string]any{"view": "style", "sub_view": "ghost", "index": 0}), http.StatusCreated, &snap)
	base := "/v1/mask-sessions/" + snap.ID
	h.decode(h.do(http.MethodPost, base+"/strokes", []map[string]any{{
		"tool": "brush", "radius": 10,
		"points": []map[string]float64{{"x": 20, "y": 20}, {"x": 60, "y": 20}},
	}}), http.StatusOK, nil)

	h.decode(h.do(http.MethodDelete, "/v1/results/style/ghost/0", nil), http.StatusOK, nil)

	var e errorBody
	h.decode(h.do(http.MethodPost, base+"/confirm", nil), http.StatusConflict, &e)
	if e.Error.Code != "stale_artifact" {
		t.Fatalf("error = %+v", e)
	}
	if got := h.store.Get(results.GhostMannequin).URLs; len(got) != 1 || got[0] != blue {
		t.Fatalf("blue artifact was modified")
	}
	if _, ok := h.store.Shadow(results.GhostMannequin, 0); ok {
		t.Fatalf("conflicting confirm recorded a shadow")
	}
}

func TestMaskSessionEmptyConfirmAndCancel(t *testing.T) {
	h := newHarness(t, true)
	h.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{artifact(t, 20, 20, color.White)}})

	var snap maskedit.Snapshot
	h.decode(h.do(http.MethodPost, "/v1/mask-sessions", map[string]any{"view": "style", "sub_view": "ghost", "index": 0}), http.StatusCreated, &snap)
	base := "/v1/mask-sessions/" + snap.ID

	var e errorBody
	h.decode(h.do(http.MethodPost, base+"/confirm", nil, "X-Locale", "vi"), http.StatusUnprocessableEntity, &e)
	if e.Error.Code != "empty_mask" || !strings.Contains(e.Error.Message, "tô") {
		t.Fatalf("error = %+v", e)
	}

	h.decode(h.do(http.MethodPost, base+"/tool", map[string]any{"tool": "eraser", "radius": 500}), http.StatusOK, &snap)
	if snap.Tool != "erase" || snap.BrushRadius != 80 {
		t.Fatalf("tool = %+v", snap)
	}
	h.decode(h.do(http.MethodPost, base+"/tool", map[string]any{"tool": "spray"}), http.StatusBadRequest, nil)

	h.decode(h.do(http.MethodPost, base+"/panel", map[string]any{"phase": "press", "x": 0, "y": 0}), http.StatusOK, &snap)
	if snap.PanelDrag != "dragging" || snap.Listeners != 1 {
		t.Fatalf("panel press = %+v", snap)
	}
	h.decode(h.do(http.MethodPost, base+"/panel", map[string]any{"phase": "jump"}), http.StatusBadRequest, nil)

	resp := h.do(http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	h.decode(h.do(http.MethodDelete, base, nil), http.StatusNotFound, nil)
	if len(h.store.ShadowIndices(results.GhostMannequin)) != 0 {
		t.Fatalf("cancel created a shadow")
	}
}

func TestOutOfRangeStrictVersusPermissive(t *testing.T) {
	strict := newHarness(t, true)
	strict.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{"a"}})
	var e errorBody
	strict.decode(strict.do(http.MethodDelete, "/v1/results/style/ghost/4", nil, "Accept-Language", "id-ID"), http.StatusBadRequest, &e)
	if e.Error.Code != "out_of_range" || !strings.Contains(e.Error.Message, "Gambar") {
		t.Fatalf("error = %+v", e)
	}
	strict.decode(strict.do(http.MethodDelete, "/v1/results/style/ghost/x", nil), http.StatusBadRequest, nil)

	lenient := newHarness(t, false)
	lenient.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{"a"}})
	var m mutationBody
	lenient.decode(lenient.do(http.MethodDelete, "/v1/results/style/ghost/4", nil), http.StatusOK, &m)
	if m.Applied || len(m.Set.URLs) != 1 {
		t.Fatalf("permissive delete = %+v", m)
	}
	lenient.decode(lenient.do(http.MethodDelete, "/v1/results/style/ghost/0", nil), http.StatusOK, &m)
	if !m.Applied || len(m.Set.URLs) != 0 {
		t.Fatalf("delete = %+v", m)
	}
}

func TestAutoCleanSynthetic(t *testing.T) {
	h := newHarness(t, true)
	h.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{artifact(t, 8, 8, color.White)}})
	var m mutationBody
	h.decode(h.do(http.MethodPost, "/v1/results/style/ghost/0/autoclean?mode=watermark", nil), http.StatusOK, &m)
	if !m.Applied || m.Message == "" || len(m.Set.Shadows) != 1 {
		t.Fatalf("autoclean = %+v", m)
	}
}

func TestPoolsAndGenerate(t *testing.T) {
	h := newHarness(t, true)
	var e errorBody
	h.decode(h.do(http.MethodGet, "/v1/pools/common", nil), http.StatusNotFound, &e)
	if e.Error.Code != "no_pool" {
		t.Fatalf("error = %+v", e)
	}
	h.decode(h.do(http.MethodGet, "/v1/pools/unknown", nil), http.StatusNotFound, &e)
	if e.Error.Code != "not_found" {
		t.Fatalf("error = %+v", e)
	}

	model := artifact(t, 16, 16, color.Black)
	h.store.Set(results.ModelShots, &results.ResultSet{URLs: []string{model}})
	var pool results.Pool
	h.decode(h.do(http.MethodGet, "/v1/pools/walk", nil), http.StatusOK, &pool)
	if pool.Source != results.ModelShots || len(pool.URLs) != 1 {
		t.Fatalf("pool = %+v", pool)
	}

	var picked struct {
		Artifact string          `json:"artifact"`
		Source   results.ViewKey `json:"source"`
	}
	h.decode(h.do(http.MethodPost, "/v1/pools/walk/select", map[string]int{"index": 0}), http.StatusOK, &picked)
	if picked.Artifact != model {
		t.Fatalf("picked = %+v", picked)
	}
	h.decode(h.do(http.MethodPost, "/v1/pools/walk/select", map[string]int{"index": 3}), http.StatusBadRequest, nil)

	var set setBody
	h.decode(h.do(http.MethodPost, "/v1/results/video/walk/generate", map[string]any{
		"prompt": "runway walk", "quantity": 2, "aspectRatio": "9:16", "mode": "creative",
		"pool": map[string]any{"target": "walk", "index": 0},
	}), http.StatusOK, &set)
	if len(set.URLs) != 2 || !set.WasCreative {
		t.Fatalf("generated = %+v", set)
	}
}

func TestArchive(t *testing.T) {
	h := newHarness(t, true)
	h.decode(h.do(http.MethodGet, "/v1/results/style/ghost/archive", nil), http.StatusNotFound, nil)

	h.store.Set(results.GhostMannequin, &results.ResultSet{URLs: []string{artifact(t, 2, 2, color.White), "https://cdn.example.com/x.png", artifact(t, 3, 3, color.Black)}})
	resp := h.do(http.MethodGet, "/v1/results/style/ghost/archive", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("archive status %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "style-ghost-01.png" || zr.File[1].Name != "style-ghost-03.png" {
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		t.Fatalf("entries = %v", names)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	h := newHarness(t, true)
	big := strings.Repeat("x", 96<<10)
	var e errorBody
	h.decode(h.do(http.MethodPut, "/v1/results/style/ghost", map[string]any{"urls": []string{big}}), http.StatusRequestEntityTooLarge, &e)
	if e.Error.Code != "payload_too_large" || !strings.Contains(e.Error.Message, "kB") {
		t.Fatalf("error = %+v", e)
	}
}
