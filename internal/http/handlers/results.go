package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"studio/internal/domain"
	"studio/internal/messages"
	"studio/internal/middleware"
	"studio/internal/providers/image"
	"studio/internal/results"
	"studio/pkg/zip"
)

type resultSetResponse struct {
	Key         results.ViewKey `json:"key"`
	URLs        []string        `json:"urls"`
	WasCreative bool            `json:"wasCreative"`
	Shadows     []int           `json:"shadows"`
	InFlight    []int           `json:"inFlight"`
	Generating  bool            `json:"generating"`
}

type mutationResponse struct {
	Applied  bool              `json:"applied"`
	Artifact string            `json:"artifact,omitempty"`
	Message  string            `json:"message,omitempty"`
	Set      resultSetResponse `json:"set"`
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	Quantity    int    `json:"quantity"`
	AspectRatio string `json:"aspectRatio"`
	Mode        string `json:"mode"`
	Pool        *struct {
		Target string `json:"target"`
		Index  int    `json:"index"`
	} `json:"pool,omitempty"`
}

type autoCleanRequest struct {
	Mode string `json:"mode"`
}

func (a *App) resultSet(key results.ViewKey) resultSetResponse {
	rs := a.Store.Get(key)
	urls := rs.URLs
	if urls == nil {
		urls = []string{}
	}
	inflight := a.Cleanup.InFlight(key)
	if inflight == nil {
		inflight = []int{}
	}
	return resultSetResponse{
		Key:         key,
		URLs:        urls,
		WasCreative: rs.WasCreative,
		Shadows:     a.Store.ShadowIndices(key),
		InFlight:    inflight,
		Generating:  a.Cleanup.Generating(key),
	}
}

func (a *App) ListResults(w http.ResponseWriter, r *http.Request) {
	keys := a.Store.Keys()
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]any{"key": k, "count": a.Store.Get(k).Len()})
	}
	a.json(w, http.StatusOK, map[string]any{"results": out})
}

func (a *App) GetResults(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.resultSet(viewKeyParam(r)))
}

// PutResults replaces the stored set. A JSON null clears it. Work still
// running on the set makes the call fail with 409.
func (a *App) PutResults(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	var rs *results.ResultSet
	if !a.decodeOrFail(w, r, &rs) {
		return
	}
	if rs != nil {
		for i, u := range rs.URLs {
			if strings.TrimSpace(u) == "" {
				a.badRequest(w, r, fmt.Sprintf("urls[%d] is empty", i))
				return
			}
		}
	}
	if err := a.Cleanup.Replace(key, rs); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.resultSet(key))
}

func (a *App) GenerateResults(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	var req generateRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	genReq := image.GenerateRequest{
		Prompt:      req.Prompt,
		Quantity:    req.Quantity,
		AspectRatio: req.AspectRatio,
		RequestID:   middleware.RequestIDFromContext(r.Context()),
		Locale:      middleware.LocaleFromContext(r.Context()),
		Mode:        image.NormalizeWorkflowMode(req.Mode),
	}
	if req.Pool != nil {
		artifact, _, err := a.Selector.Select(req.Pool.Target, req.Pool.Index)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		asset, err := domain.DecodeArtifact(artifact)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		genReq.SourceImage = &image.SourceImage{MIME: asset.MIME, Data: asset.Data}
	}

	if _, err := a.Cleanup.Generate(r.Context(), key, genReq); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.resultSet(key))
}

// ArchiveResults streams every inline artifact of the set as a zip file.
func (a *App) ArchiveResults(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	rs := a.Store.Get(key)
	if rs.Empty() {
		a.localized(w, r, http.StatusNotFound, "not_found", messages.NotFound)
		return
	}
	assets := make([]zip.Asset, 0, rs.Len())
	total := 0
	for i, ref := range rs.URLs {
		asset, err := domain.DecodeArtifact(ref)
		if err != nil {
			a.Logger.Warn().Err(err).Str("view", key.View).Str("sub_view", key.SubView).Int("index", i).Msg("archive: skipping artifact")
			continue
		}
		total += len(asset.Data)
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%s-%02d.%s", key.View, key.SubView, i+1, domain.ArtifactExtension(asset.MIME)),
			MIME:     asset.MIME,
			Data:     asset.Data,
		})
	}
	archive, err := zip.ArchiveAssets(assets, time.Now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Debug().Str("view", key.View).Str("sub_view", key.SubView).
		Int("files", len(assets)).Str("bytes", humanize.Bytes(uint64(total))).
		Msg("archive: built")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s.zip", key.View, key.SubView))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) DeleteResult(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	idx, ok := indexParam(r)
	if !ok {
		a.badRequest(w, r, "index must be an integer")
		return
	}
	before := a.Store.Get(key).Len()
	if err := a.Cleanup.Delete(key, idx); err != nil {
		a.fail(w, r, err)
		return
	}
	set := a.resultSet(key)
	a.json(w, http.StatusOK, mutationResponse{Applied: len(set.URLs) < before, Set: set})
}

func (a *App) AutoClean(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	idx, ok := indexParam(r)
	if !ok {
		a.badRequest(w, r, "index must be an integer")
		return
	}
	mode := r.URL.Query().Get("mode")
	if r.ContentLength > 0 {
		var req autoCleanRequest
		if !a.decodeOrFail(w, r, &req) {
			return
		}
		if req.Mode != "" {
			mode = req.Mode
		}
	}
	artifact, err := a.Cleanup.AutoClean(r.Context(), key, idx, image.NormalizeCleanMode(mode), middleware.RequestIDFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.cleaned(w, r, key, artifact)
}

func (a *App) RestoreResult(w http.ResponseWriter, r *http.Request) {
	key := viewKeyParam(r)
	idx, ok := indexParam(r)
	if !ok {
		a.badRequest(w, r, "index must be an integer")
		return
	}
	restored, err := a.Cleanup.Restore(key, idx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	msg := messages.NothingToRestore
	if restored {
		msg = messages.Restored
	}
	a.json(w, http.StatusOK, mutationResponse{
		Applied: restored,
		Message: messages.Localize(middleware.LocaleFromContext(r.Context()), msg),
		Set:     a.resultSet(key),
	})
}

func (a *App) cleaned(w http.ResponseWriter, r *http.Request, key results.ViewKey, artifact string) {
	resp := mutationResponse{Applied: artifact != "", Artifact: artifact, Set: a.resultSet(key)}
	if resp.Applied {
		resp.Message = messages.Localize(middleware.LocaleFromContext(r.Context()), messages.Cleaned)
	}
	a.json(w, http.StatusOK, resp)
}
