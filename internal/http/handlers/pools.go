package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/messages"
)

type selectRequest struct {
	Index int `json:"index"`
}

func (a *App) GetPool(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	if _, ok := a.Selector.Policy(target); !ok {
		a.localized(w, r, http.StatusNotFound, "not_found", messages.NotFound)
		return
	}
	pool := a.Selector.Pool(target)
	if pool == nil {
		a.localized(w, r, http.StatusNotFound, "no_pool", messages.NoPool)
		return
	}
	a.json(w, http.StatusOK, pool)
}

func (a *App) SelectFromPool(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	var req selectRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	artifact, source, err := a.Selector.Select(target, req.Index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"target":   target,
		"source":   source,
		"index":    req.Index,
		"artifact": artifact,
	})
}
