package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(a.Sessions.IDs()),
		"views":    len(a.Store.Keys()),
	})
}
