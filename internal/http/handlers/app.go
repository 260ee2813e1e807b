package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"studio/internal/cleanup"
	"studio/internal/domain"
	"studio/internal/drag"
	"studio/internal/infra"
	"studio/internal/maskedit"
	"studio/internal/messages"
	"studio/internal/middleware"
	"studio/internal/results"
)

type App struct {
	Store          *results.Store
	Selector       *results.Selector
	Cleanup        *cleanup.Service
	Sessions       *maskedit.Manager
	Logger         *infra.Logger
	MaxUploadBytes int64
	DefaultPanel   drag.Size
}

// Options wires an App.
type Options struct {
	Store          *results.Store
	Selector       *results.Selector
	Cleanup        *cleanup.Service
	Sessions       *maskedit.Manager
	Logger         *infra.Logger
	MaxUploadBytes int64
	DefaultPanel   drag.Size
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	panel := opts.DefaultPanel
	if panel.Width <= 0 || panel.Height <= 0 {
		panel = maskedit.MinPanel
	}
	return &App{
		Store:          opts.Store,
		Selector:       opts.Selector,
		Cleanup:        opts.Cleanup,
		Sessions:       opts.Sessions,
		Logger:         logger,
		MaxUploadBytes: maxBytes,
		DefaultPanel:   panel,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func (a *App) localized(w http.ResponseWriter, r *http.Request, code int, errCode string, key messages.Key, args ...any) {
	a.error(w, code, errCode, messages.Localize(middleware.LocaleFromContext(r.Context()), key, args...))
}

func (a *App) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	a.localized(w, r, http.StatusBadRequest, "bad_request", messages.InvalidRequest, detail)
}

// fail maps domain errors to HTTP responses with localized messages.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.localized(w, r, http.StatusNotFound, "not_found", messages.NotFound)
	case errors.Is(err, domain.ErrOutOfRange):
		a.localized(w, r, http.StatusBadRequest, "out_of_range", messages.OutOfRange)
	case errors.Is(err, domain.ErrDuplicateOperation):
		a.localized(w, r, http.StatusConflict, "duplicate_operation", messages.DuplicateOperation)
	case errors.Is(err, domain.ErrStaleArtifact):
		a.localized(w, r, http.StatusConflict, "stale_artifact", messages.StaleArtifact)
	case errors.Is(err, domain.ErrEmptyMask):
		a.localized(w, r, http.StatusUnprocessableEntity, "empty_mask", messages.EmptyMask)
	case errors.Is(err, domain.ErrInvalidArtifact):
		a.localized(w, r, http.StatusUnprocessableEntity, "invalid_artifact", messages.InvalidArtifact)
	case errors.Is(err, domain.ErrInvalidImage):
		a.localized(w, r, http.StatusUnprocessableEntity, "invalid_image", messages.InvalidImage)
	case errors.Is(err, domain.ErrEmptyGeneration):
		a.localized(w, r, http.StatusBadGateway, "empty_generation", messages.EmptyGeneration)
	case errors.Is(err, domain.ErrProviderFailure):
		a.localized(w, r, http.StatusBadGateway, "provider_failure", messages.ProviderFailure)
	case errors.Is(err, context.DeadlineExceeded):
		a.localized(w, r, http.StatusGatewayTimeout, "provider_failure", messages.ProviderFailure)
	case errors.As(err, &tooLarge):
		a.localized(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", messages.PayloadTooLarge, humanize.Bytes(uint64(tooLarge.Limit)))
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("unhandled error")
		a.localized(w, r, http.StatusInternalServerError, "internal", messages.Internal)
	}
}

// decode reads a JSON body bounded by MaxUploadBytes.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	return json.NewDecoder(body).Decode(v)
}

// decodeOrFail decodes the body and writes the error response itself. It
// reports whether the handler should continue.
func (a *App) decodeOrFail(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := a.decode(w, r, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, r, err)
			return false
		}
		a.badRequest(w, r, "invalid payload")
		return false
	}
	return true
}

func viewKeyParam(r *http.Request) results.ViewKey {
	return results.ViewKey{View: chi.URLParam(r, "view"), SubView: chi.URLParam(r, "sub")}
}

func indexParam(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, false
	}
	return idx, true
}
