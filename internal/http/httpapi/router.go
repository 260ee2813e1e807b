package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

// Options configures the router middleware stack.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Provider-backed calls are rate limited per client.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/results", func(r chi.Router) {
		r.Get("/", app.ListResults)
		r.Route("/{view}/{sub}", func(r chi.Router) {
			r.Get("/", app.GetResults)
			r.Put("/", app.PutResults)
			r.With(limited).Post("/generate", app.GenerateResults)
			r.Get("/archive", app.ArchiveResults)
			r.Delete("/{index}", app.DeleteResult)
			r.With(limited).Post("/{index}/autoclean", app.AutoClean)
			r.Post("/{index}/restore", app.RestoreResult)
		})
	})

	r.Route("/v1/pools/{target}", func(r chi.Router) {
		r.Get("/", app.GetPool)
		r.Post("/select", app.SelectFromPool)
	})

	r.Route("/v1/mask-sessions", func(r chi.Router) {
		r.Post("/", app.OpenMaskSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetMaskSession)
			r.Delete("/", app.MaskCancel)
			r.Post("/strokes", app.MaskStrokes)
			r.Post("/tool", app.MaskTool)
			r.Post("/panel", app.MaskPanel)
			r.Post("/brush", app.MaskBrush)
			r.Post("/clear", app.MaskClear)
			r.Get("/mask.png", app.MaskPreview)
			r.Get("/composite.png", app.MaskComposite)
			r.With(limited).Post("/confirm", app.MaskConfirm)
		})
	})

	return r
}
