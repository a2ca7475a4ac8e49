package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the middleware stack of NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Limiter        *RateLimiter
}

// NewRouter mounts every endpoint behind the shared middleware stack.
func NewRouter(nakit *NakitAkisHandler, grafana *GrafanaHandler, export *ExportHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(ContextualLoggerMiddleware)
	r.Use(CORSMiddleware(opts.AllowedOrigins))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "NakitAkis backend is running"})
	})
	r.Get("/health", nakit.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/nakitakis", func(r chi.Router) {
			r.Get("/analiz", nakit.HandleGetAnalysis)
			r.Get("/seri", nakit.HandleGetTimeSeries)
			r.Get("/trendler", nakit.HandleGetTrends)
			r.Get("/kaynak-kuruluslar", nakit.HandleListInstitutions)
			r.Get("/fonlar", nakit.HandleListFunds)
			r.Get("/ihraclar", nakit.HandleListIssuances)
			r.Get("/bankalar", nakit.HandleListCounterparties)
			r.Get("/filtreler", nakit.HandleGetFilterOptions)
			r.Post("/test-connection", nakit.HandleTestConnection)
		})

		r.Route("/grafana", func(r chi.Router) {
			r.Get("/health", grafana.HandleHealth)
			r.Get("/", grafana.HandleHealth)
			r.Post("/test", grafana.HandleTestDataSource)
			r.Get("/query", grafana.HandleQuery)
			r.Post("/query", grafana.HandleQuery)
			r.Post("/search", grafana.HandleSearch)
			r.Get("/variable", grafana.HandleVariable)
			r.Post("/variable", grafana.HandleVariable)
			r.Post("/annotations", grafana.HandleAnnotations)
			r.Get("/trends", grafana.HandleTrends)
			r.Post("/trends", grafana.HandleTrends)
		})

		r.Route("/export", func(r chi.Router) {
			r.Post("/csv", export.HandleExportCSV)
			r.Post("/html", export.HandleExportHTML)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, "not found", http.StatusNotFound)
	})
	return r
}
