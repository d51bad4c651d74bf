package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ragline/internal/embedding"
	"ragline/internal/handlers"
	"ragline/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine          handlers.Scheduler
	Embedders       *embedding.Factory
	Vectors         vectorstore.VectorStore
	PagesPerSection int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	processHandler := handlers.NewProcessHandler(deps.Engine, deps.PagesPerSection)
	statusHandler := handlers.NewStatusHandler(deps.Engine)
	searchHandler := handlers.NewSearchHandler(deps.Embedders, deps.Vectors)
	embedHandler := handlers.NewEmbedHandler(deps.Embedders)
	healthHandler := handlers.NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/documentprocessor", processHandler)
		r.Method(http.MethodGet, "/status/{instanceID}", statusHandler)
		r.Method(http.MethodPost, "/vectorsearch", searchHandler)
		r.Method(http.MethodPost, "/embed", embedHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
