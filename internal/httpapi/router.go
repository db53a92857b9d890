package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vouse/postqueue/internal/identity"
	"github.com/vouse/postqueue/pkg/response"
)

// MetricsCollector is the narrow view onto internal/metrics.Collector
// this package needs, kept as an interface so httpapi doesn't import
// prometheus directly.
type MetricsCollector interface {
	Handler() http.Handler
	InstrumentHTTP(next http.Handler) http.Handler
}

// Handlers bundles every resource handler the router needs to wire up,
// assembled at the composition root (cmd/api). Metrics is optional —
// a nil value skips instrumentation and the /metrics route entirely.
type Handlers struct {
	Auth        *identity.Middleware
	Users       *UserHandler
	Posts       *PostHandler
	Engagements *EngagementHandler
	Metrics     MetricsCollector
}

// NewRouter lays out the routes of spec.md §6, grounded on the starting
// codebase's cmd/api router: chi with a CORS + request-ID + logger
// middleware stack, an unauthenticated health check (and /metrics when
// Metrics is set), and every other route behind RequireAuth with
// {userId} paths additionally behind RequireOwnership.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// chi accepts middleware only before the first route is registered.
	if h.Metrics != nil {
		r.Use(h.Metrics.InstrumentHTTP)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/", func(r chi.Router) {
		r.Use(h.Auth.RequireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.Users.Me)
			r.Route("/{userId}", func(r chi.Router) {
				r.Use(identity.RequireOwnership)
				r.Get("/", h.Users.Get)
				r.Post("/connect-twitter", h.Users.Connect)
				r.Delete("/disconnect-twitter", h.Users.Disconnect)
				r.Post("/connection-status", h.Users.UpdateConnectionStatus)
			})
		})

		r.Route("/x/auth/{userId}", func(r chi.Router) {
			r.Use(identity.RequireOwnership)
			r.Post("/connect", h.Users.Connect)
			r.Delete("/disconnect", h.Users.Disconnect)
			r.Get("/status", h.Users.Status)
			r.Post("/verify", h.Users.Verify)
		})

		r.Route("/notifications/{userId}", func(r chi.Router) {
			r.Use(identity.RequireOwnership)
			r.Post("/register", h.Users.RegisterDevice)
			r.Delete("/tokens/{token}", h.Users.UnregisterDevice)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", h.Posts.Create)
			r.Get("/", h.Posts.List)
			r.Get("/{id}", h.Posts.Get)
			r.Get("/local/{postIdLocal}", h.Posts.GetByLocalID)
			r.Patch("/{id}", h.Posts.Update)
			r.Delete("/{id}", h.Posts.Delete)
		})

		r.Route("/engagements", func(r chi.Router) {
			r.Get("/", h.Engagements.List)
			r.Get("/{postIdX}", h.Engagements.Get)
			r.Get("/local/{postIdLocal}", h.Engagements.Get)
			r.Post("/refresh/{postIdX}", h.Engagements.Refresh)
			r.Post("/refresh/local/{postIdLocal}", h.Engagements.Refresh)
			r.Post("/refresh/batch", h.Engagements.RefreshBatch)
			r.Post("/refreshall", h.Engagements.RefreshAll)
		})
	})

	return r
}
