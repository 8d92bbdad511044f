package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brianhealey/lyngdorf-go/internal/auth"
	"github.com/brianhealey/lyngdorf-go/internal/identity"
)

// Config wires the router's dependencies. Auth and Policy may be nil: no
// auth means an open API, no policy means zone 2 is unrestricted.
type Config struct {
	Device   Device
	Events   EventBus
	Auth     *auth.Service
	Identity identity.Info
	Policy   func() Policy
}

// NewRouter creates and returns the main HTTP router.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{dev: cfg.Device, events: cfg.Events, identity: cfg.Identity, policy: cfg.Policy}
	if h.policy == nil {
		h.policy = func() Policy { return Policy{Zone2Enabled: true, Zone2MaxVolume: maxZone2Unlimited} }
	}

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware)
		}

		r.Get("/api/info", h.getInfo)
		r.Get("/api/models", h.getModels)

		r.Get("/api/state", h.getState)
		r.Get("/api/state/{field}", h.getField)
		r.Post("/api/refresh", h.refresh)

		r.Patch("/api/main", h.patchMain)
		r.Patch("/api/zone2", h.patchZone2)
		r.Patch("/api/audio", h.patchAudio)
		r.Patch("/api/trims", h.patchTrims)
		r.Post("/api/actions/{action}", h.action)

		r.Post("/api/raw", h.raw)

		r.Get("/api/events", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
