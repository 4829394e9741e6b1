package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-session-agent/internal/guard"
)

func NewRouter(corsOrigins []string, g *guard.Guard, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(Logging)
	r.Use(CORS(corsOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/logout", h.Logout)
			auth.Post("/refresh", h.Refresh)
			auth.Get("/state", h.State)
		})

		api.Route("/session", func(session chi.Router) {
			session.Get("/countdowns", h.Countdowns)
			session.Post("/activity", h.Activity)
			session.Post("/extend", h.Extend)
		})

		api.With(g.RequireAuth).Get("/me", h.Me)
		api.With(g.RequireAuth, g.RequirePermission("security-events", "read")).Get("/security/events", h.Events)

		api.Route("/access", func(acc chi.Router) {
			acc.Post("/check", h.Check)
			acc.Post("/check-batch", h.CheckBatch)
			acc.Post("/check-any", h.CheckAny)
		})
	})

	return r
}
