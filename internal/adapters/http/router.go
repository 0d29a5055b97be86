package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/identity-core/internal/application"
)

// Handler is the HTTP adapter entrypoint for identity use-cases.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers identity HTTP routes and the middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler, signinRatePerSecond float64, signinBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	signinLimiter := newIPRateLimiter(signinRatePerSecond, signinBurst)

	r.Route("/identity/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(signinLimiter.middleware)
			r.Post("/signin", handler.signIn)
			r.Post("/mfa/verify", handler.mfaVerify)
			r.Post("/mfa/resend", handler.mfaResend)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/refresh", handler.refresh)
			r.Post("/logout", handler.logout)
			r.Get("/sessions", handler.listSessions)
			r.Delete("/sessions/{session_id}", handler.revokeSession)
			r.Get("/devices", handler.listDevices)
			r.Delete("/devices/{device_trust_id}", handler.revokeDevice)
			r.Delete("/devices", handler.revokeAllDevices)
		})
	})

	return r
}
