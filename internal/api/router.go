package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/xreply/internal/api/handler"
	mw "github.com/iconidentify/xreply/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	replyHandler *handler.ReplyHandler,
	settingsHandler *handler.SettingsHandler,
	licenseHandler *handler.LicenseHandler,
	eventHandler *handler.EventHandler,
	composerHandler *handler.ComposerHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	corsOrigins []string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// CORS for the browser extension
	r.Use(mw.CORS(corsOrigins))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		// The event stream outlives any request timeout.
		r.Get("/events/stream", eventHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(2 * time.Minute))

			r.Get("/stats", healthHandler.Stats)

			// Content flow
			r.Post("/replies", replyHandler.Reply)
			r.Post("/replies/live", replyHandler.LiveReply)
			r.Post("/generate", replyHandler.Generate)
			r.Post("/extract", replyHandler.Extract)
			r.Get("/history", replyHandler.History)
			r.Delete("/history", replyHandler.ClearHistory)
			r.Delete("/cache", replyHandler.PurgeCache)

			// Popup and options
			r.Get("/settings", settingsHandler.GetSettings)
			r.Put("/settings", settingsHandler.UpdateSettings)
			r.Get("/modes", settingsHandler.GetModes)
			r.Put("/modes", settingsHandler.UpdateModes)
			r.Get("/personas", settingsHandler.ListPersonas)
			r.Post("/personas", settingsHandler.AddPersona)
			r.Put("/personas", settingsHandler.SavePersonas)
			r.Post("/personas/active", settingsHandler.SetActivePersona)
			r.Put("/prompt", settingsHandler.SetGeneralPrompt)
			r.Get("/options", settingsHandler.GetOptions)
			r.Put("/options", settingsHandler.SaveOptions)
			r.Get("/export", settingsHandler.Export)
			r.Post("/import", settingsHandler.Import)

			// License
			r.Get("/license", licenseHandler.Status)
			r.Put("/license/key", settingsHandler.SetLicenseKey)

			// Activity
			r.Get("/events", eventHandler.List)

			// Attached browser
			r.Get("/composers", composerHandler.List)
		})
	})

	return r
}
