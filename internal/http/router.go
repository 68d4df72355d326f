package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Medications *MedicationHandler
	Logs        *LogHandler
	Push        *PushHandler
	Settings    *SettingHandler
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter assembles the API surface. The Middleware slice runs after the
// built-in request ID, real IP, and panic recovery middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Medications != nil {
		r.Route("/api/medications", func(r chi.Router) {
			r.Get("/", cfg.Medications.List)
			r.Post("/", cfg.Medications.Create)
			r.Get("/{id}", cfg.Medications.Get)
			r.Put("/{id}", cfg.Medications.Update)
			r.Delete("/{id}", cfg.Medications.Delete)
		})
	}

	if cfg.Logs != nil {
		r.Route("/api/logs", func(r chi.Router) {
			r.Get("/", cfg.Logs.List)
			r.Post("/", cfg.Logs.Create)
			r.Get("/today", cfg.Logs.Today)
			r.Get("/history", cfg.Logs.History)
			r.Put("/{id}", cfg.Logs.Update)
			r.Delete("/{id}", cfg.Logs.Delete)
			r.Post("/{id}/taken", cfg.Logs.MarkTaken)
			r.Post("/{id}/skipped", cfg.Logs.MarkSkipped)
		})
	}

	if cfg.Push != nil {
		r.Route("/api/push", func(r chi.Router) {
			r.Get("/vapid-key", cfg.Push.VAPIDKey)
			r.Post("/subscribe", cfg.Push.Subscribe)
			r.Post("/unsubscribe", cfg.Push.Unsubscribe)
			r.Post("/test", cfg.Push.SendTest)
		})
	}

	if cfg.Settings != nil {
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", cfg.Settings.List)
			r.Get("/{key}", cfg.Settings.Get)
			r.Put("/{key}", cfg.Settings.Upsert)
			r.Delete("/{key}", cfg.Settings.Delete)
		})
	}

	return r
}
