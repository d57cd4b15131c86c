package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LeventeLantos/sms-webhook/internal/metrics"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(h.recoverJSON)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Post("/webhook/telnyx", h.TelnyxWebhook)

	r.Get("/get_code/{phone}", h.LatestCode)
	r.Get("/get_code/{phone}/{platform}", h.ConsumeCode)
	r.Get("/messages/{phone}", h.Messages)
	r.Get("/all_messages", h.AllMessages)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// recoverJSON turns a handler panic into the usual error payload.
func (h *Handler) recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.log.Error("handler panic recovered", "panic", rec, "path", r.URL.Path)
				writeJSON(w, h.status(http.StatusInternalServerError), map[string]any{
					"status":  "error",
					"message": "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
