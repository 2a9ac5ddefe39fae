package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/media/service"
)

// RegisterRoutes mounts the media endpoints. All of them write or enumerate
// CDN state, so the whole group is admin only.
func RegisterRoutes(
	r chi.Router,
	media *service.MediaService,
	cleaner *service.Cleaner,
	requireAdmin func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	h := NewMediaHandler(media, cleaner, logger)

	r.Route("/api/v1/admin/media", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Get("/", h.List)
		r.Post("/", h.Upload)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Post("/cleanup", h.Cleanup)
	})
}
