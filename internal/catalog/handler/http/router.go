package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/catalog/service"
)

// RegisterRoutes mounts the catalog endpoints. Browse endpoints are public;
// requireAdmin guards everything that writes the catalog.
func RegisterRoutes(
	r chi.Router,
	catalogService *service.CatalogService,
	importer *service.Importer,
	requireAdmin func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	catalogHandler := NewCatalogHandler(catalogService, logger)
	importHandler := NewImportHandler(importer, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", catalogHandler.ListProducts)
		r.Get("/{idOrSlug}", catalogHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/", catalogHandler.CreateProduct)
			r.Put("/{id}", catalogHandler.UpdateProduct)
			r.Delete("/{id}", catalogHandler.DeleteProduct)
			r.Post("/{id}/variants", catalogHandler.AddVariant)
			r.Post("/{id}/images", catalogHandler.AttachImage)
		})
	})

	r.Route("/api/v1/variants", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Put("/{id}", catalogHandler.UpdateVariant)
		r.Delete("/{id}", catalogHandler.DeleteVariant)
	})

	r.Route("/api/v1/images", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Delete("/{id}", catalogHandler.DetachImage)
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", catalogHandler.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/", catalogHandler.CreateCategory)
			r.Put("/{id}", catalogHandler.UpdateCategory)
			r.Delete("/{id}", catalogHandler.DeleteCategory)
		})
	})

	r.Route("/api/v1/catalog/import", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Post("/", importHandler.Import)
		r.Get("/template", importHandler.Template)
	})
}
