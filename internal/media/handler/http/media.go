// Package http exposes the media endpoints.
package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/media/service"
	"github.com/karyatek/storefront/pkg/httputil"
	"github.com/karyatek/storefront/pkg/pagination"
)

// Uploads are capped slightly above the service limit so oversized files get
// a validation error instead of a connection reset.
const maxUploadSize = 12 << 20

// MediaHandler handles media asset endpoints.
type MediaHandler struct {
	media   *service.MediaService
	cleaner *service.Cleaner
	logger  *slog.Logger
}

// NewMediaHandler creates a media HTTP handler. cleaner may be nil, in which
// case the cleanup endpoint responds 503.
func NewMediaHandler(media *service.MediaService, cleaner *service.Cleaner, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: media, cleaner: cleaner, logger: logger}
}

// Upload handles POST /api/v1/admin/media
// Accepts a multipart upload with a single "file" part.
//
// @Summary Upload an image
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} httputil.Response{data=domain.Asset}
// @Router /api/v1/admin/media [post]
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "multipart upload must include a \"file\" part"},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	asset, err := h.media.Upload(r.Context(), &service.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: asset})
}

// List handles GET /api/v1/admin/media
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	assets, total, err := h.media.ListAssets(r.Context(), params.Offset, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(assets, total, params.Page, params.PerPage))
}

// Get handles GET /api/v1/admin/media/{id}
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	asset, err := h.media.GetAsset(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: asset})
}

// Delete handles DELETE /api/v1/admin/media/{id}
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.media.DeleteAsset(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "deleted"}})
}

// Cleanup handles POST /api/v1/admin/media/cleanup
// Runs the unreferenced-asset cleanup immediately.
func (h *MediaHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleaner == nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "CLEANUP_DISABLED", Message: "media cleanup is not configured"},
		})
		return
	}

	removed, err := h.cleaner.Cleanup(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"removed": removed}})
}
