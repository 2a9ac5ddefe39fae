package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/karyatek/storefront/internal/catalog/service"
	"github.com/karyatek/storefront/pkg/httputil"
)

// Uploads are capped at 50MB, enough for a CSV plus a few hundred images.
const maxImportSize = 50 << 20

// ImportHandler handles bulk product import endpoints.
type ImportHandler struct {
	importer *service.Importer
	logger   *slog.Logger
}

// NewImportHandler creates a bulk import HTTP handler.
func NewImportHandler(importer *service.Importer, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: importer, logger: logger}
}

// Import handles POST /api/v1/catalog/import
// Accepts a multipart upload with a single "file" part holding either a CSV
// or a ZIP (CSV plus image files). Responds with the per-row import report.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "multipart upload must include a \"file\" part"},
		})
		return
	}
	defer file.Close()

	var report *service.ImportReport

	switch strings.ToLower(path.Ext(header.Filename)) {
	case ".csv":
		report, err = h.importer.ImportCSV(r.Context(), file)
	case ".zip":
		// archive/zip needs random access, so buffer the upload.
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			httputil.WriteError(w, r, readErr, h.logger)
			return
		}
		report, err = h.importer.ImportZIP(r.Context(), bytes.NewReader(data), int64(len(data)))
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "file must be a .csv or .zip"},
		})
		return
	}

	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: report})
}

// Template handles GET /api/v1/catalog/import/template
// Serves the CSV template admins fill in for bulk imports.
func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="product-import-template.csv"`)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(h.importer.TemplateCSV()); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write import template", slog.String("error", err.Error()))
	}
}
