package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MediaHandler serves the knowledge-base catalog.
type MediaHandler struct {
	*Handler
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(base *Handler) *MediaHandler {
	return &MediaHandler{Handler: base}
}

// RegisterRoutes registers media routes.
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/media", h.List)
	r.Get("/media/{kind}/{name}", h.Serve)
}

// List returns the metadata of every media file.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	meta, err := h.media.Metadata()
	if err != nil {
		h.logger.Error("Failed to read media catalog", "error", err)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"media":   meta,
	})
}

// Serve streams one media file.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	p, err := h.media.Path(chi.URLParam(r, "kind"), chi.URLParam(r, "name"))
	if err != nil {
		NotFound(w, r)
		return
	}
	http.ServeFile(w, r, p)
}
