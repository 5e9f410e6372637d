package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/auth"
	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/storage"
)

// ImageHandler handles product image upload and download.
type ImageHandler struct {
	store  storage.ImageStore
	logger zerolog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(store storage.ImageStore, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		store:  store,
		logger: logger.With().Str("handler", "image").Logger(),
	}
}

// Upload handles POST /images. Accepts a multipart form with an "image"
// field and returns the identifier to reference from a product listing.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeErrorStatus(w, errors.New("image file is required"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	id, err := h.store.Save(r.Context(), file, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImageID) {
			writeErrorStatus(w, err, http.StatusUnsupportedMediaType)
			return
		}
		h.logger.Error().Err(err).Msg("failed to store image")
		writeErrorStatus(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"image": id,
	})
}

// Serve handles GET /images/{id}.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	content, contentType, err := h.store.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) || errors.Is(err, storage.ErrInvalidImageID) {
			writeErrorStatus(w, storage.ErrImageNotFound, http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("image_id", id).Msg("failed to open image")
		writeErrorStatus(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Debug().Err(err).Str("image_id", id).Msg("image transfer interrupted")
	}
}
