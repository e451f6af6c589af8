package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"accounts/internal/middleware"
	"accounts/internal/repository"
	"accounts/internal/services"
)

var allowedPhotoExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

type PhotoHandler struct {
	users    repository.UserRepository
	photos   services.PhotoStore
	maxBytes int64
}

func NewPhotoHandler(users repository.UserRepository, photos services.PhotoStore, maxBytes int64) *PhotoHandler {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	return &PhotoHandler{users: users, photos: photos, maxBytes: maxBytes}
}

// @Tags Account
// @Summary Upload profile photo
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "User ID"
// @Param file formData file true "Photo file"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/users/{id}/photo [post]
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if middleware.UserID(r.Context()) != id {
		writeJSONErrorResponse(w, http.StatusForbidden, "forbidden", "Cannot upload a photo for another user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "A photo file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedPhotoExtensions[ext]
	if !ok {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Only png, jpg, jpeg and gif files are allowed")
		return
	}

	key := uuid.NewString() + ext
	url, err := h.photos.Save(r.Context(), key, contentType, file)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "upload_failed", "Failed to store photo")
		return
	}

	if err := h.users.UpdateProfilePhoto(r.Context(), id, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSONErrorResponse(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		writeJSONErrorResponse(w, http.StatusInternalServerError, "upload_failed", "Failed to save photo reference")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Photo uploaded successfully",
		"profile_photo": url,
	})
}

// @Tags Account
// @Summary Serve a profile photo
// @Produce json
// @Param filename path string true "Photo key"
// @Success 302
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/photos/{filename} [get]
func (h *PhotoHandler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "..") {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid photo name")
		return
	}
	http.Redirect(w, r, h.photos.URL(filename), http.StatusFound)
}
