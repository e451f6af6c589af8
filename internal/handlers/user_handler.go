package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounts/internal/auth"
	"accounts/internal/middleware"
	"accounts/internal/models"
	"accounts/internal/repository"
	"accounts/internal/services"
)

type UserHandler struct {
	users  repository.UserRepository
	photos services.PhotoStore
	hasher auth.PasswordHasher
}

func NewUserHandler(users repository.UserRepository, photos services.PhotoStore) *UserHandler {
	return &UserHandler{users: users, photos: photos}
}

// @Tags Account
// @Summary Get user profile
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSONErrorResponse(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_user_failed", "Failed to get user")
		return
	}

	// The stored value is the storage key; clients get the same public URL
	// that UploadPhoto returns.
	photoURL := ""
	if u.ProfilePhoto != "" {
		photoURL = h.photos.URL(u.ProfilePhoto)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"firstname":     u.Firstname,
		"lastname":      u.Lastname,
		"email":         u.Email,
		"location":      u.Location,
		"profile_photo": photoURL,
		"joined_on":     u.JoinedOn.Format("January 2006"),
	})
}

// @Tags Account
// @Summary Update profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/users/{id} [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}
	if middleware.UserID(r.Context()) != id {
		writeJSONErrorResponse(w, http.StatusForbidden, "forbidden", "Cannot modify another user's profile")
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), id, &req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSONErrorResponse(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		writeJSONErrorResponse(w, http.StatusInternalServerError, "update_user_failed", "Failed to update user")
		return
	}

	updated, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_user_failed", "Failed to fetch updated user")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// @Tags Account
// @Summary Change password
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body models.ChangePasswordRequest true "Change password request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/users/{id}/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}
	if middleware.UserID(r.Context()) != id {
		writeJSONErrorResponse(w, http.StatusForbidden, "forbidden", "Cannot change another user's password")
		return
	}

	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "old_password and new_password are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Password must be at least 8 characters")
		return
	}

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSONErrorResponse(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_user_failed", "Failed to get user")
		return
	}

	if !h.hasher.Verify(req.OldPassword, u.PasswordHash) {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "invalid_password", "Old password is incorrect")
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "hash_failed", "Failed to change password")
		return
	}

	if err := h.users.UpdatePasswordHash(r.Context(), id, hash); err != nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "change_password_failed", "Failed to change password")
		return
	}

	writeJSONMessage(w, http.StatusOK, "password updated")
}
