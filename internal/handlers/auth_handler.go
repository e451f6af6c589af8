package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/models"
)

type AuthHandler struct {
	flow *auth.Service
	cfg  *config.Config
	v    *validator.Validate
}

func NewAuthHandler(flow *auth.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		flow: flow,
		cfg:  cfg,
		v:    validator.New(),
	}
}

// @Tags Auth
// @Summary Register a new account
// @Accept json
// @Produce json
// @Param body body models.RegisterRequest true "Registration request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if len(req.Password) > 0 && len(req.Password) < 8 {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Password must be at least 8 characters")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	u, err := h.flow.Register(r.Context(), auth.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Location:  req.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			writeJSONErrorResponse(w, http.StatusBadRequest, "username_exists", "Username already exists")
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSONErrorResponse(w, http.StatusBadRequest, "email_exists", "Email already exists")
		default:
			writeJSONErrorResponse(w, http.StatusInternalServerError, "registration_failed", "Failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    u.Summary(),
	})
}

// @Tags Auth
// @Summary Log in with email and password
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Login request"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.flow.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// Missing user and wrong password produce the same response.
			writeJSONErrorResponse(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		writeJSONErrorResponse(w, http.StatusInternalServerError, "login_failed", "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Message:      "User successfully logged in.",
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User.Summary(),
	})
}

// @Tags Auth
// @Summary Log out
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless, so there is no server-side session to tear
	// down; the middleware has already rejected unauthenticated callers.
	writeJSONMessage(w, http.StatusOK, "User successfully logged out.")
}

// @Tags Auth
// @Summary Refresh the session token
// @Accept json
// @Produce json
// @Param body body models.RefreshRequest true "Refresh request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	token, expiresIn, err := h.flow.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeJSONErrorResponse(w, http.StatusUnauthorized, "token_expired", "Refresh token is expired")
			return
		}
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_token", "Refresh token is invalid")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_in":   expiresIn,
	})
}

// @Tags Auth
// @Summary Request a password reset code
// @Accept json
// @Produce json
// @Param body body models.ForgotPasswordRequest true "Reset request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/auth/request-password-reset [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "A valid email is required")
		return
	}

	code, err := h.flow.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_request_failed", "Failed to process reset request")
		return
	}

	// Same response whether or not an account exists for the email.
	resp := map[string]any{
		"message": "If an account exists for that email, a reset code has been sent.",
	}
	if h.cfg.AuthReturnResetCode && code != "" {
		resp["code"] = code
	}
	writeJSON(w, http.StatusOK, resp)
}

// @Tags Auth
// @Summary Exchange a reset code for a reset token
// @Accept json
// @Produce json
// @Param body body models.VerifyResetCodeRequest true "Verify request"
// @Success 200 {object} models.VerifyResetCodeResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/auth/verify-reset-code [post]
func (h *AuthHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyResetCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Email and a 4-digit code are required")
		return
	}

	token, expiresAt, err := h.flow.VerifyResetCode(r.Context(), req.Email, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeJSONErrorResponse(w, http.StatusNotFound, "user_not_found", "User not found")
		case errors.Is(err, auth.ErrCodeExpired):
			writeJSONErrorResponse(w, http.StatusBadRequest, "code_expired", "Verification code has expired")
		case errors.Is(err, auth.ErrCodeMismatch), errors.Is(err, auth.ErrCodeNotRequested):
			writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_code", "Invalid verification code")
		default:
			writeJSONErrorResponse(w, http.StatusInternalServerError, "verify_failed", "Failed to verify code")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.VerifyResetCodeResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// @Tags Auth
// @Summary Set a new password using a reset token
// @Accept json
// @Produce json
// @Param body body models.ResetPasswordRequest true "Reset request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Token and new_password are required")
		return
	}

	if err := h.flow.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort):
			writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Password must be at least 8 characters")
		case errors.Is(err, auth.ErrResetTokenInvalid):
			writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_token", "Invalid or expired token")
		default:
			writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_failed", "Failed to reset password")
		}
		return
	}

	writeJSONMessage(w, http.StatusOK, "Password reset successful")
}
