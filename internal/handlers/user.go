package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/services"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// SessionResponse is returned on login/creation
type SessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// CreateUser handles POST /api/v1/users. It accepts the identity fields the
// auth provider supplies and returns the user record plus an API token.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ident services.Identity
	if err := json.NewDecoder(r.Body).Decode(&ident); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.EnsureUser(ctx, ident)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ensure user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := h.userService.GenerateJWT(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate token")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User session created")
	respondJSON(w, http.StatusOK, SessionResponse{User: user, Token: token})
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PushTokenRequest carries a device token registration
type PushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.RegisterDeviceToken(ctx, userID, req.Token, req.Platform); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register device token")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePushToken handles DELETE /api/v1/users/me/push-token
func (h *UserHandler) DeletePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.RemoveDeviceToken(ctx, userID, req.Token); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to remove device token")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreferencesRequest carries notification preference flags
type PreferencesRequest struct {
	NewItems      bool `json:"new_items"`
	StatusChanges bool `json:"status_changes"`
	Comments      bool `json:"comments"`
}

// UpdateNotificationPreferences handles PUT /api/v1/users/me/notification-preferences
func (h *UserHandler) UpdateNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateNotificationPreferences(ctx, userID, req.NewItems, req.StatusChanges, req.Comments); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update preferences")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
