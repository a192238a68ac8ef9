package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/services"
)

// InviteHandler handles invite and couple HTTP requests
type InviteHandler struct {
	inviteService *services.InviteService
	userService   *services.UserService
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(inviteService *services.InviteService, userService *services.UserService) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		userService:   userService,
	}
}

// CreateInviteResponse is returned from invite creation
type CreateInviteResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateInvite handles POST /api/v1/invites
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	invite, err := h.inviteService.CreateInvite(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create invite")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CreateInviteResponse{
		Code:      invite.Code,
		ExpiresAt: invite.ExpiresAt,
	})
}

// RedeemInviteRequest carries the code being redeemed
type RedeemInviteRequest struct {
	Code string `json:"code"`
}

// RedeemInvite handles POST /api/v1/invites/redeem
func (h *InviteHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RedeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	couple, err := h.inviteService.RedeemInvite(ctx, userID, req.Code)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to redeem invite")
		respondDomainError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", couple.ID).
		Msg("Couple formed")
	respondJSON(w, http.StatusOK, couple)
}

// PendingInvite handles GET /api/v1/invites/pending
func (h *InviteHandler) PendingInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	invite, err := h.inviteService.PendingInvite(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invite)
}

// UpdateCoupleRequest carries editable couple profile fields
type UpdateCoupleRequest struct {
	Title *string `json:"title"`
}

// UpdateCouple handles PATCH /api/v1/couple
func (h *InviteHandler) UpdateCouple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var req UpdateCoupleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.inviteService.SetCoupleTitle(ctx, coupleID, req.Title); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update couple")
		respondDomainError(w, err)
		return
	}

	couple, err := h.inviteService.GetCouple(ctx, coupleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, couple)
}

// GetCouple handles GET /api/v1/couple
func (h *InviteHandler) GetCouple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	couple, err := h.inviteService.GetCouple(ctx, coupleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, couple)
}
