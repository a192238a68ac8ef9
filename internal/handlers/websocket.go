package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles live subscription connections
type WebSocketHandler struct {
	hub           *services.Hub
	userService   *services.UserService
	inviteService *services.InviteService
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(
	hub *services.Hub,
	userService *services.UserService,
	inviteService *services.InviteService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		userService:   userService,
		inviteService: inviteService,
	}
}

// HandleWebSocket handles GET /ws?token=. The connection is the client's
// subscription: registering it starts event delivery, closing it ends the
// subscription. On connect the client gets a couple_status snapshot so a
// creator reconnecting mid-pairing can reconcile immediately.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := middleware.ValidateWebSocketToken(token, h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	ctx := r.Context()
	h.sendCoupleStatus(ctx, userID)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	// Read loop: the protocol is server-push only, but the loop drains
	// client frames (pings, keepalives) and detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}
	}

	h.notifyPartner(ctx, userID, false)
}

// sendCoupleStatus pushes the caller's pairing snapshot and flags the partner
// online
func (h *WebSocketHandler) sendCoupleStatus(ctx context.Context, userID string) {
	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for couple status")
		return
	}

	status := map[string]any{"has_couple": user.CoupleID != nil}

	if user.CoupleID != nil {
		couple, err := h.inviteService.GetCouple(ctx, *user.CoupleID)
		if err == nil {
			status["couple_id"] = couple.ID
			h.hub.NotifyPartnerStatus(couple.Partner(userID), true)
		}
	} else if user.PendingInviteCode != nil {
		// mid-pairing reconnect: report the invite's live status
		if invite, err := h.inviteService.PendingInvite(ctx, userID); err == nil {
			status["pending_invite"] = invite
		}
	}

	if err := h.hub.SendToUser(userID, services.Event{
		Type: services.EventCoupleStatus,
		Data: status,
	}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send couple status")
	}
}

// notifyPartner flags the caller's presence change to their partner
func (h *WebSocketHandler) notifyPartner(ctx context.Context, userID string, online bool) {
	user, err := h.userService.GetUser(ctx, userID)
	if err != nil || user.CoupleID == nil {
		return
	}
	couple, err := h.inviteService.GetCouple(ctx, *user.CoupleID)
	if err != nil {
		return
	}
	h.hub.NotifyPartnerStatus(couple.Partner(userID), online)
}
