package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/models"
)

// Event types pushed over live connections
const (
	EventInviteClaimed = "invite_claimed"
	EventInviteExpired = "invite_expired"
	EventItemCreated   = "item_created"
	EventItemMoved     = "item_moved"
	EventItemDeleted   = "item_deleted"
	EventItemStatus    = "item_status_changed"
	EventCommentAdded  = "comment_added"
	EventPartnerStatus = "partner_status"
	EventCoupleStatus  = "couple_status"
	EventError         = "error"
)

// Event is a message pushed to a live client connection
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Online    *bool  `json:"online,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Hub manages live WebSocket connections, one per user. Registering is the
// subscribe side of the watch protocol; Unregister is the explicit
// unsubscribe. A user's subscription ends when their socket closes.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a new connection for a user, closing any previous one
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's connection
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[userID]; ok {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends an event to a specific user
func (h *Hub) SendToUser(userID string, event Event) error {
	h.mu.RLock()
	conn, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.dropConn(userID, conn)
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// dropConn removes a user's connection only if it is still the given one,
// so a writer that failed on a stale connection never tears down a
// replacement registered in the meantime.
func (h *Hub) dropConn(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[userID] == conn {
		conn.Close()
		delete(h.connections, userID)
	}
}

// IsOnline checks if a user has a live connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// NotifyInviteClaimed tells the invite creator their code was redeemed.
// Repeated delivery is harmless: the payload states the final couple, and the
// claim itself happened exactly once in the redemption transaction.
func (h *Hub) NotifyInviteClaimed(creatorID string, couple *models.Couple) {
	h.send(creatorID, Event{
		Type: EventInviteClaimed,
		Data: couple,
	})
}

// NotifyInviteExpired tells the invite creator their code lapsed
func (h *Hub) NotifyInviteExpired(creatorID, code string) {
	h.send(creatorID, Event{
		Type: EventInviteExpired,
		Data: map[string]string{"code": code},
	})
}

// NotifyItemCreated pushes a new item to a couple member
func (h *Hub) NotifyItemCreated(userID string, item *models.Item, actorID string) {
	h.send(userID, Event{
		Type:    EventItemCreated,
		ActorID: actorID,
		Data:    item,
	})
}

// NotifyItemMoved pushes an item move to a couple member
func (h *Hub) NotifyItemMoved(userID, itemID, fromCollectionID, toCollectionID string) {
	h.send(userID, Event{
		Type: EventItemMoved,
		Data: map[string]string{
			"item_id":            itemID,
			"from_collection_id": fromCollectionID,
			"to_collection_id":   toCollectionID,
		},
	})
}

// NotifyItemDeleted pushes an item deletion to a couple member
func (h *Hub) NotifyItemDeleted(userID, itemID string) {
	h.send(userID, Event{
		Type: EventItemDeleted,
		Data: map[string]string{"item_id": itemID},
	})
}

// NotifyItemStatus pushes an item status change to a couple member
func (h *Hub) NotifyItemStatus(userID string, item *models.Item) {
	h.send(userID, Event{
		Type: EventItemStatus,
		Data: item,
	})
}

// NotifyCommentAdded pushes a new comment to a couple member
func (h *Hub) NotifyCommentAdded(userID string, comment *models.Comment) {
	h.send(userID, Event{
		Type:    EventCommentAdded,
		ActorID: comment.AuthorID,
		Data:    comment,
	})
}

// NotifyPartnerStatus tells a user their partner went online or offline
func (h *Hub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" {
		return
	}
	h.send(partnerID, Event{
		Type:   EventPartnerStatus,
		Online: &online,
	})
}

func (h *Hub) send(userID string, event Event) {
	if err := h.SendToUser(userID, event); err != nil {
		log.Debug().
			Err(err).
			Str("user_id", userID).
			Str("type", event.Type).
			Msg("Event not delivered")
	}
}
