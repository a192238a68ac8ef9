package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/services"
)

// ItemHandler handles item and comment HTTP requests
type ItemHandler struct {
	ledger      *services.LedgerService
	userService *services.UserService
}

// NewItemHandler creates a new item handler
func NewItemHandler(ledger *services.LedgerService, userService *services.UserService) *ItemHandler {
	return &ItemHandler{
		ledger:      ledger,
		userService: userService,
	}
}

func (h *ItemHandler) coupleOf(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return "", "", false
	}
	return coupleID, userID, true
}

// CreateItemRequest carries a new item's fields
type CreateItemRequest struct {
	URL          string  `json:"url"`
	Title        *string `json:"title"`
	Note         *string `json:"note"`
	CollectionID string  `json:"collection_id"`
}

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.ledger.AddItem(r.Context(), coupleID, userID, services.AddItemParams{
		URL:          req.URL,
		Title:        req.Title,
		Note:         req.Note,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to add item")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// ListItems handles GET /api/v1/items?collection_id=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}

	items, err := h.ledger.ListItems(r.Context(), coupleID, r.URL.Query().Get("collection_id"))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list items")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// MoveItemRequest carries an item move
type MoveItemRequest struct {
	FromCollectionID string `json:"from_collection_id"`
	ToCollectionID   string `json:"to_collection_id"`
}

// MoveItem handles POST /api/v1/items/{item_id}/move
func (h *ItemHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")

	var req MoveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.MoveItem(r.Context(), coupleID, itemID, req.FromCollectionID, req.ToCollectionID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("item_id", itemID).Msg("Failed to move item")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusRequest carries a pending/done transition
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateItemStatus handles PATCH /api/v1/items/{item_id}/status
func (h *ItemHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.ledger.ToggleItemStatus(r.Context(), coupleID, itemID, req.Status)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("item_id", itemID).Msg("Failed to update item status")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DeleteItemRequest names the item's current collection so the right counter
// moves with the delete
type DeleteItemRequest struct {
	CollectionID string `json:"collection_id"`
}

// DeleteItem handles DELETE /api/v1/items/{item_id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")

	// empty collection_id lets the ledger resolve the item's stored collection
	collectionID := r.URL.Query().Get("collection_id")

	if err := h.ledger.DeleteItem(r.Context(), coupleID, itemID, collectionID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("item_id", itemID).Msg("Failed to delete item")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommentRequest carries a new comment
type CommentRequest struct {
	Text string `json:"text"`
}

// CreateComment handles POST /api/v1/items/{item_id}/comments
func (h *ItemHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.ledger.AddComment(r.Context(), coupleID, itemID, userID, req.Text)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("item_id", itemID).Msg("Failed to add comment")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// ListComments handles GET /api/v1/items/{item_id}/comments
func (h *ItemHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")

	comments, err := h.ledger.ListComments(r.Context(), coupleID, itemID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("item_id", itemID).Msg("Failed to list comments")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// DeleteComment handles DELETE /api/v1/items/{item_id}/comments/{comment_id}
func (h *ItemHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	coupleID, userID, ok := h.coupleOf(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")
	commentID := chi.URLParam(r, "comment_id")

	if err := h.ledger.DeleteComment(r.Context(), coupleID, itemID, commentID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("comment_id", commentID).Msg("Failed to delete comment")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
