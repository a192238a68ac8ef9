package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/services"
)

// CollectionHandler handles collection HTTP requests
type CollectionHandler struct {
	ledger      *services.LedgerService
	userService *services.UserService
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(ledger *services.LedgerService, userService *services.UserService) *CollectionHandler {
	return &CollectionHandler{
		ledger:      ledger,
		userService: userService,
	}
}

// CreateCollectionRequest carries a new collection's fields
type CreateCollectionRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// CreateCollection handles POST /api/v1/collections
func (h *CollectionHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var req CreateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	collection, err := h.ledger.CreateCollection(ctx, coupleID, userID, req.Name, req.Emoji)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create collection")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, collection)
}

// ListCollections handles GET /api/v1/collections
func (h *CollectionHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	collections, err := h.ledger.ListCollections(ctx, coupleID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list collections")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, collections)
}

// DeleteCollectionResponse reports how many items the deletion touched
type DeleteCollectionResponse struct {
	Items int `json:"items"`
}

// DeleteCollection handles DELETE /api/v1/collections/{collection_id}?mode=
func (h *CollectionHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	collectionID := chi.URLParam(r, "collection_id")

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	mode := r.URL.Query().Get("mode")

	affected, err := h.ledger.DeleteCollection(ctx, coupleID, collectionID, mode)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("collection_id", collectionID).
			Msg("Failed to delete collection")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DeleteCollectionResponse{Items: affected})
}

// RepairResponse reports a recomputed counter
type RepairResponse struct {
	ItemCount int `json:"item_count"`
}

// RepairCollection handles POST /api/v1/collections/{collection_id}/repair
func (h *CollectionHandler) RepairCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	collectionID := chi.URLParam(r, "collection_id")

	coupleID, err := h.userService.RequireCouple(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	count, err := h.ledger.RepairCollectionCount(ctx, coupleID, collectionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("collection_id", collectionID).
			Msg("Failed to repair collection counter")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RepairResponse{ItemCount: count})
}
