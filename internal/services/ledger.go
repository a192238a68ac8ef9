package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pgxlib "github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/repository"
)

const defaultEmoji = "✨"

// LedgerService maintains items, collections and comments for a couple,
// keeping the denormalized item_count and comment_count fields consistent.
// Every mutation is one serializable transaction.
type LedgerService struct {
	tx       *repository.TxRunner
	colRepo  *repository.CollectionRepository
	itemRepo *repository.ItemRepository
	cmtRepo  *repository.CommentRepository
	cplRepo  *repository.CoupleRepository
	hub      *Hub
	notifier *Notifier
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	tx *repository.TxRunner,
	colRepo *repository.CollectionRepository,
	itemRepo *repository.ItemRepository,
	cmtRepo *repository.CommentRepository,
	cplRepo *repository.CoupleRepository,
	hub *Hub,
	notifier *Notifier,
) *LedgerService {
	return &LedgerService{
		tx:       tx,
		colRepo:  colRepo,
		itemRepo: itemRepo,
		cmtRepo:  cmtRepo,
		cplRepo:  cplRepo,
		hub:      hub,
		notifier: notifier,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, pgxlib.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// AddItemParams carries the optional fields of AddItem
type AddItemParams struct {
	URL          string
	Title        *string
	Note         *string
	CollectionID string
}

// AddItem creates an item, defaulting to the inbox. When the target is a real
// collection it must exist within the couple and its counter moves with the
// insert in the same transaction.
func (s *LedgerService) AddItem(ctx context.Context, coupleID, createdBy string, params AddItemParams) (*models.Item, error) {
	url := strings.TrimSpace(params.URL)
	if url == "" {
		return nil, ErrURLRequired
	}

	collectionID := params.CollectionID
	if collectionID == "" {
		collectionID = models.InboxCollectionID
	}

	item := &models.Item{
		ID:           uuid.New().String(),
		CoupleID:     coupleID,
		CollectionID: collectionID,
		URL:          url,
		Title:        params.Title,
		Note:         params.Note,
		Status:       models.ItemStatusPending,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now(),
	}

	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		collections := s.colRepo.WithTx(tx)

		if collectionID != models.InboxCollectionID {
			if _, err := collections.GetByID(ctx, coupleID, collectionID); err != nil {
				return mapNotFound(err)
			}
		}
		if err := items.Create(ctx, item); err != nil {
			return err
		}
		if collectionID != models.InboxCollectionID {
			return collections.AdjustItemCount(ctx, coupleID, collectionID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("couple_id", coupleID).
		Str("item_id", item.ID).
		Str("collection_id", collectionID).
		Msg("Item added")

	s.broadcast(ctx, coupleID, createdBy, func(memberID string) {
		s.hub.NotifyItemCreated(memberID, item, createdBy)
	})
	if s.notifier != nil {
		s.notifier.ItemCreated(item)
	}
	return item, nil
}

// MoveItem moves an item between collections, adjusting each real
// collection's counter. Inbox transitions never touch a counter. A move with
// identical source and destination is a no-op.
func (s *LedgerService) MoveItem(ctx context.Context, coupleID, itemID, fromCollectionID, toCollectionID string) error {
	if fromCollectionID == toCollectionID {
		return nil
	}
	if toCollectionID == "" {
		toCollectionID = models.InboxCollectionID
	}

	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		collections := s.colRepo.WithTx(tx)

		if toCollectionID != models.InboxCollectionID {
			if _, err := collections.GetByID(ctx, coupleID, toCollectionID); err != nil {
				return mapNotFound(err)
			}
		}
		if err := items.SetCollection(ctx, coupleID, itemID, toCollectionID); err != nil {
			return mapNotFound(err)
		}
		if fromCollectionID != models.InboxCollectionID {
			if err := collections.AdjustItemCount(ctx, coupleID, fromCollectionID, -1); err != nil {
				return mapNotFound(err)
			}
		}
		if toCollectionID != models.InboxCollectionID {
			return collections.AdjustItemCount(ctx, coupleID, toCollectionID, 1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcastAll(ctx, coupleID, func(memberID string) {
		s.hub.NotifyItemMoved(memberID, itemID, fromCollectionID, toCollectionID)
	})
	return nil
}

// DeleteItem deletes an item, decrementing its collection's counter when the
// item was not in the inbox. An empty collectionID means "wherever the item
// currently is".
func (s *LedgerService) DeleteItem(ctx context.Context, coupleID, itemID, collectionID string) error {
	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		collections := s.colRepo.WithTx(tx)

		colID := collectionID
		if colID == "" {
			item, err := items.GetByID(ctx, coupleID, itemID)
			if err != nil {
				return mapNotFound(err)
			}
			colID = item.CollectionID
		}
		if err := items.Delete(ctx, coupleID, itemID); err != nil {
			return mapNotFound(err)
		}
		if colID != models.InboxCollectionID {
			return mapNotFound(collections.AdjustItemCount(ctx, coupleID, colID, -1))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcastAll(ctx, coupleID, func(memberID string) {
		s.hub.NotifyItemDeleted(memberID, itemID)
	})
	return nil
}

// ToggleItemStatus updates an item's pending/done status; no counter moves
func (s *LedgerService) ToggleItemStatus(ctx context.Context, coupleID, itemID, status string) (*models.Item, error) {
	if status != models.ItemStatusPending && status != models.ItemStatusDone {
		return nil, ErrBadStatus
	}

	if err := s.itemRepo.SetStatus(ctx, coupleID, itemID, status); err != nil {
		return nil, mapNotFound(err)
	}
	item, err := s.itemRepo.GetByID(ctx, coupleID, itemID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	s.broadcastAll(ctx, coupleID, func(memberID string) {
		s.hub.NotifyItemStatus(memberID, item)
	})
	if s.notifier != nil {
		s.notifier.ItemStatusChanged(item)
	}
	return item, nil
}

// ListItems lists the items of a collection (real or INBOX), newest first
func (s *LedgerService) ListItems(ctx context.Context, coupleID, collectionID string) ([]*models.Item, error) {
	if collectionID == "" {
		collectionID = models.InboxCollectionID
	}
	return s.itemRepo.ListByCollection(ctx, coupleID, collectionID)
}

// CreateCollection creates a named, emoji-tagged collection with a zero counter
func (s *LedgerService) CreateCollection(ctx context.Context, coupleID, createdBy, name, emoji string) (*models.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if emoji == "" {
		emoji = defaultEmoji
	}

	collection := &models.Collection{
		ID:        uuid.New().String(),
		CoupleID:  coupleID,
		Name:      name,
		Emoji:     emoji,
		CreatedBy: createdBy,
		ItemCount: 0,
		CreatedAt: time.Now(),
	}
	if err := s.colRepo.Create(ctx, collection); err != nil {
		return nil, err
	}

	log.Info().
		Str("couple_id", coupleID).
		Str("collection_id", collection.ID).
		Str("name", name).
		Msg("Collection created")
	return collection, nil
}

// ListCollections lists the couple's collections, newest first
func (s *LedgerService) ListCollections(ctx context.Context, coupleID string) ([]*models.Collection, error) {
	return s.colRepo.ListByCouple(ctx, coupleID)
}

// DeleteCollection deletes a collection. Mode move_to_inbox re-homes the
// contained items to the inbox, delete_all removes them outright; either way
// the item migration and the collection delete commit atomically. Returns how
// many items were moved or deleted.
func (s *LedgerService) DeleteCollection(ctx context.Context, coupleID, collectionID, mode string) (int, error) {
	if mode != models.DeleteModeMoveToInbox && mode != models.DeleteModeDeleteAll {
		return 0, ErrBadMode
	}

	var affected int
	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		collections := s.colRepo.WithTx(tx)

		if _, err := collections.GetByID(ctx, coupleID, collectionID); err != nil {
			return mapNotFound(err)
		}

		var err error
		if mode == models.DeleteModeMoveToInbox {
			affected, err = items.MoveAllToInbox(ctx, coupleID, collectionID)
		} else {
			affected, err = items.DeleteAllInCollection(ctx, coupleID, collectionID)
		}
		if err != nil {
			return err
		}
		return collections.Delete(ctx, coupleID, collectionID)
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("couple_id", coupleID).
		Str("collection_id", collectionID).
		Str("mode", mode).
		Int("items", affected).
		Msg("Collection deleted")
	return affected, nil
}

// RepairCollectionCount recomputes a collection's item_count from a live
// count, correcting any drift. Returns the repaired count.
func (s *LedgerService) RepairCollectionCount(ctx context.Context, coupleID, collectionID string) (int, error) {
	var count int
	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		collections := s.colRepo.WithTx(tx)

		var err error
		count, err = items.CountByCollection(ctx, coupleID, collectionID)
		if err != nil {
			return err
		}
		return mapNotFound(collections.SetItemCount(ctx, coupleID, collectionID, count))
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddComment attaches a comment to an item and bumps its comment_count in the
// same transaction
func (s *LedgerService) AddComment(ctx context.Context, coupleID, itemID, authorID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrTextRequired
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}

	var item *models.Item
	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		comments := s.cmtRepo.WithTx(tx)

		var err error
		item, err = items.GetByID(ctx, coupleID, itemID)
		if err != nil {
			return mapNotFound(err)
		}
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		return items.AdjustCommentCount(ctx, coupleID, itemID, 1)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, coupleID, authorID, func(memberID string) {
		s.hub.NotifyCommentAdded(memberID, comment)
	})
	if s.notifier != nil {
		s.notifier.CommentAdded(item, comment)
	}
	return comment, nil
}

// ListComments lists an item's comments, oldest first
func (s *LedgerService) ListComments(ctx context.Context, coupleID, itemID string) ([]*models.Comment, error) {
	if _, err := s.itemRepo.GetByID(ctx, coupleID, itemID); err != nil {
		return nil, mapNotFound(err)
	}
	return s.cmtRepo.ListByItem(ctx, itemID)
}

// DeleteComment removes a comment and decrements the item's comment_count in
// the same transaction
func (s *LedgerService) DeleteComment(ctx context.Context, coupleID, itemID, commentID string) error {
	return s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		items := s.itemRepo.WithTx(tx)
		comments := s.cmtRepo.WithTx(tx)

		if _, err := items.GetByID(ctx, coupleID, itemID); err != nil {
			return mapNotFound(err)
		}
		if err := comments.Delete(ctx, itemID, commentID); err != nil {
			return mapNotFound(err)
		}
		return items.AdjustCommentCount(ctx, coupleID, itemID, -1)
	})
}

// broadcast sends a hub event to the partner of actorID
func (s *LedgerService) broadcast(ctx context.Context, coupleID, actorID string, send func(memberID string)) {
	if s.hub == nil {
		return
	}
	couple, err := s.cplRepo.GetByID(ctx, coupleID)
	if err != nil {
		return
	}
	if partner := couple.Partner(actorID); partner != "" && s.hub.IsOnline(partner) {
		send(partner)
	}
}

// broadcastAll sends a hub event to every online member of the couple
func (s *LedgerService) broadcastAll(ctx context.Context, coupleID string, send func(memberID string)) {
	if s.hub == nil {
		return
	}
	couple, err := s.cplRepo.GetByID(ctx, coupleID)
	if err != nil {
		return
	}
	for _, memberID := range couple.Members() {
		if s.hub.IsOnline(memberID) {
			send(memberID)
		}
	}
}
