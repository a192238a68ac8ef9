package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"pair-collection-backend/internal/config"
	"pair-collection-backend/internal/metrics"
	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/repository"
)

const notifyQueueSize = 256

// push event kinds
const (
	pushItemCreated  = "new_item"
	pushItemStatus   = "item_done"
	pushCommentAdded = "new_comment"
)

type pushEvent struct {
	kind    string
	item    *models.Item
	comment *models.Comment
}

// Notifier fans ledger mutations out to the actor's partner as APNs pushes.
// Events are queued and delivered by a single worker so mutating requests
// never wait on APNs.
type Notifier struct {
	queue     chan pushEvent
	userRepo  *repository.UserRepository
	cplRepo   *repository.CoupleRepository
	tokenRepo *repository.DeviceTokenRepository
	client    *apns2.Client
	topic     string
}

// NewNotifier creates a notifier. When APNs is not configured the notifier
// still accepts events and drops them with a debug log.
func NewNotifier(
	userRepo *repository.UserRepository,
	cplRepo *repository.CoupleRepository,
	tokenRepo *repository.DeviceTokenRepository,
	cfg config.APNSConfig,
) (*Notifier, error) {
	n := &Notifier{
		queue:     make(chan pushEvent, notifyQueueSize),
		userRepo:  userRepo,
		cplRepo:   cplRepo,
		tokenRepo: tokenRepo,
		topic:     cfg.Topic,
	}

	if cfg.Enabled() {
		authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load APNs key: %w", err)
		}
		tok := &token.Token{
			AuthKey: authKey,
			KeyID:   cfg.KeyID,
			TeamID:  cfg.TeamID,
		}
		client := apns2.NewTokenClient(tok)
		if cfg.Production {
			client = client.Production()
		} else {
			client = client.Development()
		}
		n.client = client
	}

	return n, nil
}

// Run delivers queued events until ctx is cancelled
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

// ItemCreated enqueues a push for a newly saved link
func (n *Notifier) ItemCreated(item *models.Item) {
	n.enqueue(pushEvent{kind: pushItemCreated, item: item})
}

// ItemStatusChanged enqueues a push for a pending/done transition
func (n *Notifier) ItemStatusChanged(item *models.Item) {
	n.enqueue(pushEvent{kind: pushItemStatus, item: item})
}

// CommentAdded enqueues a push for a new comment on an item
func (n *Notifier) CommentAdded(item *models.Item, comment *models.Comment) {
	n.enqueue(pushEvent{kind: pushCommentAdded, item: item, comment: comment})
}

func (n *Notifier) enqueue(ev pushEvent) {
	select {
	case n.queue <- ev:
	default:
		log.Warn().Str("kind", ev.kind).Msg("Push queue full, dropping event")
	}
}

// deliver resolves the partner, checks their preferences and sends one push
// per registered device, dropping tokens APNs reports as gone.
func (n *Notifier) deliver(ctx context.Context, ev pushEvent) {
	actorID := ev.item.CreatedBy
	if ev.comment != nil {
		actorID = ev.comment.AuthorID
	}

	couple, err := n.cplRepo.GetByID(ctx, ev.item.CoupleID)
	if err != nil {
		log.Error().Err(err).Str("couple_id", ev.item.CoupleID).Msg("Push: couple lookup failed")
		return
	}
	partnerID := couple.Partner(actorID)
	if partnerID == "" {
		return
	}

	partner, err := n.userRepo.GetByID(ctx, partnerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Push: partner lookup failed")
		return
	}
	if !n.allowed(partner, ev.kind) {
		return
	}

	tokens, err := n.tokenRepo.ListByUser(ctx, partnerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Push: token lookup failed")
		return
	}
	if len(tokens) == 0 {
		return
	}

	actor, err := n.userRepo.GetByID(ctx, actorID)
	if err != nil {
		log.Error().Err(err).Str("user_id", actorID).Msg("Push: actor lookup failed")
		return
	}

	title, body := n.compose(ev, actor)

	if n.client == nil {
		log.Debug().Str("kind", ev.kind).Str("user_id", partnerID).Msg("Push delivery disabled, dropping")
		return
	}

	for _, t := range tokens {
		p := payload.NewPayload().
			AlertTitle(title).
			AlertBody(body).
			Sound("default").
			ThreadID("item_" + ev.item.ID).
			Custom("type", ev.kind).
			Custom("item_id", ev.item.ID).
			Custom("couple_id", ev.item.CoupleID).
			Custom("collection_id", ev.item.CollectionID)

		notification := &apns2.Notification{
			DeviceToken: t.Token,
			Topic:       n.topic,
			Payload:     p,
		}

		res, err := n.client.PushWithContext(ctx, notification)
		if err != nil {
			metrics.PushesFailed.Inc()
			log.Error().Err(err).Str("user_id", partnerID).Msg("Push failed")
			continue
		}
		if res.Sent() {
			metrics.PushesSent.Inc()
			continue
		}

		metrics.PushesFailed.Inc()
		log.Warn().
			Str("user_id", partnerID).
			Str("reason", res.Reason).
			Msg("Push rejected")

		// dead device addresses are removed so we stop pushing into the void
		if res.Reason == apns2.ReasonUnregistered || res.Reason == apns2.ReasonBadDeviceToken {
			if err := n.tokenRepo.Delete(ctx, partnerID, t.Token); err != nil {
				log.Error().Err(err).Str("user_id", partnerID).Msg("Push: token cleanup failed")
			}
		}
	}
}

func (n *Notifier) allowed(partner *models.User, kind string) bool {
	switch kind {
	case pushItemCreated:
		return partner.NotifyNewItems
	case pushItemStatus:
		return partner.NotifyStatus
	case pushCommentAdded:
		return partner.NotifyComments
	}
	return false
}

func (n *Notifier) compose(ev pushEvent, actor *models.User) (title, body string) {
	name := "Your partner"
	if actor.DisplayName != nil && *actor.DisplayName != "" {
		name = *actor.DisplayName
	}

	title = "New link"
	if ev.item.Title != nil && *ev.item.Title != "" {
		title = *ev.item.Title
	} else if d := domainOf(ev.item.URL); d != "" {
		title = d
	}

	switch ev.kind {
	case pushItemCreated:
		body = fmt.Sprintf("%s added a new link", name)
	case pushItemStatus:
		if ev.item.Status == models.ItemStatusDone {
			body = fmt.Sprintf("%s marked a link as done", name)
		} else {
			body = fmt.Sprintf("%s reopened a link", name)
		}
	case pushCommentAdded:
		body = fmt.Sprintf("%s: %s", name, ev.comment.Text)
	}
	return title, body
}

// domainOf extracts the hostname of a link for display, without the www prefix
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
