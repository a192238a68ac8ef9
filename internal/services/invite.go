package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	pgxlib "github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"pair-collection-backend/internal/metrics"
	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/repository"
)

const (
	inviteTTL       = 20 * time.Minute
	maxCodeAttempts = 8
	codeLength      = 6
)

// errCodeCollision aborts a create attempt when the candidate code is taken;
// the attempt has no side effects and the loop draws a fresh code.
var errCodeCollision = errors.New("invite code collision")

// InviteService implements the invite registry and couple formation.
// Redemption completes both sides of the couple in a single serializable
// transaction; the hub only carries the news to connected clients.
type InviteService struct {
	tx       *repository.TxRunner
	userRepo *repository.UserRepository
	invRepo  *repository.InviteRepository
	cplRepo  *repository.CoupleRepository
	hub      *Hub
}

// NewInviteService creates a new invite service
func NewInviteService(
	tx *repository.TxRunner,
	userRepo *repository.UserRepository,
	invRepo *repository.InviteRepository,
	cplRepo *repository.CoupleRepository,
	hub *Hub,
) *InviteService {
	return &InviteService{
		tx:       tx,
		userRepo: userRepo,
		invRepo:  invRepo,
		cplRepo:  cplRepo,
		hub:      hub,
	}
}

// randomCode draws a 6-digit numeric code; leading zeros are valid, the full
// 000000-999999 space is used.
func randomCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(1_000_000))
	return fmt.Sprintf("%06d", n.Int64())
}

// NormalizeCode strips non-digit characters and truncates to 6 digits.
// ok is false when fewer than 6 digits remain.
func NormalizeCode(raw string) (string, bool) {
	digits := make([]byte, 0, codeLength)
	for i := 0; i < len(raw) && len(digits) < codeLength; i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) != codeLength {
		return "", false
	}
	return string(digits), true
}

// CreateInvite generates a pairing code for the creator. Each attempt runs as
// one serializable transaction that re-checks the creator's couple, aborts
// without side effects when the candidate code is taken, and otherwise writes
// the invite plus the creator's pending_invite_code.
func (s *InviteService) CreateInvite(ctx context.Context, creatorID string) (*models.Invite, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := randomCode()
		now := time.Now()
		invite := &models.Invite{
			Code:      code,
			CreatorID: creatorID,
			Status:    models.InviteStatusOpen,
			CreatedAt: now,
			ExpiresAt: now.Add(inviteTTL),
		}

		err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
			users := s.userRepo.WithTx(tx)
			invites := s.invRepo.WithTx(tx)

			creator, err := users.GetByID(ctx, creatorID)
			if err != nil {
				if errors.Is(err, pgxlib.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if creator.CoupleID != nil {
				return ErrAlreadyPaired
			}

			exists, err := invites.Exists(ctx, code)
			if err != nil {
				return err
			}
			if exists {
				return errCodeCollision
			}

			if err := invites.Create(ctx, invite); err != nil {
				return err
			}
			return users.SetPendingInviteCode(ctx, creatorID, &code)
		})
		if err == nil {
			metrics.InvitesCreated.Inc()
			log.Info().Str("creator_id", creatorID).Str("code", code).Msg("Invite created")
			return invite, nil
		}
		if errors.Is(err, errCodeCollision) || repository.IsUniqueViolation(err) {
			// another open invite holds this code; draw again
			continue
		}
		return nil, err
	}
	return nil, ErrCodeGeneration
}

// RedeemInvite joins the caller to the invite creator's new couple. The whole
// redemption is one serializable transaction: validate the invite, create the
// couple, set couple_id on BOTH user rows, clear the creator's pending code
// and claim the invite. Expiry is lazy: an expired-but-open invite observed
// here is marked expired in its own committed transaction before rejecting.
func (s *InviteService) RedeemInvite(ctx context.Context, joinerID, rawCode string) (*models.Couple, error) {
	code, ok := NormalizeCode(rawCode)
	if !ok {
		return nil, ErrInvalidCode
	}

	var (
		couple     *models.Couple
		creatorID  string
		terminated error // expiry-class rejection that still commits its writes
	)

	err := s.tx.Serializable(ctx, func(tx pgxlib.Tx) error {
		users := s.userRepo.WithTx(tx)
		invites := s.invRepo.WithTx(tx)
		couples := s.cplRepo.WithTx(tx)

		couple, creatorID, terminated = nil, "", nil

		invite, err := invites.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, pgxlib.ErrNoRows) {
				return ErrCodeNotFound
			}
			return err
		}
		creatorID = invite.CreatorID

		if invite.Status != models.InviteStatusOpen {
			return ErrCodeUsed
		}
		if invite.CreatorID == joinerID {
			return ErrOwnCode
		}

		// Lazy expiry: materialize the terminal status and reject. These
		// writes must commit, so the rejection is carried out of the
		// transaction instead of aborting it.
		if time.Now().After(invite.ExpiresAt) {
			if err := invites.SetStatus(ctx, code, models.InviteStatusExpired); err != nil {
				return err
			}
			if err := users.SetPendingInviteCode(ctx, invite.CreatorID, nil); err != nil {
				return err
			}
			terminated = ErrCodeExpired
			return nil
		}

		joiner, err := users.GetByID(ctx, joinerID)
		if err != nil {
			if errors.Is(err, pgxlib.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if joiner.CoupleID != nil {
			return ErrAlreadyPaired
		}

		// The creator may have joined someone else's couple since creating
		// this code. Pairing them again would produce a second couple
		// referencing the creator, so the stale invite is retired instead.
		creator, err := users.GetByID(ctx, invite.CreatorID)
		if err != nil {
			return err
		}
		if creator.CoupleID != nil {
			if err := invites.SetStatus(ctx, code, models.InviteStatusExpired); err != nil {
				return err
			}
			if err := users.SetPendingInviteCode(ctx, invite.CreatorID, nil); err != nil {
				return err
			}
			terminated = ErrCreatorPaired
			return nil
		}

		c := &models.Couple{
			ID:         uuid.New().String(),
			MemberA:    invite.CreatorID,
			MemberB:    joinerID,
			InviteCode: code,
			CreatedAt:  time.Now(),
		}
		if err := couples.Create(ctx, c); err != nil {
			return err
		}
		if err := users.SetCouple(ctx, joinerID, c.ID); err != nil {
			return err
		}
		if err := users.SetCouple(ctx, invite.CreatorID, c.ID); err != nil {
			return err
		}
		if err := invites.Claim(ctx, code, joinerID, c.ID); err != nil {
			return err
		}

		couple = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if terminated != nil {
		if s.hub != nil && errors.Is(terminated, ErrCodeExpired) {
			s.hub.NotifyInviteExpired(creatorID, code)
		}
		return nil, terminated
	}

	metrics.InvitesRedeemed.Inc()
	log.Info().
		Str("code", code).
		Str("creator_id", couple.MemberA).
		Str("joiner_id", joinerID).
		Str("couple_id", couple.ID).
		Msg("Invite redeemed")

	if s.hub != nil {
		s.hub.NotifyInviteClaimed(couple.MemberA, couple)
	}
	return couple, nil
}

// PendingInvite returns the caller's outstanding invite and its live status,
// so a client reconnecting mid-pairing can reconcile without the hub.
func (s *InviteService) PendingInvite(ctx context.Context, userID string) (*models.Invite, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgxlib.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if user.PendingInviteCode == nil {
		return nil, ErrNotFound
	}

	invite, err := s.invRepo.GetByCode(ctx, *user.PendingInviteCode)
	if err != nil {
		if errors.Is(err, pgxlib.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return invite, nil
}

// SetCoupleTitle updates the couple's display title. A blank title clears it.
func (s *InviteService) SetCoupleTitle(ctx context.Context, coupleID string, title *string) error {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			title = nil
		} else {
			title = &trimmed
		}
	}
	return s.cplRepo.UpdateTitle(ctx, coupleID, title)
}

// GetCouple retrieves a couple by id
func (s *InviteService) GetCouple(ctx context.Context, coupleID string) (*models.Couple, error) {
	couple, err := s.cplRepo.GetByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, pgxlib.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return couple, nil
}
