package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/repository"
)

// The tests below need a real PostgreSQL instance; they skip unless
// DATABASE_URL is set externally.

type fixture struct {
	pool    *pgxpool.Pool
	users   *UserService
	invites *InviteService
	ledger  *LedgerService
}

func setupDB(t *testing.T) *fixture {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pool, err := repository.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, repository.Migrate(ctx, pool))

	_, err = pool.Exec(ctx,
		`TRUNCATE device_tokens, comments, items, collections, invites, users, couples CASCADE`)
	require.NoError(t, err)

	txRunner := repository.NewTxRunner(pool)
	userRepo := repository.NewUserRepository(pool)
	inviteRepo := repository.NewInviteRepository(pool)
	coupleRepo := repository.NewCoupleRepository(pool)
	collectionRepo := repository.NewCollectionRepository(pool)
	itemRepo := repository.NewItemRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	tokenRepo := repository.NewDeviceTokenRepository(pool)

	return &fixture{
		pool:    pool,
		users:   NewUserService(userRepo, tokenRepo, "test-secret"),
		invites: NewInviteService(txRunner, userRepo, inviteRepo, coupleRepo, nil),
		ledger:  NewLedgerService(txRunner, collectionRepo, itemRepo, commentRepo, coupleRepo, nil, nil),
	}
}

func (f *fixture) newUser(t *testing.T, uid string) *models.User {
	t.Helper()
	name := "user " + uid
	user, err := f.users.EnsureUser(context.Background(), Identity{UID: uid, DisplayName: &name})
	require.NoError(t, err)
	return user
}

func (f *fixture) pair(t *testing.T, creatorID, joinerID string) *models.Couple {
	t.Helper()
	ctx := context.Background()
	invite, err := f.invites.CreateInvite(ctx, creatorID)
	require.NoError(t, err)
	couple, err := f.invites.RedeemInvite(ctx, joinerID, invite.Code)
	require.NoError(t, err)
	return couple
}

// assertCounter checks the denormalized item_count against a live count
func (f *fixture) assertCounter(t *testing.T, coupleID, collectionID string, want int) {
	t.Helper()
	ctx := context.Background()

	var stored, live int
	err := f.pool.QueryRow(ctx,
		`SELECT item_count FROM collections WHERE couple_id = $1 AND id = $2`,
		coupleID, collectionID).Scan(&stored)
	require.NoError(t, err)
	err = f.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE couple_id = $1 AND collection_id = $2`,
		coupleID, collectionID).Scan(&live)
	require.NoError(t, err)

	assert.Equal(t, want, stored, "stored item_count")
	assert.Equal(t, want, live, "live item count")
}

func TestInvitePairingFlow(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, invite.Code, 6)
	assert.Equal(t, models.InviteStatusOpen, invite.Status)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), invite.ExpiresAt, time.Minute)

	creator, err := f.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, creator.PendingInviteCode)
	assert.Equal(t, invite.Code, *creator.PendingInviteCode)

	couple, err := f.invites.RedeemInvite(ctx, "u2", invite.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, couple.Members())
	assert.Equal(t, invite.Code, couple.InviteCode)

	// both user records converge on the couple in the same transaction
	for _, uid := range []string{"u1", "u2"} {
		user, err := f.users.GetUser(ctx, uid)
		require.NoError(t, err)
		require.NotNil(t, user.CoupleID)
		assert.Equal(t, couple.ID, *user.CoupleID)
		assert.Nil(t, user.PendingInviteCode)
	}

	_, err = f.invites.PendingInvite(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound) // pending code cleared

	var status, claimedBy string
	err = f.pool.QueryRow(ctx,
		`SELECT status, claimed_by FROM invites WHERE code = $1`, invite.Code).
		Scan(&status, &claimedBy)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusClaimed, status)
	assert.Equal(t, "u2", claimedBy)
}

func TestCreateInviteAlreadyPaired(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	f.pair(t, "u1", "u2")

	var before int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invites`).Scan(&before))

	_, err := f.invites.CreateInvite(ctx, "u1")
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	var after int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invites`).Scan(&after))
	assert.Equal(t, before, after, "rejected create must leave no invite behind")
}

func TestRedeemOwnCode(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)

	_, err = f.invites.RedeemInvite(ctx, "u1", invite.Code)
	assert.ErrorIs(t, err, ErrOwnCode)
}

func TestRedeemUnknownOrMalformedCode(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")

	_, err := f.invites.RedeemInvite(ctx, "u1", "000000")
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = f.invites.RedeemInvite(ctx, "u1", "12-34")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeemExpiredCode(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)

	_, err = f.pool.Exec(ctx,
		`UPDATE invites SET expires_at = now() - interval '1 minute' WHERE code = $1`, invite.Code)
	require.NoError(t, err)

	_, err = f.invites.RedeemInvite(ctx, "u2", invite.Code)
	assert.ErrorIs(t, err, ErrCodeExpired)

	// lazy expiry materialized by the failed attempt
	var status string
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT status FROM invites WHERE code = $1`, invite.Code).Scan(&status))
	assert.Equal(t, models.InviteStatusExpired, status)

	creator, err := f.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, creator.PendingInviteCode)

	// second attempt rejects on the terminal status with no state change
	_, err = f.invites.RedeemInvite(ctx, "u2", invite.Code)
	assert.ErrorIs(t, err, ErrCodeUsed)
}

func TestRedeemJoinerAlreadyPaired(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	f.newUser(t, "u3")
	f.pair(t, "u2", "u3")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)

	_, err = f.invites.RedeemInvite(ctx, "u2", invite.Code)
	assert.ErrorIs(t, err, ErrAlreadyPaired)
}

func TestRedeemCreatorPairedElsewhere(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	f.newUser(t, "u3")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)

	// the creator pairs through someone else's code before redemption
	f.pair(t, "u3", "u1")

	_, err = f.invites.RedeemInvite(ctx, "u2", invite.Code)
	assert.ErrorIs(t, err, ErrCreatorPaired)

	// the stale invite is retired rather than producing a second couple
	var status string
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT status FROM invites WHERE code = $1`, invite.Code).Scan(&status))
	assert.Equal(t, models.InviteStatusExpired, status)
}

func TestCounterInvariant(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	trips, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "Trips", "🧳")
	require.NoError(t, err)
	f.assertCounter(t, couple.ID, trips.ID, 0)

	item, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
		URL:          "https://example.com/trip",
		CollectionID: trips.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, item.Status)
	f.assertCounter(t, couple.ID, trips.ID, 1)

	// move to the virtual inbox; it has no counter of its own
	require.NoError(t, f.ledger.MoveItem(ctx, couple.ID, item.ID, trips.ID, models.InboxCollectionID))
	f.assertCounter(t, couple.ID, trips.ID, 0)

	// delete from the inbox touches no counter
	require.NoError(t, f.ledger.DeleteItem(ctx, couple.ID, item.ID, models.InboxCollectionID))
	f.assertCounter(t, couple.ID, trips.ID, 0)
}

func TestMoveNoOpAndRoundTrip(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	a, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "A", "")
	require.NoError(t, err)
	b, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "B", "")
	require.NoError(t, err)

	item, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
		URL:          "https://example.com",
		CollectionID: a.ID,
	})
	require.NoError(t, err)

	// identical source and destination changes nothing
	require.NoError(t, f.ledger.MoveItem(ctx, couple.ID, item.ID, a.ID, a.ID))
	f.assertCounter(t, couple.ID, a.ID, 1)
	f.assertCounter(t, couple.ID, b.ID, 0)

	// round-trip restores the initial state
	require.NoError(t, f.ledger.MoveItem(ctx, couple.ID, item.ID, a.ID, b.ID))
	require.NoError(t, f.ledger.MoveItem(ctx, couple.ID, item.ID, b.ID, a.ID))
	f.assertCounter(t, couple.ID, a.ID, 1)
	f.assertCounter(t, couple.ID, b.ID, 0)

	items, err := f.ledger.ListItems(ctx, couple.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].CollectionID)
}

func TestDeleteCollectionMoveToInbox(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	trips, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "Trips", "🧳")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
			URL:          "https://example.com/trip",
			CollectionID: trips.ID,
		})
		require.NoError(t, err)
	}

	moved, err := f.ledger.DeleteCollection(ctx, couple.ID, trips.ID, models.DeleteModeMoveToInbox)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	inbox, err := f.ledger.ListItems(ctx, couple.ID, models.InboxCollectionID)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	var count int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM collections WHERE id = $1`, trips.ID).Scan(&count))
	assert.Zero(t, count, "collection row must be gone")
}

func TestDeleteCollectionDeleteAll(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	trips, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "Trips", "🧳")
	require.NoError(t, err)
	item, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
		URL:          "https://example.com/trip",
		CollectionID: trips.ID,
	})
	require.NoError(t, err)
	_, err = f.ledger.AddComment(ctx, couple.ID, item.ID, "u2", "looks great")
	require.NoError(t, err)

	deleted, err := f.ledger.DeleteCollection(ctx, couple.ID, trips.ID, models.DeleteModeDeleteAll)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	var items, comments int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&items))
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments`).Scan(&comments))
	assert.Zero(t, items)
	assert.Zero(t, comments, "comments go with their items")

	_, err = f.ledger.DeleteCollection(ctx, couple.ID, trips.ID, "bad-mode")
	assert.ErrorIs(t, err, ErrBadMode)
}

func TestComments(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	item, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{URL: "https://example.com"})
	require.NoError(t, err)

	comment, err := f.ledger.AddComment(ctx, couple.ID, item.ID, "u2", "  nice find  ")
	require.NoError(t, err)
	assert.Equal(t, "nice find", comment.Text)

	got, err := f.ledger.ListItems(ctx, couple.ID, models.InboxCollectionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].CommentCount)

	comments, err := f.ledger.ListComments(ctx, couple.ID, item.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.NoError(t, f.ledger.DeleteComment(ctx, couple.ID, item.ID, comment.ID))
	got, err = f.ledger.ListItems(ctx, couple.ID, models.InboxCollectionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].CommentCount)
}

func TestToggleItemStatus(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	item, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{URL: "https://example.com"})
	require.NoError(t, err)

	updated, err := f.ledger.ToggleItemStatus(ctx, couple.ID, item.ID, models.ItemStatusDone)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusDone, updated.Status)

	_, err = f.ledger.ToggleItemStatus(ctx, couple.ID, item.ID, "archived")
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestRepairCollectionCount(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	trips, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "Trips", "🧳")
	require.NoError(t, err)
	_, err = f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
		URL:          "https://example.com",
		CollectionID: trips.ID,
	})
	require.NoError(t, err)

	// simulate drift
	_, err = f.pool.Exec(ctx,
		`UPDATE collections SET item_count = 42 WHERE id = $1`, trips.ID)
	require.NoError(t, err)

	count, err := f.ledger.RepairCollectionCount(ctx, couple.ID, trips.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	f.assertCounter(t, couple.ID, trips.ID, 1)
}

func TestAddItemValidation(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	_, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{URL: "   "})
	assert.ErrorIs(t, err, ErrURLRequired)

	_, err = f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
		URL:          "https://example.com",
		CollectionID: "no-such-collection",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.CreateCollection(ctx, couple.ID, "u1", "  ", "")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestConcurrentAddItems(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	trips, err := f.ledger.CreateCollection(ctx, couple.ID, "u1", "Trips", "🧳")
	require.NoError(t, err)

	// concurrent writers contend on the same counter row; every increment
	// must land through the serializable retry loop
	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AddItem(ctx, couple.ID, "u1", AddItemParams{
				URL:          "https://example.com/trip",
				CollectionID: trips.ID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	f.assertCounter(t, couple.ID, trips.ID, writers)
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	f.newUser(t, "u3")

	invite, err := f.invites.CreateInvite(ctx, "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, uid := range []string{"u2", "u3"} {
		wg.Add(1)
		go func(joinerID string) {
			defer wg.Done()
			_, err := f.invites.RedeemInvite(ctx, joinerID, invite.Code)
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		lost++
		assert.ErrorIs(t, err, ErrCodeUsed)
	}
	assert.Equal(t, 1, won, "exactly one joiner claims the code")
	assert.Equal(t, 1, lost)

	var couples int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM couples`).Scan(&couples))
	assert.Equal(t, 1, couples)
}

func TestInviteCodeCollisionDetection(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")

	invites := repository.NewInviteRepository(f.pool)
	now := time.Now()
	first := &models.Invite{
		Code:      "314159",
		CreatorID: "u1",
		Status:    models.InviteStatusOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, invites.Create(ctx, first))

	exists, err := invites.Exists(ctx, "314159")
	require.NoError(t, err)
	assert.True(t, exists)

	second := &models.Invite{
		Code:      "314159",
		CreatorID: "u2",
		Status:    models.InviteStatusOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	err = invites.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err), "duplicate code must surface as a unique violation")

	// a terminal code still occupies its slot; generation draws a fresh one
	require.NoError(t, invites.SetStatus(ctx, "314159", models.InviteStatusClaimed))
	exists, err = invites.Exists(ctx, "314159")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpdateCoupleTitle(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")
	f.newUser(t, "u2")
	couple := f.pair(t, "u1", "u2")

	title := "  The Two of Us  "
	require.NoError(t, f.invites.SetCoupleTitle(ctx, couple.ID, &title))

	got, err := f.invites.GetCouple(ctx, couple.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Title)
	assert.Equal(t, "The Two of Us", *got.Title)

	blank := "   "
	require.NoError(t, f.invites.SetCoupleTitle(ctx, couple.ID, &blank))
	got, err = f.invites.GetCouple(ctx, couple.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Title)
}

func TestDeviceTokens(t *testing.T) {
	f := setupDB(t)
	ctx := context.Background()
	f.newUser(t, "u1")

	require.NoError(t, f.users.RegisterDeviceToken(ctx, "u1", "tok-1", "ios"))
	require.NoError(t, f.users.RegisterDeviceToken(ctx, "u1", "tok-1", "ios")) // idempotent

	var count int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM device_tokens WHERE user_id = 'u1'`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, f.users.RemoveDeviceToken(ctx, "u1", "tok-1"))
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM device_tokens WHERE user_id = 'u1'`).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, f.users.RegisterDeviceToken(ctx, "u1", "", "ios"), ErrTokenRequired)
}
