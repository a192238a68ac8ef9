package models

import "time"

// InboxCollectionID is the sentinel collection id for the virtual inbox.
// The inbox has no backing row and no item counter.
const InboxCollectionID = "INBOX"

// Invite statuses
const (
	InviteStatusOpen    = "open"
	InviteStatusClaimed = "claimed"
	InviteStatusExpired = "expired"
)

// Item statuses
const (
	ItemStatusPending = "pending"
	ItemStatusDone    = "done"
)

// Collection deletion modes
const (
	DeleteModeMoveToInbox = "move_to_inbox"
	DeleteModeDeleteAll   = "delete_all"
)

// User represents an identity record supplied by the auth provider
type User struct {
	ID                string    `json:"id"`
	DisplayName       *string   `json:"display_name"`
	Email             *string   `json:"email"`
	PhotoURL          *string   `json:"photo_url"`
	CoupleID          *string   `json:"couple_id"`
	PendingInviteCode *string   `json:"pending_invite_code"`
	NotifyNewItems    bool      `json:"notify_new_items"`
	NotifyStatus      bool      `json:"notify_status_changes"`
	NotifyComments    bool      `json:"notify_comments"`
	CreatedAt         time.Time `json:"created_at"`
}

// Invite is a short-lived pairing token keyed by its 6-digit code
type Invite struct {
	Code      string    `json:"code"`
	CreatorID string    `json:"creator_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	ClaimedBy *string   `json:"claimed_by,omitempty"`
	CoupleID  *string   `json:"couple_id,omitempty"`
}

// Couple links exactly two users; membership is immutable once created
type Couple struct {
	ID         string    `json:"id"`
	MemberA    string    `json:"member_a"` // invite creator
	MemberB    string    `json:"member_b"` // joiner
	InviteCode string    `json:"invite_code"`
	Title      *string   `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Members returns the ordered member list, creator first.
func (c *Couple) Members() []string {
	return []string{c.MemberA, c.MemberB}
}

// Partner returns the other member of the couple, or "" if userID is not a member.
func (c *Couple) Partner(userID string) string {
	switch userID {
	case c.MemberA:
		return c.MemberB
	case c.MemberB:
		return c.MemberA
	}
	return ""
}

// Collection is a named, emoji-tagged grouping of items owned by a couple.
// ItemCount is denormalized and must equal the number of items whose
// CollectionID matches this collection's id.
type Collection struct {
	ID        string    `json:"id"`
	CoupleID  string    `json:"couple_id"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	CreatedBy string    `json:"created_by"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a saved link. CollectionID is either a real collection id or
// InboxCollectionID.
type Item struct {
	ID           string    `json:"id"`
	CoupleID     string    `json:"couple_id"`
	CollectionID string    `json:"collection_id"`
	URL          string    `json:"url"`
	Title        *string   `json:"title"`
	Note         *string   `json:"note"`
	Status       string    `json:"status"`
	CreatedBy    string    `json:"created_by"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a remark attached to an item
type Comment struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceToken is a push delivery address registered by a user's device
type DeviceToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}
