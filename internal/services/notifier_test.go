package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pair-collection-backend/internal/models"
)

func strptr(s string) *string { return &s }

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", domainOf("https://example.com/path"))
	assert.Equal(t, "example.com", domainOf("https://www.example.com"))
	assert.Equal(t, "", domainOf("not a url"))
	assert.Equal(t, "", domainOf(""))
}

func TestComposeNewItem(t *testing.T) {
	n := &Notifier{}
	actor := &models.User{ID: "u1", DisplayName: strptr("Ana")}
	item := &models.Item{ID: "i1", URL: "https://www.blog.example.org/post", CreatedBy: "u1"}

	title, body := n.compose(pushEvent{kind: pushItemCreated, item: item}, actor)
	assert.Equal(t, "blog.example.org", title)
	assert.Equal(t, "Ana added a new link", body)
}

func TestComposeTitlePreferred(t *testing.T) {
	n := &Notifier{}
	actor := &models.User{ID: "u1"}
	item := &models.Item{ID: "i1", URL: "https://example.com", Title: strptr("Weekend trip"), CreatedBy: "u1"}

	title, body := n.compose(pushEvent{kind: pushItemCreated, item: item}, actor)
	assert.Equal(t, "Weekend trip", title)
	assert.Equal(t, "Your partner added a new link", body)
}

func TestComposeStatusAndComment(t *testing.T) {
	n := &Notifier{}
	actor := &models.User{ID: "u1", DisplayName: strptr("Ben")}
	item := &models.Item{ID: "i1", URL: "https://example.com", Status: models.ItemStatusDone, CreatedBy: "u1"}

	_, body := n.compose(pushEvent{kind: pushItemStatus, item: item}, actor)
	assert.Equal(t, "Ben marked a link as done", body)

	comment := &models.Comment{ID: "c1", ItemID: "i1", AuthorID: "u1", Text: "let's go"}
	_, body = n.compose(pushEvent{kind: pushCommentAdded, item: item, comment: comment}, actor)
	assert.Equal(t, "Ben: let's go", body)
}

func TestAllowedRespectsPreferences(t *testing.T) {
	n := &Notifier{}
	partner := &models.User{NotifyNewItems: true, NotifyStatus: false, NotifyComments: true}

	assert.True(t, n.allowed(partner, pushItemCreated))
	assert.False(t, n.allowed(partner, pushItemStatus))
	assert.True(t, n.allowed(partner, pushCommentAdded))
	assert.False(t, n.allowed(partner, "unknown"))
}
