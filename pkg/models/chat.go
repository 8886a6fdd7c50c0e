// API types for the chat surface
package models

import (
	"time"

	"github.com/renohub/renohub/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Message instead of db.Message

type User = db.User
type Channel = db.Channel
type Message = db.Message
type Mention = db.Mention
type Link = db.Link

// ========== Inbound types (client -> server) ==========

// InboundMessage is the send-message request body. Spans are rune offsets
// into Content, half-open [start, end).
type InboundMessage struct {
	Content  string        `json:"content" binding:"required"`
	Mentions []MentionSpec `json:"mentions,omitempty"`
	Links    []LinkSpec    `json:"links,omitempty"`
}

// MentionSpec is a client-declared mention. Invalid specs (out of bounds,
// non-member target, overlapping an earlier accepted span) are dropped
// silently; the message itself still sends.
type MentionSpec struct {
	UserID int64 `json:"userId"`
	Start  int   `json:"start"`
	End    int   `json:"end"`
}

// LinkSpec is a client-declared hyperlink span.
type LinkSpec struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ========== Outgoing types (server -> subscribers) ==========

// PublicUserDetails is the sender summary embedded in outgoing payloads.
type PublicUserDetails struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Image     string `json:"image,omitempty"`
}

// PublicUser builds the outgoing summary of a user row.
func PublicUser(u *db.User) PublicUserDetails {
	if u == nil {
		return PublicUserDetails{}
	}
	return PublicUserDetails{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Image:     u.Image,
	}
}

// OutgoingMessage is the wire form of one message, with fragments recomputed
// at read time.
type OutgoingMessage struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	Fragments []Fragment        `json:"fragments"`
	User      PublicUserDetails `json:"user"`
	Date      time.Time         `json:"date"`
	IsAi      bool              `json:"isAi"`
}

// OutgoingMention is the notification payload published to a mentioned user's
// topic. It summarises the sender, not the full message.
type OutgoingMention struct {
	RenovationID int64             `json:"renovationId"`
	ChannelID    int64             `json:"channelId"`
	Sender       PublicUserDetails `json:"sender"`
	Content      string            `json:"content"`
	Timestamp    time.Time         `json:"timestamp"`
}

// ========== Pagination ==========

// Cursor is a (timestamp, id) pagination boundary. It is derived from the
// first or last message the client has seen, never stored.
type Cursor struct {
	Timestamp time.Time
	MessageID int64
}
