// Database models for chat messages, mentions and links
package db

import "time"

// Message is one chat message. Rows are immutable after creation except for
// the Seen flag on owned mentions. The autoincrement ID doubles as the
// pagination tiebreak: SentAt is not unique at store resolution, (SentAt, ID)
// is.
type Message struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ChannelID int64     `json:"channel_id" gorm:"index:idx_messages_channel_sent;not null"`
	SenderID  int64     `json:"sender_id" gorm:"index;not null"`
	Sender    *User     `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	SentAt    time.Time `json:"sent_at" gorm:"index:idx_messages_channel_sent;not null"`
	IsAi      bool      `json:"is_ai" gorm:"default:false"`

	Mentions []Mention `json:"mentions,omitempty" gorm:"foreignKey:MessageID"`
	Links    []Link    `json:"links,omitempty" gorm:"foreignKey:MessageID"`
}

func (Message) TableName() string {
	return "messages"
}

// Mention marks a [StartPosition, EndPosition) rune span of the owning
// message's content as referring to a user. Spans are validated non-overlapping
// and in-bounds at message creation; storage does not re-check. Seen only ever
// goes false -> true.
type Mention struct {
	ID            int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID     int64 `json:"message_id" gorm:"index;not null"`
	UserID        int64 `json:"user_id" gorm:"index;not null"`
	User          *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	StartPosition int   `json:"start_position" gorm:"not null"`
	EndPosition   int   `json:"end_position" gorm:"not null"`
	Seen          bool  `json:"seen" gorm:"default:false"`
}

func (Mention) TableName() string {
	return "mentions"
}

// Link marks a span of the owning message's content as a hyperlink. Same span
// invariants as Mention.
type Link struct {
	ID            int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID     int64  `json:"message_id" gorm:"index;not null"`
	Text          string `json:"text" gorm:"size:255"`
	URL           string `json:"url" gorm:"size:2048;not null"`
	StartPosition int    `json:"start_position" gorm:"not null"`
	EndPosition   int    `json:"end_position" gorm:"not null"`
}

func (Link) TableName() string {
	return "links"
}
