// Cursor-based history pagination
package service

import (
	"sort"
	"time"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/models"
	"gorm.io/gorm"
)

// Message windows are totally ordered by (sent_at, id): timestamps are not
// unique at store resolution, the autoincrement id breaks ties. Every query
// below treats an empty channel or a dangling cursor as a valid empty result,
// never an error - the predicates compare values, so a cursor whose message
// was deleted still selects the right window.

func (s *ChatService) historyQuery(channelID int64) *gorm.DB {
	return s.db.
		Preload("Sender").
		Preload("Mentions").
		Preload("Mentions.User").
		Preload("Links").
		Where("channel_id = ?", channelID)
}

// Latest returns the newest page of a channel, newest first.
func (s *ChatService) Latest(channelID int64) ([]db.Message, error) {
	var msgs []db.Message
	err := s.historyQuery(channelID).
		Order("sent_at DESC, id DESC").
		Limit(s.historyPageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Before returns the page strictly older than the cursor, newest first.
func (s *ChatService) Before(channelID int64, cursor models.Cursor) ([]db.Message, error) {
	var msgs []db.Message
	err := s.historyQuery(channelID).
		Where("sent_at < ? OR (sent_at = ? AND id < ?)", cursor.Timestamp, cursor.Timestamp, cursor.MessageID).
		Order("sent_at DESC, id DESC").
		Limit(s.historyPageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// After returns the page strictly newer than the cursor, oldest first. The id
// comparison stays strict even on equal timestamps so the boundary message is
// never returned again.
func (s *ChatService) After(channelID int64, cursor models.Cursor) ([]db.Message, error) {
	var msgs []db.Message
	err := s.historyQuery(channelID).
		Where("sent_at > ? OR (sent_at = ? AND id > ?)", cursor.Timestamp, cursor.Timestamp, cursor.MessageID).
		Order("sent_at ASC, id ASC").
		Limit(s.historyPageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Around returns a fixed-size window straddling a target timestamp, sorted
// ascending for display: aroundBefore messages at-or-before the timestamp
// plus aroundAfter messages strictly after it. Used to jump to a mention's
// context; callers needing more page from there.
func (s *ChatService) Around(channelID int64, ts time.Time) ([]db.Message, error) {
	var before []db.Message
	err := s.historyQuery(channelID).
		Where("sent_at <= ?", ts).
		Order("sent_at DESC, id DESC").
		Limit(s.aroundBefore).
		Find(&before).Error
	if err != nil {
		return nil, err
	}

	var after []db.Message
	err = s.historyQuery(channelID).
		Where("sent_at > ?", ts).
		Order("sent_at ASC, id ASC").
		Limit(s.aroundAfter).
		Find(&after).Error
	if err != nil {
		return nil, err
	}

	window := append(before, after...)
	sort.Slice(window, func(i, j int) bool {
		if !window[i].SentAt.Equal(window[j].SentAt) {
			return window[i].SentAt.Before(window[j].SentAt)
		}
		return window[i].ID < window[j].ID
	})
	return window, nil
}

// RecentForContext returns the most recent limit messages oldest-first,
// excluding the assistant's own messages and messages from users who opted
// out of the assistant. This is the window the orchestrator embeds when the
// provider asks for chat context.
func (s *ChatService) RecentForContext(channelID int64, limit int) ([]db.Message, error) {
	var msgs []db.Message
	err := s.db.
		Preload("Sender").
		Joins("JOIN users ON users.id = messages.sender_id").
		Where("messages.channel_id = ? AND users.is_assistant = ? AND users.ai_opt_out = ?", channelID, false, false).
		Order("messages.sent_at DESC, messages.id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// Oldest first for the prompt.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
