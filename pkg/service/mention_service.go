// Mention notifications and seen-state transitions
package service

import (
	"log/slog"
	"time"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/models"
	"github.com/renohub/renohub/pkg/utils"
	"gorm.io/gorm"
)

// MentionService builds outgoing mention notifications and owns the only
// mutation mentions ever see after creation: the false -> true seen flip.
type MentionService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewMentionService creates a new mention service.
func NewMentionService(gdb *gorm.DB) *MentionService {
	return &MentionService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// RecipientIDs returns the distinct mentioned-user ids of a saved message, so
// a user mentioned twice in one message gets exactly one notification. The
// sender never notifies themselves.
func (s *MentionService) RecipientIDs(msg *db.Message) []int64 {
	seen := make(map[int64]struct{}, len(msg.Mentions))
	ids := make([]int64, 0, len(msg.Mentions))
	for _, m := range msg.Mentions {
		if m.UserID == msg.SenderID {
			continue
		}
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}

// BuildOutgoingMention summarises a send for the mentioned user's topic. It
// carries sender identity and content, not the full message envelope.
func (s *MentionService) BuildOutgoingMention(renovationID, channelID int64, sender *db.User, content string, sentAt time.Time) models.OutgoingMention {
	return models.OutgoingMention{
		RenovationID: renovationID,
		ChannelID:    channelID,
		Sender:       models.PublicUser(sender),
		Content:      content,
		Timestamp:    sentAt,
	}
}

// MarkMentionsAsSeen flips every unseen mention of one user in one channel to
// seen. Idempotent: a second call finds nothing unseen and changes nothing.
func (s *MentionService) MarkMentionsAsSeen(userID, channelID int64) error {
	sub := s.db.Model(&db.Message{}).Select("id").Where("channel_id = ?", channelID)
	return s.db.Model(&db.Mention{}).
		Where("user_id = ? AND seen = ? AND message_id IN (?)", userID, false, sub).
		Update("seen", true).Error
}

// UnseenCount returns how many unseen mentions a user has in a channel.
func (s *MentionService) UnseenCount(userID, channelID int64) (int64, error) {
	sub := s.db.Model(&db.Message{}).Select("id").Where("channel_id = ?", channelID)
	var count int64
	err := s.db.Model(&db.Mention{}).
		Where("user_id = ? AND seen = ? AND message_id IN (?)", userID, false, sub).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
