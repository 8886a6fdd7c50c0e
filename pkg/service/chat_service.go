// Chat service - message ingestion and read-side assembly
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/models"
	"github.com/renohub/renohub/pkg/utils"
	"github.com/rivo/uniseg"
	"gorm.io/gorm"
)

var (
	ErrMessageInvalid = errors.New("invalid chat message")
	ErrUserNotFound   = errors.New("user not found")
)

// MaxMessageGraphemes is the content limit in user-perceived characters
// (grapheme clusters, not code units), so a multi-codepoint emoji counts once.
const MaxMessageGraphemes = 2048

// ChatService handles message creation and the read-side message assembly.
// History queries live in history.go.
type ChatService struct {
	db             *gorm.DB
	channelService *ChannelService
	logger         *slog.Logger

	historyPageSize int
	aroundBefore    int
	aroundAfter     int
}

// NewChatService creates a new chat service. The window sizes come from
// configuration so tests can pin them down.
func NewChatService(gdb *gorm.DB, channelService *ChannelService, historyPageSize, aroundBefore, aroundAfter int) *ChatService {
	return &ChatService{
		db:              gdb,
		channelService:  channelService,
		logger:          utils.GetLogger(),
		historyPageSize: historyPageSize,
		aroundBefore:    aroundBefore,
		aroundAfter:     aroundAfter,
	}
}

// acceptedSpan tracks spans already claimed by an earlier mention or link
// spec during validation.
type acceptedSpan struct {
	start, end int
}

func overlaps(a acceptedSpan, start, end int) bool {
	return start < a.end && a.start < end
}

// SaveMessage validates and persists one message together with its surviving
// mention and link spans, atomically.
//
// Rejections (nothing persisted): unknown channel, sender not a channel
// member, empty content, content over the grapheme limit. Degradations
// (message still sends): individual mention/link specs are dropped when their
// span is out of bounds, when the mentioned user is not part of the channel's
// renovation, or when the span overlaps a span accepted earlier in input
// order - input order wins, not span position.
func (s *ChatService) SaveMessage(channelID, senderID int64, content string, mentions []models.MentionSpec, links []models.LinkSpec) (*db.Message, error) {
	channel, err := s.channelService.GetChannel(channelID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.channelService.IsChannelMember(channelID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrChannelUnauthorised
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMessageInvalid)
	}
	if n := uniseg.GraphemeClusterCount(content); n > MaxMessageGraphemes {
		return nil, fmt.Errorf("%w: %d characters exceeds the %d limit", ErrMessageInvalid, n, MaxMessageGraphemes)
	}

	contentLen := len([]rune(content))
	accepted := make([]acceptedSpan, 0, len(mentions)+len(links))

	spanOK := func(start, end int) bool {
		if start < 0 || end > contentLen || start >= end {
			return false
		}
		for _, a := range accepted {
			if overlaps(a, start, end) {
				return false
			}
		}
		return true
	}

	var sender db.User
	if err := s.db.First(&sender, "id = ?", senderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	msg := &db.Message{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		SentAt:    time.Now(),
		IsAi:      sender.IsAssistant,
	}

	for _, spec := range mentions {
		if !spanOK(spec.Start, spec.End) {
			s.logger.Debug("Dropping mention spec with invalid span",
				"channelID", channelID, "userID", spec.UserID, "start", spec.Start, "end", spec.End)
			continue
		}
		inRenovation, err := s.channelService.IsRenovationMember(channel.RenovationID, spec.UserID)
		if err != nil {
			return nil, err
		}
		if !inRenovation && !s.isAssistant(spec.UserID) {
			s.logger.Debug("Dropping mention of user outside the renovation",
				"channelID", channelID, "userID", spec.UserID)
			continue
		}
		accepted = append(accepted, acceptedSpan{spec.Start, spec.End})
		msg.Mentions = append(msg.Mentions, db.Mention{
			UserID:        spec.UserID,
			StartPosition: spec.Start,
			EndPosition:   spec.End,
		})
	}

	for _, spec := range links {
		if !spanOK(spec.Start, spec.End) || strings.TrimSpace(spec.URL) == "" {
			s.logger.Debug("Dropping link spec with invalid span or URL",
				"channelID", channelID, "url", spec.URL, "start", spec.Start, "end", spec.End)
			continue
		}
		accepted = append(accepted, acceptedSpan{spec.Start, spec.End})
		msg.Links = append(msg.Links, db.Link{
			Text:          spec.Text,
			URL:           spec.URL,
			StartPosition: spec.Start,
			EndPosition:   spec.End,
		})
	}

	// Mentions and links persist in the same transaction as the message via
	// gorm's association handling on Create.
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	msg.Sender = &sender
	return msg, nil
}

func (s *ChatService) isAssistant(userID int64) bool {
	var count int64
	if err := s.db.Model(&db.User{}).
		Where("id = ? AND is_assistant = ?", userID, true).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// GetMessage retrieves one message with its sender, mentions and links.
func (s *ChatService) GetMessage(id int64) (*db.Message, error) {
	var msg db.Message
	err := s.db.
		Preload("Sender").
		Preload("Mentions").
		Preload("Mentions.User").
		Preload("Links").
		First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message %d", ErrMessageInvalid, id)
		}
		return nil, err
	}
	return &msg, nil
}

// ToOutgoing converts a persisted message into its wire form, recomputing
// fragments so renamed users and edited links display current values.
func (s *ChatService) ToOutgoing(msg *db.Message) models.OutgoingMessage {
	return models.OutgoingMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		Fragments: ExtractFragments(msg),
		User:      models.PublicUser(msg.Sender),
		Date:      msg.SentAt,
		IsAi:      msg.IsAi,
	}
}

// ToOutgoingList converts a message window for the history endpoints.
func (s *ChatService) ToOutgoingList(msgs []db.Message) []models.OutgoingMessage {
	out := make([]models.OutgoingMessage, 0, len(msgs))
	for i := range msgs {
		out = append(out, s.ToOutgoing(&msgs[i]))
	}
	return out
}
