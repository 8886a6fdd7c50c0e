// Channel and membership management
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrChannelNotFound     = errors.New("chat channel not found")
	ErrChannelUnauthorised = errors.New("sender is not a member of the channel")
	ErrRenovationNotFound  = errors.New("renovation not found")
	ErrInvalidChannelName  = errors.New("invalid channel name")
	ErrNotRenovationMember = errors.New("user does not belong to the renovation")
)

// MaxChannelNameLength is the channel name limit in runes.
const MaxChannelNameLength = 64

// AiChannelName is the reserved per-user assistant channel name.
const AiChannelName = "Reno Assistant"

// ChannelService manages channels and their member sets.
type ChannelService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(gdb *gorm.DB) *ChannelService {
	return &ChannelService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// validateChannelName allows letters, digits, spaces and -_.' up to 64 runes.
func validateChannelName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelName)
	}
	runes := []rune(trimmed)
	if len(runes) > MaxChannelNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidChannelName, MaxChannelNameLength)
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' || r == '\'' {
			continue
		}
		return fmt.Errorf("%w: character %q not allowed", ErrInvalidChannelName, r)
	}
	return nil
}

// CreateChannel creates a channel in a renovation. The creator becomes the
// first member.
func (s *ChannelService) CreateChannel(renovationID, creatorID int64, name string) (*db.Channel, error) {
	if err := validateChannelName(name); err != nil {
		return nil, err
	}

	var renovation db.Renovation
	if err := s.db.First(&renovation, "id = ?", renovationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRenovationNotFound
		}
		return nil, err
	}

	isMember, err := s.IsRenovationMember(renovationID, creatorID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotRenovationMember
	}

	channel := &db.Channel{
		Name:         strings.TrimSpace(name),
		RenovationID: renovationID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(channel).Error; err != nil {
			return err
		}
		return tx.Model(channel).Association("Members").Append(&db.User{ID: creatorID})
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return channel, nil
}

// GetChannel retrieves a channel by ID.
func (s *ChannelService) GetChannel(id int64) (*db.Channel, error) {
	var channel db.Channel
	if err := s.db.First(&channel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// ListChannels lists the channels of a renovation the user is a member of.
// The reserved AI channels of other users are never listed.
func (s *ChannelService) ListChannels(renovationID, userID int64) ([]db.Channel, error) {
	var channels []db.Channel
	err := s.db.
		Joins("JOIN channel_members cm ON cm.channel_id = channels.id AND cm.user_id = ?", userID).
		Where("channels.renovation_id = ?", renovationID).
		Order("channels.id ASC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// AddMember adds a renovation member to a channel. Adding twice is a no-op.
func (s *ChannelService) AddMember(channelID, userID int64) error {
	channel, err := s.GetChannel(channelID)
	if err != nil {
		return err
	}

	isMember, err := s.IsRenovationMember(channel.RenovationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotRenovationMember
	}

	already, err := s.IsChannelMember(channelID, userID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	return s.db.Model(channel).Association("Members").Append(&db.User{ID: userID})
}

// RemoveMember removes a user from a channel's member set.
func (s *ChannelService) RemoveMember(channelID, userID int64) error {
	channel, err := s.GetChannel(channelID)
	if err != nil {
		return err
	}
	return s.db.Model(channel).Association("Members").Delete(&db.User{ID: userID})
}

// IsChannelMember reports whether user belongs to the channel's member set.
// Membership is a snapshot read at call time; concurrent changes mid-send are
// not reconciled.
func (s *ChannelService) IsChannelMember(channelID, userID int64) (bool, error) {
	var count int64
	err := s.db.Table("channel_members").
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsRenovationMember reports whether user is the renovation's owner or one of
// its members.
func (s *ChannelService) IsRenovationMember(renovationID, userID int64) (bool, error) {
	var count int64
	err := s.db.Model(&db.Renovation{}).
		Where("id = ? AND owner_id = ?", renovationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = s.db.Table("renovation_members").
		Where("renovation_id = ? AND user_id = ?", renovationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureAiChannel returns the user's reserved assistant channel for a
// renovation, creating it (with the user and the assistant as members) on
// first use.
func (s *ChannelService) EnsureAiChannel(renovationID, userID, assistantID int64) (*db.Channel, error) {
	var channel db.Channel
	err := s.db.
		Where("renovation_id = ? AND is_ai_channel = ? AND ai_owner_id = ?", renovationID, true, userID).
		First(&channel).Error
	if err == nil {
		return &channel, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	isMember, err := s.IsRenovationMember(renovationID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotRenovationMember
	}

	channel = db.Channel{
		Name:         AiChannelName,
		RenovationID: renovationID,
		IsAiChannel:  true,
		AiOwnerID:    &userID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&channel).Error; err != nil {
			return err
		}
		return tx.Model(&channel).Association("Members").
			Append(&db.User{ID: userID}, &db.User{ID: assistantID})
	})
	if err != nil {
		return nil, fmt.Errorf("create ai channel: %w", err)
	}

	s.logger.Info("Created reserved AI channel", "renovationID", renovationID, "userID", userID)
	return &channel, nil
}
