package event

import (
	"fmt"

	"github.com/renohub/renohub/pkg/models"
)

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	ChatMessage = "chat.message"
	ChatMention = "chat.mention"
)

// ChannelTopic is the per-channel destination all messages of a channel fan
// out to, AI replies included.
func ChannelTopic(channelID int64) string {
	return fmt.Sprintf("chat/channel/%d", channelID)
}

// MentionTopic is the per-user destination mention notifications fan out to.
func MentionTopic(userID int64) string {
	return fmt.Sprintf("chat/mention/%d", userID)
}

// ============================================================================
// Chat Events
// ============================================================================

// ChatMessageEvent is published to the channel topic for every saved message.
// The human message is always published synchronously on the send path; an AI
// reply is published later from the orchestrator's background task.
type ChatMessageEvent struct {
	ChannelID int64                  `json:"channelId"`
	Message   models.OutgoingMessage `json:"message"`
}

func (e ChatMessageEvent) EventName() string  { return ChatMessage }
func (e ChatMessageEvent) EventTopic() string { return ChannelTopic(e.ChannelID) }

// ChatMentionEvent is published once per distinct mentioned user of a saved
// message, independent of AI completion.
type ChatMentionEvent struct {
	UserID  int64                  `json:"userId"`
	Mention models.OutgoingMention `json:"mention"`
}

func (e ChatMentionEvent) EventName() string  { return ChatMention }
func (e ChatMentionEvent) EventTopic() string { return MentionTopic(e.UserID) }
