package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/renohub/renohub/pkg/event"
	"github.com/renohub/renohub/pkg/models"
	"github.com/renohub/renohub/pkg/service"
)

// UserIDKey is the gin context key the identity middleware stores the caller
// id under.
const UserIDKey = "userID"

// ChatHandler provides HTTP handlers for the chat surface: sending, history
// pagination and mention state.
type ChatHandler struct {
	Chat     *service.ChatService
	Channels *service.ChannelService
	Mentions *service.MentionService
	AI       *service.AiService
	Logger   *slog.Logger
}

func NewChatHandler(chat *service.ChatService, channels *service.ChannelService, mentions *service.MentionService, ai *service.AiService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{Chat: chat, Channels: channels, Mentions: mentions, AI: ai, Logger: logger}
}

// callerID returns the authenticated user id set by the identity middleware.
func callerID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func channelParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	return id, err == nil && id > 0
}

// SendMessage persists a message, broadcasts it to the channel topic, fans
// mention notifications out to per-user topics and, when the assistant is
// invoked, dispatches orchestration in the background. The AI reply never
// delays or fails this response.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}

	var req models.InboundMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	msg, err := h.Chat.SaveMessage(channelID, userID, req.Content, req.Mentions, req.Links)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		case errors.Is(err, service.ErrChannelUnauthorised):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a channel member"})
		case errors.Is(err, service.ErrMessageInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.Logger.Error("Failed to save message", "channelID", channelID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save message"})
		}
		return
	}

	outgoing := h.Chat.ToOutgoing(msg)

	// The human message is published before anything the assistant might
	// reply; this emit is synchronous on the send path.
	event.Emit(event.ChatMessageEvent{ChannelID: channelID, Message: outgoing})

	channel, err := h.Channels.GetChannel(channelID)
	if err != nil {
		h.Logger.Error("Skipping mention and assistant fan-out, channel reload failed",
			"channelID", channelID, "error", err)
	} else {
		h.notifyMentions(channel, msg)
		if h.AI.ShouldTrigger(msg) {
			h.AI.Trigger(channel, msg)
		}
	}

	c.JSON(http.StatusCreated, outgoing)
}

// notifyMentions publishes one notification per distinct mentioned user.
// Mention fan-out is independent of the AI path and must not delay the send
// response.
func (h *ChatHandler) notifyMentions(channel *models.Channel, msg *models.Message) {
	recipients := h.Mentions.RecipientIDs(msg)
	if len(recipients) == 0 {
		return
	}
	mention := h.Mentions.BuildOutgoingMention(channel.RenovationID, channel.ID, msg.Sender, msg.Content, msg.SentAt)
	go func() {
		for _, userID := range recipients {
			event.Emit(event.ChatMentionEvent{UserID: userID, Mention: mention})
		}
	}()
}

// requireMember answers 404 (not 403) for non-members so channel existence is
// not leaked through the history surface.
func (h *ChatHandler) requireMember(c *gin.Context, channelID, userID int64) bool {
	isMember, err := h.Channels.IsChannelMember(channelID, userID)
	if err != nil {
		h.Logger.Error("Membership check failed", "channelID", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Membership check failed"})
		return false
	}
	if !isMember {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return false
	}
	return true
}

// History returns the latest page of a channel.
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}

	msgs, err := h.Chat.Latest(channelID)
	if err != nil {
		h.Logger.Error("Failed to load history", "channelID", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, h.Chat.ToOutgoingList(msgs))
}

// parseCursor reads a (timestamp, id) boundary from query params.
func parseCursor(c *gin.Context, idParam, tsParam string) (models.Cursor, bool) {
	id, err := strconv.ParseInt(c.Query(idParam), 10, 64)
	if err != nil {
		return models.Cursor{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, c.Query(tsParam))
	if err != nil {
		return models.Cursor{}, false
	}
	return models.Cursor{Timestamp: ts, MessageID: id}, true
}

// Previous returns the page strictly older than the supplied cursor.
func (h *ChatHandler) Previous(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}
	cursor, ok := parseCursor(c, "lastMessageId", "lastMessageTimestamp")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	msgs, err := h.Chat.Before(channelID, cursor)
	if err != nil {
		h.Logger.Error("Failed to load previous page", "channelID", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, h.Chat.ToOutgoingList(msgs))
}

// Next returns the page strictly newer than the supplied cursor.
func (h *ChatHandler) Next(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}
	cursor, ok := parseCursor(c, "recentMessageId", "recentMessageTimestamp")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	msgs, err := h.Chat.After(channelID, cursor)
	if err != nil {
		h.Logger.Error("Failed to load next page", "channelID", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, h.Chat.ToOutgoingList(msgs))
}

// ShowMention returns the fixed-size window straddling a mention's timestamp
// so the client can jump to its context.
func (h *ChatHandler) ShowMention(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, c.Query("mentionTime"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mentionTime"})
		return
	}

	msgs, err := h.Chat.Around(channelID, ts)
	if err != nil {
		h.Logger.Error("Failed to load mention window", "channelID", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, h.Chat.ToOutgoingList(msgs))
}

// MarkMentionsSeen flips the caller's unseen mentions in the channel to seen.
func (h *ChatHandler) MarkMentionsSeen(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}

	if err := h.Mentions.MarkMentionsAsSeen(userID, channelID); err != nil {
		h.Logger.Error("Failed to mark mentions seen", "channelID", channelID, "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark mentions seen"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mentions marked as seen"})
}

// UnseenMentions returns the caller's unseen mention count in the channel.
func (h *ChatHandler) UnseenMentions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := channelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if !h.requireMember(c, channelID, userID) {
		return
	}

	count, err := h.Mentions.UnseenCount(userID, channelID)
	if err != nil {
		h.Logger.Error("Failed to count unseen mentions", "channelID", channelID, "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unseen mentions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
