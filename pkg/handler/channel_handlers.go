package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/renohub/renohub/pkg/service"
)

// ChannelHandler provides HTTP handlers for channel and membership management.
type ChannelHandler struct {
	Channels    *service.ChannelService
	AssistantID int64
	Logger      *slog.Logger
}

func NewChannelHandler(channels *service.ChannelService, assistantID int64, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{Channels: channels, AssistantID: assistantID, Logger: logger}
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func (h *ChannelHandler) channelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRenovationNotFound), errors.Is(err, service.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidChannelName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotRenovationMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("Channel operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Channel operation failed"})
	}
}

// Create creates a channel in a renovation; the caller becomes the first
// member.
func (h *ChannelHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	renovationID, ok := int64Param(c, "renovationId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid renovation id"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	channel, err := h.Channels.CreateChannel(renovationID, userID, req.Name)
	if err != nil {
		h.channelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

// List returns the renovation channels the caller belongs to.
func (h *ChannelHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	renovationID, ok := int64Param(c, "renovationId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid renovation id"})
		return
	}

	channels, err := h.Channels.ListChannels(renovationID, userID)
	if err != nil {
		h.channelError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// EnsureAiChannel returns the caller's reserved assistant channel, creating
// it on first use.
func (h *ChannelHandler) EnsureAiChannel(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	renovationID, ok := int64Param(c, "renovationId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid renovation id"})
		return
	}

	channel, err := h.Channels.EnsureAiChannel(renovationID, userID, h.AssistantID)
	if err != nil {
		h.channelError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

// AddMember adds a renovation member to the channel.
func (h *ChannelHandler) AddMember(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := int64Param(c, "channelId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	userID, ok := int64Param(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	if err := h.Channels.AddMember(channelID, userID); err != nil {
		h.channelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member added"})
}

// RemoveMember removes a user from the channel's member set.
func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return
	}
	channelID, ok := int64Param(c, "channelId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	userID, ok := int64Param(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	if err := h.Channels.RemoveMember(channelID, userID); err != nil {
		h.channelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
