package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/renohub/renohub/pkg/config"
	"github.com/renohub/renohub/pkg/event"
	"github.com/renohub/renohub/pkg/handler"
	"github.com/renohub/renohub/pkg/service"
	"github.com/renohub/renohub/pkg/utils"
	"gorm.io/gorm"
)

type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	cfg       *config.AppConfig
	port      int
	listener  net.Listener
}

// NewServer wires the chat services and handlers onto a gin engine. The
// chat model may be nil, in which case assistant orchestration is disabled
// and plain chat keeps working.
func NewServer(cfg *config.AppConfig, gdb *gorm.DB, deps ServerDeps) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	ginEngine.Use(requestID())
	ginEngine.Use(corsMiddleware())
	ginEngine.Use(identity())

	server := &Server{
		ginEngine: ginEngine,
		logger:    utils.GetLogger(),
		cfg:       cfg,
		port:      0,
	}

	server.SetupRoutes(cfg, gdb, deps)

	return server
}

// ServerDeps carries the pieces main constructs before the router: the
// assistant user id and the chat model (nil when no API key is configured).
type ServerDeps struct {
	AssistantID int64
	ChatModel   model.BaseChatModel
}

// requestID tags every request with an id for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("requestID", id)
		c.Next()
	}
}

// identity resolves the caller from the X-User-ID header set by the gateway
// in front of this service. Requests without it stay anonymous and the
// handlers answer 401 where identity is required.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				c.Set(handler.UserIDKey, id)
			}
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-User-ID, X-Request-ID")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port()
	}
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
		// Serve failures after startup land here; without a reader they
		// would sit in the channel unnoticed.
		go func() {
			if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server failed", "error", err)
			}
		}()
	}
	return nil
}

func (s *Server) SetupRoutes(cfg *config.AppConfig, gdb *gorm.DB, deps ServerDeps) {
	channelService := service.NewChannelService(gdb)
	chatService := service.NewChatService(gdb, channelService,
		cfg.HistoryPageSize(), cfg.AroundBefore(), cfg.AroundAfter())
	mentionService := service.NewMentionService(gdb)
	taskService := service.NewTaskService(gdb)
	aiService := service.NewAiService(gdb, deps.ChatModel, chatService,
		channelService, taskService, deps.AssistantID, cfg.AIContextWindow())

	chatHandler := handler.NewChatHandler(chatService, channelService, mentionService, aiService, s.logger)
	channelHandler := handler.NewChannelHandler(channelService, deps.AssistantID, s.logger)
	wsHandler := event.NewWSHandler()

	apiGroup := s.ginEngine.Group("/api")

	// Realtime event stream
	// /api/events/ws?topics=chat/channel/1,chat/mention/42
	apiGroup.GET("/events/ws", wsHandler.Handle)

	// Channel management
	// /api/renovations/:renovationId/channels
	renovationsGroup := apiGroup.Group("/renovations/:renovationId")
	{
		renovationsGroup.GET("/channels", channelHandler.List)
		renovationsGroup.POST("/channels", channelHandler.Create)
		renovationsGroup.GET("/channels/ai", channelHandler.EnsureAiChannel)
	}

	// Chat surface
	// /api/channels/:channelId
	channelsGroup := apiGroup.Group("/channels/:channelId")
	{
		channelsGroup.POST("/messages", chatHandler.SendMessage)
		channelsGroup.GET("/messages", chatHandler.History)
		channelsGroup.GET("/messages/previous", chatHandler.Previous)
		channelsGroup.GET("/messages/next", chatHandler.Next)
		channelsGroup.GET("/messages/mention", chatHandler.ShowMention)
		channelsGroup.PUT("/mentions/seen", chatHandler.MarkMentionsSeen)
		channelsGroup.GET("/mentions/unseen", chatHandler.UnseenMentions)
		channelsGroup.POST("/members/:userId", channelHandler.AddMember)
		channelsGroup.DELETE("/members/:userId", channelHandler.RemoveMember)
	}
}
