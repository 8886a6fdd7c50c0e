package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/renohub/renohub/pkg/config"
	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/event"
	"github.com/renohub/renohub/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "error", err)
	}
	cfg, cfgPath, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	gdb, err := db.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}
	assistant, err := db.EnsureAssistantUser(gdb)
	if err != nil {
		logger.Error("Failed to ensure assistant user", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var chatModel model.BaseChatModel
	if cfg.AIAPIKey() != "" {
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.AIBaseURL(),
			APIKey:  cfg.AIAPIKey(),
			Model:   cfg.AIModel(),
		})
		if err != nil {
			logger.Error("Failed to initialise chat model", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("No AI API key configured, assistant disabled")
	}

	// Bridge events across instances when Redis is configured; a single
	// instance works without it.
	if cfg.RedisAddr() != "" {
		bridge := event.NewRedisBridge(cfg.RedisAddr(), cfg.RedisPassword(), cfg.RedisDB(), logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Error("Failed to start redis bridge", "addr", cfg.RedisAddr(), "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
	}

	server := NewServer(cfg, gdb, ServerDeps{AssistantID: assistant.ID, ChatModel: chatModel})
	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}
