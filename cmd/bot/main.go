package main

import (
	"github.com/xaenox/wispr-bot/internal/bot"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/storage"
	"github.com/xaenox/wispr-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Assemble the session and streaming engine
	sessions := chat.NewRegistry(store, cfg.OpenAI.DefaultModel(), logger)
	guard := chat.NewGuard()
	renderer := chat.NewRenderer(cfg.Chat.UpdateEvery, cfg.Chat.MessageLimit, cfg.Chat.TypingInterval, logger)
	engine := chat.NewEngine(store, sessions, guard, renderer, cfg.Chat.HistoryWindow, logger)

	// Initialize bot
	b, err := bot.New(cfg, store, engine, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
