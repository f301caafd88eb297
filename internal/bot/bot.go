package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/ai"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
	"github.com/xaenox/wispr-bot/internal/storage"
	"github.com/xaenox/wispr-bot/pkg/config"
	"go.uber.org/zap"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	storage storage.Storage
	engine  *chat.Engine
	states  *dialogStates
	cfg     *config.Config
	logger  *zap.Logger
}

func New(cfg *config.Config, store storage.Storage, engine *chat.Engine, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:     api,
		storage: store,
		engine:  engine,
		states:  newDialogStates(),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (b *Bot) Start() error {
	if err := b.setCommands(); err != nil {
		b.logger.Warn("Failed to set bot commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.Message != nil:
			go b.handleMessage(update.Message)
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		}
	}

	return nil
}

func (b *Bot) setCommands() error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "help", Description: "Show help"},
		tgbotapi.BotCommand{Command: "settings", Description: "Bot settings"},
		tgbotapi.BotCommand{Command: "newchat", Description: "Create a new chat"},
		tgbotapi.BotCommand{Command: "chats", Description: "List your chats"},
		tgbotapi.BotCommand{Command: "currentchat", Description: "Current chat info"},
		tgbotapi.BotCommand{Command: "clear_history", Description: "Clear current chat history"},
		tgbotapi.BotCommand{Command: "exit", Description: "Leave the current chat"},
		tgbotapi.BotCommand{Command: "image", Description: "Generate an image from a description"},
	)
	_, err := b.api.Request(commands)
	return err
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	ctx := context.Background()

	user, allowed := b.ensureUser(ctx, message.From)
	if user == nil {
		return
	}
	if !allowed {
		b.sendMessage(message.Chat.ID, "⚠️ You don't have access to this bot. Please contact the administrator.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message, user)
		return
	}

	// Interactive dialogs (title, API key, model, image prompt) take the
	// next plain message.
	if pending, ok := b.states.Get(user.TelegramID); ok {
		b.handlePendingInput(ctx, message, user, pending)
		return
	}

	if message.Text == "" {
		return
	}

	b.handleChatMessage(ctx, message, user)
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || callback.Message == nil {
		return
	}

	ctx := context.Background()

	user, allowed := b.ensureUser(ctx, callback.From)
	if user == nil {
		return
	}
	if !allowed {
		b.answerCallback(callback.ID, "⚠️ You don't have access to this bot.", true)
		return
	}

	data := callback.Data
	switch {
	case len(data) > 5 && data[:5] == "chat:":
		b.handleSelectChatCallback(ctx, callback, user, data[5:])
	case len(data) > 8 && data[:8] == "delchat:":
		b.handleDeleteChatCallback(ctx, callback, user, data[8:])
	default:
		b.answerCallback(callback.ID, "", false)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	switch message.Command() {
	case "start":
		b.handleStart(message, user)
	case "help":
		b.handleHelp(message)
	case "cancel":
		b.handleCancel(message, user)
	case "newchat":
		b.handleNewChat(message, user)
	case "chats":
		b.handleListChats(ctx, message, user)
	case "currentchat":
		b.handleCurrentChat(ctx, message, user)
	case "deletechat":
		b.handleDeleteChat(ctx, message, user)
	case "exit":
		b.handleExit(message, user)
	case "clear_history":
		b.handleClearHistory(ctx, message, user)
	case "settings":
		b.handleSettings(message, user)
	case "setapikey":
		b.handleSetAPIKey(message, user)
	case "removeapikey":
		b.handleRemoveAPIKey(ctx, message, user)
	case "setmodel":
		b.handleSetModel(message, user)
	case "image":
		b.handleImage(ctx, message, user)
	case "admin":
		b.handleAdmin(message, user)
	case "allow":
		b.handleAllow(ctx, message, user)
	case "disallow":
		b.handleDisallow(ctx, message, user)
	case "list_users":
		b.handleListUsers(ctx, message, user)
	case "stats":
		b.handleStats(ctx, message, user)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handlePendingInput(ctx context.Context, message *tgbotapi.Message, user *models.User, pending pendingKind) {
	switch pending {
	case pendingTitle:
		b.handleNewChatTitle(ctx, message, user)
	case pendingAPIKey:
		b.handleAPIKeyInput(ctx, message, user)
	case pendingModel:
		b.handleModelInput(ctx, message, user)
	case pendingImagePrompt:
		b.states.Clear(user.TelegramID)
		b.generateImage(ctx, message, user, message.Text)
	}
}

// ensureUser loads or creates the sender in the store, refreshing the
// display name and activity timestamp on every contact. Admins are allowed
// automatically; the second return value reports access.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, bool) {
	user, err := b.storage.GetUser(ctx, from.ID)
	if err != nil {
		b.logger.Error("Failed to get user",
			zap.Error(err),
			zap.Int64("user_id", from.ID))
		return nil, false
	}

	now := time.Now()
	if user == nil {
		user = &models.User{
			TelegramID: from.ID,
			IsAllowed:  b.cfg.IsAdmin(from.ID),
			CreatedAt:  now,
		}
	}
	user.Username = from.UserName
	user.FirstName = from.FirstName
	user.LastName = from.LastName
	user.LastActive = now

	if err := b.storage.UpsertUser(ctx, user); err != nil {
		b.logger.Error("Failed to upsert user",
			zap.Error(err),
			zap.Int64("user_id", from.ID))
	}

	if user.IsAllowed || b.cfg.IsAdmin(from.ID) {
		return user, true
	}

	b.logger.Warn("Unauthorized access attempt",
		zap.Int64("user_id", from.ID),
		zap.String("username", from.UserName))
	return user, false
}

// providerFor builds a provider bound to the user's own API key when set,
// otherwise to the bot's default key.
func (b *Bot) providerFor(user *models.User) *ai.Service {
	apiKey := b.cfg.OpenAI.APIKey
	if user.HasCustomAPIKey() {
		apiKey = user.OpenAIAPIKey
	}
	return ai.NewService(apiKey, ai.Config{
		AvailableModels: b.cfg.OpenAI.AvailableModels,
		DefaultModel:    b.cfg.OpenAI.DefaultModel(),
		MaxTokens:       b.cfg.OpenAI.MaxTokens,
		Temperature:     float32(b.cfg.OpenAI.Temperature),
	}, b.logger)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) answerCallback(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := b.api.Request(cb); err != nil {
		b.logger.Error("Failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID))
	}
}
