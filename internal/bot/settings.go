package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/ai"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

func (b *Bot) handleSettings(message *tgbotapi.Message, user *models.User) {
	apiKeyStatus := "❌ Not set"
	if user.HasCustomAPIKey() {
		apiKeyStatus = "✅ Set"
	}
	preferredModel := user.PreferredModel
	if preferredModel == "" {
		preferredModel = b.cfg.OpenAI.DefaultModel()
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"⚙️ User settings\n\n"+
			"• API key: %s\n"+
			"• Preferred model: %s\n\n"+
			"Commands:\n"+
			"/setapikey - Set your own OpenAI API key\n"+
			"/removeapikey - Remove your API key\n"+
			"/setmodel - Choose a preferred model",
		apiKeyStatus, preferredModel))
}

func (b *Bot) handleSetAPIKey(message *tgbotapi.Message, user *models.User) {
	b.states.Set(user.TelegramID, pendingAPIKey)
	b.sendMessage(message.Chat.ID,
		"🔑 Please enter your OpenAI API key.\n\n"+
			"It will be used for your requests instead of the bot's default key.\n"+
			"You can cancel with /cancel")
}

func (b *Bot) handleAPIKeyInput(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	apiKey := strings.TrimSpace(message.Text)

	if !ai.ValidateAPIKey(ctx, apiKey, b.logger) {
		b.sendMessage(message.Chat.ID,
			"❌ Invalid API key. Please try again with a working OpenAI API key, or /cancel")
		return
	}

	if err := b.storage.SetUserAPIKey(ctx, user.TelegramID, apiKey); err != nil {
		b.logger.Error("Failed to save API key",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to save your API key.")
		return
	}

	b.states.Clear(user.TelegramID)
	b.sendMessage(message.Chat.ID, "✅ Your OpenAI API key has been saved")
	b.logger.Info("User updated API key", zap.Int64("user_id", user.TelegramID))
}

func (b *Bot) handleRemoveAPIKey(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	if !user.HasCustomAPIKey() {
		b.sendMessage(message.Chat.ID, "❓ You don't have a custom API key set")
		return
	}

	if err := b.storage.SetUserAPIKey(ctx, user.TelegramID, ""); err != nil {
		b.logger.Error("Failed to remove API key",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to remove your API key.")
		return
	}

	b.sendMessage(message.Chat.ID,
		"🗑 Your API key has been removed. The bot will use its default key for your requests.")
	b.logger.Info("User removed API key", zap.Int64("user_id", user.TelegramID))
}

func (b *Bot) handleSetModel(message *tgbotapi.Message, user *models.User) {
	var list strings.Builder
	for _, model := range b.cfg.OpenAI.AvailableModels {
		list.WriteString("• " + model + "\n")
	}

	b.states.Set(user.TelegramID, pendingModel)
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"🤖 Please choose a preferred model:\n\n%s\n"+
			"Just send the model name (for example, %s).\n"+
			"You can cancel with /cancel",
		list.String(), b.cfg.OpenAI.DefaultModel()))
}

func (b *Bot) handleModelInput(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	selected := strings.TrimSpace(message.Text)

	valid := false
	for _, model := range b.cfg.OpenAI.AvailableModels {
		if selected == model {
			valid = true
			break
		}
	}
	if !valid {
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"❌ Unknown model. Please choose one of: %s, or /cancel",
			strings.Join(b.cfg.OpenAI.AvailableModels, ", ")))
		return
	}

	if err := b.storage.SetUserPreferredModel(ctx, user.TelegramID, selected); err != nil {
		b.logger.Error("Failed to save preferred model",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to save your model choice.")
		return
	}

	b.states.Clear(user.TelegramID)
	b.sendMessage(message.Chat.ID, "✅ Your preferred model is now "+selected)
	b.logger.Info("User updated preferred model",
		zap.Int64("user_id", user.TelegramID),
		zap.String("model", selected))
}
