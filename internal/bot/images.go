package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

func (b *Bot) handleImage(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	prompt := strings.TrimSpace(message.CommandArguments())
	if prompt != "" {
		b.generateImage(ctx, message, user, prompt)
		return
	}

	b.states.Set(user.TelegramID, pendingImagePrompt)
	b.sendMessage(message.Chat.ID,
		"🖼 Image generation\n\nPlease describe the image you want to generate:")
}

func (b *Bot) generateImage(ctx context.Context, message *tgbotapi.Message, user *models.User, prompt string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(message.Chat.ID, tgbotapi.ChatUploadPhoto)); err != nil {
		b.logger.Warn("Failed to send upload_photo action", zap.Error(err))
	}

	status, err := b.api.Send(tgbotapi.NewMessage(message.Chat.ID,
		"⏳ Generating image...\nThis can take up to 30 seconds."))
	if err != nil {
		b.logger.Error("Failed to send status message", zap.Error(err))
		return
	}

	provider := b.providerFor(user)
	result, err := provider.GenerateImage(ctx, prompt,
		openai.CreateImageSize1024x1024, openai.CreateImageModelDallE3)
	if err != nil {
		b.editMessage(message.Chat.ID, status.MessageID, err.Error())
		b.logger.Error("Image generation failed",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		return
	}

	photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileURL(result.URL))
	caption := fmt.Sprintf("🖼 Image generated\n\nPrompt: %s", prompt)
	if result.RevisedPrompt != prompt {
		caption += "\n\nRevised prompt: " + result.RevisedPrompt
	}
	photo.Caption = caption

	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("Failed to send image", zap.Error(err))
		// Fall back to the bare URL so the user still gets the result.
		b.editMessage(message.Chat.ID, status.MessageID,
			"🖼 Image generated: "+result.URL)
		return
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(message.Chat.ID, status.MessageID)); err != nil {
		b.logger.Warn("Failed to delete status message", zap.Error(err))
	}

	b.logger.Info("User generated image",
		zap.Int64("user_id", user.TelegramID),
		zap.String("prompt", prompt))
}
