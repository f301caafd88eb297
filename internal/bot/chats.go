package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

const chatListLimit = 10

// handleChatMessage runs the full turn pipeline for a plain text message.
func (b *Bot) handleChatMessage(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	sink := b.newSink(message.Chat.ID)
	provider := b.providerFor(user)

	err := b.engine.HandleTurn(ctx, user, message.Text, provider, sink)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		b.sendMessage(message.Chat.ID,
			"⏳ Your previous request is still being processed. Please wait.")
	case errors.Is(err, chat.ErrEmptyContext):
		b.sendMessage(message.Chat.ID,
			chat.ErrorMarker+": could not compose message context for the request.")
	default:
		b.logger.Error("Turn failed",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID,
			fmt.Sprintf("%s processing your message: %v", chat.ErrorMarker, err))
	}
}

func (b *Bot) handleNewChat(message *tgbotapi.Message, user *models.User) {
	b.states.Set(user.TelegramID, pendingTitle)
	b.sendMessage(message.Chat.ID,
		"🆕 Creating a new chat\n\nPlease enter a title for your new chat:")
}

func (b *Bot) handleNewChatTitle(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	title := strings.TrimSpace(message.Text)
	if title == "" {
		b.sendMessage(message.Chat.ID, "Please send a non-empty title, or /cancel.")
		return
	}

	model := user.PreferredModel
	if model == "" {
		model = b.cfg.OpenAI.DefaultModel()
	}

	created, err := b.storage.CreateChat(ctx, user.TelegramID, title, model, "")
	if err != nil {
		b.logger.Error("Failed to create chat",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to create the chat. Please try again.")
		return
	}

	b.states.Clear(user.TelegramID)
	b.engine.Sessions().Enter(user.TelegramID, created.ID)

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Created new chat: %q\n\nYou are now talking to %s.\nSend any message to start the conversation.",
		title, model))
	b.logger.Info("User created chat",
		zap.Int64("user_id", user.TelegramID),
		zap.Int64("chat_id", created.ID),
		zap.String("title", title))
}

func (b *Bot) handleListChats(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	chats, err := b.storage.ListChats(ctx, user.TelegramID)
	if err != nil {
		b.logger.Error("Failed to list chats",
			zap.Error(err),
			zap.Int64("user_id", user.TelegramID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to load your chats.")
		return
	}

	if len(chats) == 0 {
		b.sendMessage(message.Chat.ID,
			"📝 You don't have any chats yet.\n\nUse /newchat to create your first chat.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range chats {
		if len(rows) == chatListLimit {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%s)", c.Title, c.Model),
				"chat:"+strconv.FormatInt(c.ID, 10))))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf(
		"📝 Your chats (%d):\n\nTap a chat to continue the conversation:", len(chats)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send chat list", zap.Error(err))
	}
}

func (b *Bot) handleSelectChatCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, arg string) {
	chatID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(callback.ID, "❌ Invalid chat", true)
		return
	}

	selected, err := b.storage.GetChat(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		b.answerCallback(callback.ID, "❌ Failed to load the chat", true)
		return
	}
	if selected == nil || selected.UserID != user.TelegramID {
		b.answerCallback(callback.ID, "❌ Chat not found or access denied", true)
		return
	}

	b.engine.Sessions().Enter(user.TelegramID, selected.ID)
	b.answerCallback(callback.ID, "", false)
	b.sendMessage(callback.Message.Chat.ID, fmt.Sprintf(
		"✅ Switched to chat: %q\n\nYou are now talking to %s.\nSend any message to continue the conversation.",
		selected.Title, selected.Model))
	b.logger.Info("User switched chat",
		zap.Int64("user_id", user.TelegramID),
		zap.Int64("chat_id", selected.ID))
}

func (b *Bot) handleCurrentChat(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	sessions := b.engine.Sessions()

	chatID, ok := sessions.Current(user.TelegramID)
	if !ok {
		b.sendMessage(message.Chat.ID,
			"❓ You don't have an active chat.\n\nUse /newchat to create one or /chats to pick an existing one.")
		return
	}

	current, err := b.storage.GetChat(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to load your chat.")
		return
	}
	if current == nil {
		sessions.OnDeleted(chatID)
		b.states.Clear(user.TelegramID)
		b.sendMessage(message.Chat.ID,
			"❓ Your active chat no longer exists.\n\nUse /newchat to create one or /chats to pick an existing one.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"📝 Current chat: %q\n\n• Model: %s\n• Created: %s\n• Messages: %d\n\nUse /chats to switch to another chat.",
		current.Title, current.Model, current.CreatedAt.Format("2006-01-02"), len(current.Messages)))
}

func (b *Bot) handleDeleteChat(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	chats, err := b.storage.ListChats(ctx, user.TelegramID)
	if err != nil {
		b.logger.Error("Failed to list chats", zap.Error(err))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to load your chats.")
		return
	}

	if len(chats) == 0 {
		b.sendMessage(message.Chat.ID, "📝 You have no chats to delete.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range chats {
		if len(rows) == chatListLimit {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"🗑 "+c.Title,
				"delchat:"+strconv.FormatInt(c.ID, 10))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "delchat:cancel")))

	msg := tgbotapi.NewMessage(message.Chat.ID,
		"🗑 Choose a chat to delete:\n\n⚠️ This cannot be undone!")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send delete chat list", zap.Error(err))
	}
}

func (b *Bot) handleDeleteChatCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, user *models.User, arg string) {
	if arg == "cancel" {
		b.answerCallback(callback.ID, "Operation cancelled", false)
		b.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "❌ Chat deletion cancelled")
		return
	}

	chatID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(callback.ID, "❌ Invalid chat", true)
		return
	}

	target, err := b.storage.GetChat(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		b.answerCallback(callback.ID, "❌ Failed to delete the chat", true)
		return
	}
	if target == nil || target.UserID != user.TelegramID {
		b.answerCallback(callback.ID, "❌ Chat not found or access denied", true)
		return
	}

	deleted, err := b.storage.DeleteChat(ctx, chatID)
	if err != nil || !deleted {
		if err != nil {
			b.logger.Error("Failed to delete chat", zap.Error(err), zap.Int64("chat_id", chatID))
		}
		b.answerCallback(callback.ID, "Failed to delete the chat", true)
		b.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "❌ Failed to delete the chat")
		return
	}

	// Cascade: drop the active-session pointer and any pending dialog
	// bound to the deleted chat, so the next message auto-creates cleanly.
	sessions := b.engine.Sessions()
	if active, ok := sessions.Current(user.TelegramID); ok && active == chatID {
		b.states.Clear(user.TelegramID)
	}
	sessions.OnDeleted(chatID)

	b.answerCallback(callback.ID, "Chat deleted", false)
	b.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "✅ Chat deleted")
	b.logger.Info("User deleted chat",
		zap.Int64("user_id", user.TelegramID),
		zap.Int64("chat_id", chatID))
}

func (b *Bot) handleExit(message *tgbotapi.Message, user *models.User) {
	b.engine.Sessions().Exit(user.TelegramID)
	b.states.Clear(user.TelegramID)
	b.sendMessage(message.Chat.ID,
		"✅ You left the current chat.\n\nUse /chats to pick a chat or /newchat to create one.")
}

func (b *Bot) handleClearHistory(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	sessions := b.engine.Sessions()

	chatID, ok := sessions.Current(user.TelegramID)
	if !ok {
		b.sendMessage(message.Chat.ID,
			"❓ You don't have an active chat to clear.\n\nUse /newchat to create one or /chats to pick an existing one.")
		return
	}

	current, err := b.storage.GetChat(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to load your chat.")
		return
	}
	if current == nil {
		sessions.OnDeleted(chatID)
		b.states.Clear(user.TelegramID)
		b.sendMessage(message.Chat.ID,
			"❓ Your active chat no longer exists.\n\nUse /newchat to create one or /chats to pick an existing one.")
		return
	}

	// History is cleared by starting a fresh chat with the same settings.
	fresh, err := b.storage.CreateChat(ctx, user.TelegramID,
		current.Title+" (cleared)", current.Model, current.SystemPrompt)
	if err != nil {
		b.logger.Error("Failed to create chat", zap.Error(err))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to clear the chat history.")
		return
	}

	sessions.Enter(user.TelegramID, fresh.ID)
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Chat history cleared. Created new chat %q.\n\nYou can start a new conversation with %s.",
		fresh.Title, fresh.Model))
	b.logger.Info("User cleared chat history",
		zap.Int64("user_id", user.TelegramID),
		zap.Int64("old_chat_id", chatID),
		zap.Int64("new_chat_id", fresh.ID))
}
