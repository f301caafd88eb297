package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

func (b *Bot) handleAdmin(message *tgbotapi.Message, user *models.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	b.sendMessage(message.Chat.ID,
		"👑 Admin panel\n\n"+
			"Available commands:\n"+
			"/allow <user_id> - Allow a user to use the bot\n"+
			"/disallow <user_id> - Revoke a user's access\n"+
			"/list_users - List allowed users\n"+
			"/stats - Show bot statistics")
}

func (b *Bot) handleAllow(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	targetID, ok := b.parseUserIDArg(message)
	if !ok {
		return
	}

	target, err := b.storage.GetUser(ctx, targetID)
	if err != nil {
		b.logger.Error("Failed to get user", zap.Error(err), zap.Int64("user_id", targetID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to look up the user.")
		return
	}
	if target == nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("⚠️ User %d was not found in the database", targetID))
		return
	}

	if err := b.storage.SetUserAllowed(ctx, targetID, true); err != nil {
		b.logger.Error("Failed to allow user", zap.Error(err), zap.Int64("user_id", targetID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to update the user.")
		return
	}

	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("✅ %s (%d) has been granted access to the bot", target.FullName(), targetID))
	b.logger.Info("User allowed",
		zap.Int64("user_id", targetID),
		zap.Int64("admin_id", user.TelegramID))
}

func (b *Bot) handleDisallow(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	targetID, ok := b.parseUserIDArg(message)
	if !ok {
		return
	}

	if b.cfg.IsAdmin(targetID) {
		b.sendMessage(message.Chat.ID, "⚠️ An administrator's access cannot be revoked")
		return
	}

	target, err := b.storage.GetUser(ctx, targetID)
	if err != nil {
		b.logger.Error("Failed to get user", zap.Error(err), zap.Int64("user_id", targetID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to look up the user.")
		return
	}
	if target == nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("⚠️ User %d was not found in the database", targetID))
		return
	}

	if err := b.storage.SetUserAllowed(ctx, targetID, false); err != nil {
		b.logger.Error("Failed to disallow user", zap.Error(err), zap.Int64("user_id", targetID))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to update the user.")
		return
	}

	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("❌ %s (%d) no longer has access to the bot", target.FullName(), targetID))
	b.logger.Info("User disallowed",
		zap.Int64("user_id", targetID),
		zap.Int64("admin_id", user.TelegramID))
}

func (b *Bot) handleListUsers(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	users, err := b.storage.ListAllowedUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list users", zap.Error(err))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to list users.")
		return
	}

	if len(users) == 0 {
		b.sendMessage(message.Chat.ID, "📝 No allowed users found")
		return
	}

	var list strings.Builder
	for _, u := range users {
		list.WriteString(fmt.Sprintf("• %s (ID: %d)", u.FullName(), u.TelegramID))
		if u.HasCustomAPIKey() {
			list.WriteString(" [own API key]")
		}
		list.WriteString("\n")
	}

	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("📝 Allowed users (%d):\n\n%s", len(users), list.String()))
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message, user *models.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	users, err := b.storage.ListAllowedUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list users", zap.Error(err))
		b.sendMessage(message.Chat.ID, chat.ErrorMarker+": failed to load statistics.")
		return
	}

	withKeys := 0
	for _, u := range users {
		if u.HasCustomAPIKey() {
			withKeys++
		}
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"📊 Bot statistics\n\nAllowed users: %d\nUsers with their own API key: %d",
		len(users), withKeys))
}

func (b *Bot) parseUserIDArg(message *tgbotapi.Message) (int64, bool) {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		b.sendMessage(message.Chat.ID,
			fmt.Sprintf("⚠️ Please provide a user id: /%s <user_id>", message.Command()))
		return 0, false
	}

	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "⚠️ Invalid user id. Please provide a numeric id")
		return 0, false
	}
	return id, true
}
