package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/models"
)

func (b *Bot) handleStart(message *tgbotapi.Message, user *models.User) {
	name := user.FullName()
	if name == "" {
		name = "there"
	}
	b.sendMessage(message.Chat.ID,
		"👋 Welcome to Wispr Bot, "+name+"!\n\n"+
			"I'm a Telegram bot that lets you talk to OpenAI models.\n\n"+
			"Use /help to see the available commands.")
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `🔍 Available commands:

/newchat - Create a new chat
/chats - List your chats
/currentchat - Current chat info
/clear_history - Clear current chat history
/exit - Leave the current chat
/image - Generate an image from a description
/settings - Bot settings
/setapikey - Set your own OpenAI API key
/removeapikey - Remove your API key
/setmodel - Choose a default model
/help - Show this help

Just send a message to start the conversation!
All messages are kept in the context of the current chat.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleCancel(message *tgbotapi.Message, user *models.User) {
	if _, ok := b.states.Get(user.TelegramID); !ok {
		b.sendMessage(message.Chat.ID, "Nothing to cancel.")
		return
	}
	b.states.Clear(user.TelegramID)
	b.sendMessage(message.Chat.ID, "❌ Operation cancelled")
}
