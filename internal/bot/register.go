package bot

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/go-telegram/bot/models"
)

const passwordLength = 8

// Register adds a new client through a password challenge. A numeric
// password is written to the operator log, never to the chat transport; the
// chat that sends it back to the bot is added to the client registry.
func (b *Bot) Register(ctx context.Context) error {
	password := newPassword()
	b.logger.WarnContext(ctx, "Please send the password to your bot", "password", password)

	_, err := b.Listen(ctx, func(msg *models.Message) bool {
		if msg.Text != password {
			return false
		}
		if err := b.AddClients(ctx, map[int64]string{msg.Chat.ID: chatFullName(msg.Chat)}); err != nil {
			b.logger.ErrorContext(ctx, "Failed to store new client", "chat_id", msg.Chat.ID, "error", err)
			return false
		}
		return true
	})
	return err
}

// newPassword returns a random password of exactly passwordLength ASCII
// digits.
func newPassword() string {
	digits := make([]byte, passwordLength)
	for i := range digits {
		digits[i] = byte('0' + rand.IntN(10))
	}
	return string(digits)
}

// chatFullName builds a display name for a private chat.
func chatFullName(chat models.Chat) string {
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		name = chat.Username
	}
	if name == "" && chat.Title != "" {
		name = chat.Title
	}
	return name
}
