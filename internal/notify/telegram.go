// Package notify pushes recorded notifications to external channels.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
)

// TelegramConfig configures the Telegram sender.
type TelegramConfig struct {
	Token string `toml:"token"`
	// APIServer overrides the Bot API endpoint; empty uses the public one.
	APIServer string `toml:"api_server" split_words:"true"`
	// Chats maps user IDs to Telegram chat IDs. Numeric user IDs are used
	// as the chat ID directly when not listed.
	Chats map[string]int64 `toml:"chats"`
}

// Telegram implements domain.Sender over the Telegram Bot API.
type Telegram struct {
	bot   *telego.Bot
	chats map[string]int64
	log   *log.Entry
}

// NewTelegram creates a sender. It does not contact Telegram.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	opts := []telego.BotOption{telego.WithDiscardLogger()}
	if cfg.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(cfg.APIServer))
	}
	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		bot:   bot,
		chats: cfg.Chats,
		log:   log.WithField("component", "telegram"),
	}, nil
}

// Send delivers n to the user's chat. Users without a known chat are skipped.
func (t *Telegram) Send(ctx context.Context, n domain.Notification) error {
	chatID, ok := t.chatFor(n.UserID)
	if !ok {
		t.log.WithField("user", n.UserID).Debug("no chat for user, skipping")
		return nil
	}

	text := n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}
	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	t.log.WithFields(log.Fields{"user": n.UserID, "type": n.Type}).Debug("message sent")
	return nil
}

func (t *Telegram) chatFor(userID string) (int64, bool) {
	if id, ok := t.chats[userID]; ok {
		return id, true
	}
	if id, err := strconv.ParseInt(userID, 10, 64); err == nil {
		return id, true
	}
	return 0, false
}
