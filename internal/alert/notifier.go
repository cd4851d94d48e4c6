package alert

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"atelier/internal/config"
)

// Notifier pushes operational alerts to a Telegram chat. A nil Notifier is
// valid and drops every message, so callers never have to branch on
// whether alerting is configured.
type Notifier struct {
	bot    *tele.Bot
	chatID int64
	logger *zap.Logger
}

// New builds a notifier from configuration. Returns nil when no bot token
// is set.
func New(cfg config.AlertConfig, logger *zap.Logger) (*Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("alert bot init: %w", err)
	}

	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

// Send delivers a formatted alert. Failures are logged, never returned;
// alerting must not affect the caller's control flow.
func (n *Notifier) Send(format string, args ...interface{}) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(format, args...)
	if _, err := n.bot.Send(tele.ChatID(n.chatID), text); err != nil {
		n.logger.Error("alert delivery failed",
			zap.String("text", text),
			zap.Error(err),
		)
	}
}
