package alerting

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hermes/internal/adapters/config"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const telegramHTTPTimeout = 30 * time.Second

// Telegram delivers alerts to an ops chat. Messages are sent off the calling
// goroutine and repeats of one subject are suppressed for the cooldown
// window, so a flapping provider does not flood the chat.
type Telegram struct {
	chatID   int64
	cooldown time.Duration
	log      *logger.Logger

	// send is swappable for tests
	send func(text string) error

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTelegram creates the notifier from alerting config.
func NewTelegram(cfg config.AlertingConfig) (*Telegram, error) {
	if cfg.TelegramBotToken == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	t := &Telegram{
		chatID:   cfg.TelegramChatID,
		cooldown: cfg.Cooldown,
		log:      logger.Get().With("component", "alerting"),
		lastSent: make(map[string]time.Time),
	}
	t.send = func(text string) error {
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = "Markdown"
		_, err := api.Send(msg)
		return err
	}

	return t, nil
}

// Alert implements Notifier.
func (t *Telegram) Alert(subject, body string) {
	if !t.shouldSend(subject) {
		t.log.Debugw("Alert suppressed by cooldown", "subject", subject)
		return
	}

	text := fmt.Sprintf("*%s*\n%s", subject, body)

	go func() {
		if err := t.send(text); err != nil {
			t.log.Errorw("Failed to send alert", "subject", subject, "error", err)
		}
	}()
}

func (t *Telegram) shouldSend(subject string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastSent[subject]; ok && time.Since(last) < t.cooldown {
		return false
	}
	t.lastSent[subject] = time.Now()
	return true
}
