package alerting

import (
	"hermes/internal/adapters/config"
	"hermes/pkg/logger"
)

// Notifier delivers operational alerts. Implementations swallow and log
// delivery failures; alerting must never fail or slow down a request.
type Notifier interface {
	// Alert sends one message. Repeats of the same subject inside the
	// cooldown window are dropped.
	Alert(subject, body string)
}

// New returns the Telegram notifier when a bot token and chat are
// configured, otherwise a no-op.
func New(cfg config.AlertingConfig) Notifier {
	if !cfg.Configured() {
		logger.Debug("Alerting not configured, using noop notifier")
		return NewNoop()
	}

	notifier, err := NewTelegram(cfg)
	if err != nil {
		logger.Errorf("Failed to create telegram notifier, alerting disabled: %v", err)
		return NewNoop()
	}
	return notifier
}

// Noop discards all alerts.
type Noop struct{}

// NewNoop creates a notifier that does nothing.
func NewNoop() *Noop {
	return &Noop{}
}

// Alert implements Notifier.
func (n *Noop) Alert(subject, body string) {}
