package tnom

import (
	"fmt"

	pagerduty "github.com/PagerDuty/go-pagerduty"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Severity is a PagerDuty Events v2 severity level.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// pagerdutySource identifies this monitor as the PagerDuty event source,
// regardless of which validator/wallet triggered the alert.
const pagerdutySource = "Nibiru Oracle Monitor"

// Notifier fans a single alert out to every notification channel enabled
// in AlertConfig. A failure on one channel is logged and does not stop
// the others from being tried.
type Notifier struct {
	cfg *AlertConfig
	log zerolog.Logger
}

// NewNotifier builds a Notifier bound to the given alert configuration.
func NewNotifier(cfg *AlertConfig, log zerolog.Logger) *Notifier {
	return &Notifier{cfg: cfg, log: log.With().Str("component", "notifier").Logger()}
}

// Send delivers summary/details to every enabled channel.
func (n *Notifier) Send(severity Severity, summary, details string) {
	if !isValidSeverity(severity) {
		panic(fmt.Sprintf("tnom: invalid alert severity %q", severity))
	}

	if n.cfg.PagerdutyAlerts {
		if err := n.sendPagerDuty(severity, summary, details); err != nil {
			n.log.Error().Err(err).Msg("pagerduty alert failed")
		}
	}
	if n.cfg.TelegramAlerts {
		if err := n.sendTelegram(severity, summary, details); err != nil {
			n.log.Error().Err(err).Msg("telegram alert failed")
		}
	}
}

func isValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

func (n *Notifier) sendPagerDuty(severity Severity, summary, details string) error {
	event := pagerduty.V2Event{
		RoutingKey: n.cfg.PagerdutyRoutingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:  summary,
			Source:   pagerdutySource,
			Severity: string(severity),
			Details:  details,
		},
	}
	_, err := pagerduty.ManageEvent(event)
	if err != nil {
		return fmt.Errorf("pagerduty ManageEvent: %w", err)
	}
	return nil
}

func (n *Notifier) sendTelegram(severity Severity, summary, details string) error {
	bot, err := tgbotapi.NewBotAPI(n.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	chatID, err := parseTelegramChatID(n.cfg.TelegramChatID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("*[%s]* %s\n```\n%s\n```", severity, summary, details)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err = bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func parseTelegramChatID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid telegram_chat_id %q: %w", s, err)
	}
	return id, nil
}
