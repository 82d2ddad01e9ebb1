package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Spok95/podvest/internal/domain/event"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts pod milestones to the admin chat. Other events pass through.
type Notifier struct {
	api       sender
	log       *slog.Logger
	adminChat int64
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, adminChatID int64) *Notifier {
	return &Notifier{api: api, log: log, adminChat: adminChatID}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Publish(ctx context.Context, env event.Envelope) error {
	text, ok, err := render(env)
	if err != nil || !ok {
		return err
	}
	msg := tgbotapi.NewMessage(n.adminChat, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	n.log.DebugContext(ctx, "admin chat notified", "type", env.Type, "subject", env.Subject)
	return nil
}

func render(env event.Envelope) (string, bool, error) {
	switch env.Type {
	case event.PodCreated:
		var d event.PodCreatedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("🆕 Pod %q created (%s)\nGoal: %d..%d\nTokens deposited: %d",
			d.Name, d.PodID, d.MinGoal, d.MaxGoal, d.TokensDeposited), true, nil
	case event.MaxGoalReached:
		var d event.MaxGoalReachedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("🎯 Pod %s reached its max goal: %d raised. Vesting has started.",
			env.Subject, d.TotalRaised), true, nil
	case event.PodFailed:
		var d event.PodFailedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("⚠️ Pod %s failed: raised %d of min goal %d. Refunds are open.",
			env.Subject, d.TotalRaised, d.MinGoal), true, nil
	default:
		return "", false, nil
	}
}
