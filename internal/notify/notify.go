// Package notify publishes settlement summaries to a games channel.
// Publishing is best-effort: a failure never touches a committed settlement.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

// Outcome of a settled round.
type Outcome string

// Outcomes.
const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeRefund  Outcome = "refund"
	OutcomeExpired Outcome = "expired"
)

// Event summarizes one settlement.
type Event struct {
	Game       string
	RoundID    string
	UserID     int64
	Username   string
	Bet        int64
	Multiplier decimal.Decimal
	Payout     int64
	Outcome    Outcome
}

// Publisher delivers settlement events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Format renders an event as a one-line channel post.
func Format(ev Event) string {
	who := ev.Username
	if who == "" {
		who = fmt.Sprintf("id%d", ev.UserID)
	}

	switch ev.Outcome {
	case OutcomeWin:
		return fmt.Sprintf("🏆 %s | %s won %d (bet %d, x%s)", ev.Game, who, ev.Payout, ev.Bet, ev.Multiplier.StringFixed(2))
	case OutcomeLoss:
		return fmt.Sprintf("💥 %s | %s lost %d at x%s", ev.Game, who, ev.Bet, ev.Multiplier.StringFixed(2))
	case OutcomeRefund:
		return fmt.Sprintf("↩️ %s | %s refunded %d", ev.Game, who, ev.Payout)
	default:
		return fmt.Sprintf("⌛ %s | %s round expired (bet %d)", ev.Game, who, ev.Bet)
	}
}

// LogPublisher writes events to the log. It is used when no channel is configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, ev Event) error {
	log.Info().
		Str("game", ev.Game).
		Str("round_id", ev.RoundID).
		Int64("user_id", ev.UserID).
		Int64("bet", ev.Bet).
		Str("multiplier", ev.Multiplier.StringFixed(2)).
		Int64("payout", ev.Payout).
		Str("outcome", string(ev.Outcome)).
		Msg("Round settled")
	return nil
}

// Sender is the part of *tele.Bot used for channel posts.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ChannelPublisher posts events to a Telegram chat.
type ChannelPublisher struct {
	sender Sender
	chat   tele.ChatID
}

// NewChannelPublisher creates a publisher posting to chatID.
func NewChannelPublisher(sender Sender, chatID int64) *ChannelPublisher {
	return &ChannelPublisher{sender: sender, chat: tele.ChatID(chatID)}
}

// Publish implements Publisher.
func (p *ChannelPublisher) Publish(_ context.Context, ev Event) error {
	if _, err := p.sender.Send(p.chat, Format(ev), tele.Silent); err != nil {
		return fmt.Errorf("failed to publish to channel: %w", err)
	}
	return nil
}
