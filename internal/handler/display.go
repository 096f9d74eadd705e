package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/fairness"
	"casino-bot/internal/game/crash"
)

// Editor edits a sent message. *tele.Bot satisfies it.
type Editor interface {
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// CrashDisplay keeps each running crash round's message up to date.
type CrashDisplay struct {
	editor Editor

	mu   sync.Mutex
	msgs map[string]tele.StoredMessage
}

// NewCrashDisplay creates a CrashDisplay.
func NewCrashDisplay(editor Editor) *CrashDisplay {
	return &CrashDisplay{editor: editor, msgs: make(map[string]tele.StoredMessage)}
}

// Track binds a round to the message showing it.
func (d *CrashDisplay) Track(roundID string, msg *tele.Message) {
	if msg == nil {
		return
	}
	id, chatID := msg.MessageSig()
	d.mu.Lock()
	d.msgs[roundID] = tele.StoredMessage{MessageID: id, ChatID: chatID}
	d.mu.Unlock()
}

// Forget drops a round's message binding.
func (d *CrashDisplay) Forget(roundID string) {
	d.mu.Lock()
	delete(d.msgs, roundID)
	d.mu.Unlock()
}

// Tracked returns the number of bound rounds.
func (d *CrashDisplay) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

func (d *CrashDisplay) lookup(roundID string) (tele.StoredMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.msgs[roundID]
	return m, ok
}

// Update implements crash.Display.
func (d *CrashDisplay) Update(ctx context.Context, r *crash.Round, multiplier decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, ok := d.lookup(r.ID)
	if !ok {
		return nil
	}
	_, err := d.editor.Edit(msg, crashRunningText(r.Bet, multiplier), BuildCrashKeyboard())
	return err
}

// Crashed implements crash.Display.
func (d *CrashDisplay) Crashed(ctx context.Context, r *crash.Round) error {
	msg, ok := d.lookup(r.ID)
	if !ok {
		return nil
	}
	d.Forget(r.ID)
	if err := ctx.Err(); err != nil {
		return err
	}
	point, _ := r.CrashPoint()
	_, err := d.editor.Edit(msg, crashLostText(r.Bet, point))
	return err
}

func crashRunningText(bet int64, multiplier decimal.Decimal) string {
	return fmt.Sprintf(
		"🚀 Crash | bet %d\n\n📈 x%s\n💰 Cash out now for %d",
		bet, multiplier.StringFixed(fairness.Places), fairness.Payout(bet, multiplier),
	)
}

func crashLostText(bet int64, point decimal.Decimal) string {
	return fmt.Sprintf("💥 Crashed at x%s\n\nLost %d.", point.StringFixed(fairness.Places), bet)
}

func crashWonText(res *crash.Result) string {
	return fmt.Sprintf(
		"✅ Cashed out at x%s\n\nWon %d (crash point was x%s)\n💰 Balance: %d",
		res.Multiplier.StringFixed(fairness.Places), res.Payout,
		res.CrashAt.StringFixed(fairness.Places), res.Balance,
	)
}
