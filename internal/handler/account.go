package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/model"
	"casino-bot/internal/service"
)

// historyPageSize is the number of ledger rows shown by /history.
const historyPageSize = 10

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accounts    *service.AccountService
	withdrawals *service.WithdrawalService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, withdrawals *service.WithdrawalService) *AccountHandler {
	return &AccountHandler{accounts: accounts, withdrawals: withdrawals}
}

// HandleStart handles /start [referrer_id]. It opens the account on first use.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var referrer *int64
	if args := c.Args(); len(args) > 0 {
		if id, err := parseID("referrer", args[0]); err == nil {
			referrer = &id
		}
	}

	name := displayName(sender)
	user, created, err := h.accounts.EnsureUser(ctx, sender.ID, name, referrer)
	if err != nil {
		return replyError(c, "start", err)
	}

	w, err := h.accounts.GetWallet(ctx, sender.ID)
	if err != nil {
		return replyError(c, "start", err)
	}

	if created {
		log.Info().Int64("user_id", sender.ID).Bool("referred", user.ReferrerID != nil).Msg("User registered")
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome @%s!\n\n"+
				"Your account is open. Balance: %d\n\n"+
				"/games - list games\n"+
				"/balance - show balance\n"+
				"/history - recent activity\n"+
				"/withdraw <amount> - request a withdrawal",
			name, w.Spendable,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back @%s!\n\nBalance: %d", name, w.Spendable))
}

// HandleBalance handles /balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	w, err := h.accounts.GetWallet(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, "balance", err)
	}
	return c.Reply(formatWallet(w))
}

// HandleHistory handles /history.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entries, err := h.accounts.Statement(context.Background(), sender.ID, time.Time{}, historyPageSize)
	if err != nil {
		return replyError(c, "history", err)
	}
	return c.Reply(formatHistory(entries))
}

// HandleWithdraw handles /withdraw <amount>.
func (h *AccountHandler) HandleWithdraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /withdraw <amount>")
	}
	amount, err := parseAmount("amount", args[0])
	if err != nil {
		return replyError(c, "withdraw", err)
	}

	wd, err := h.withdrawals.Request(context.Background(), sender.ID, amount)
	if err != nil {
		return replyError(c, "withdraw", err)
	}
	return c.Reply(fmt.Sprintf("📤 Withdrawal #%d of %d requested. It will be processed by an admin.", wd.ID, wd.Amount))
}

func formatWallet(w *model.Wallet) string {
	if w.Reserved > 0 {
		return fmt.Sprintf("💰 Balance: %d\n🔒 Pending withdrawal: %d", w.Spendable, w.Reserved)
	}
	return fmt.Sprintf("💰 Balance: %d", w.Spendable)
}

func formatHistory(entries []*model.LedgerEntry) string {
	if len(entries) == 0 {
		return "📜 No activity yet."
	}

	var b strings.Builder
	b.WriteString("📜 Recent activity\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s %+d %s", e.CreatedAt.Format("01-02 15:04"), e.Amount, describeEntry(e))
	}
	return b.String()
}

func describeEntry(e *model.LedgerEntry) string {
	m := e.Meta
	switch {
	case m == nil:
		return string(e.Type)
	case m.Game != nil && m.Game.Multiplier != "":
		return fmt.Sprintf("%s %s x%s", e.Type, m.Game.Game, m.Game.Multiplier)
	case m.Game != nil:
		return fmt.Sprintf("%s %s", e.Type, m.Game.Game)
	case m.Withdrawal != nil:
		return fmt.Sprintf("%s #%d %s", e.Type, m.Withdrawal.WithdrawalID, strings.ToLower(m.Withdrawal.Action))
	case m.Referral != nil:
		return fmt.Sprintf("%s from %d", e.Type, m.Referral.ReferralID)
	case m.Adjust != nil:
		return fmt.Sprintf("%s %s", e.Type, m.Adjust.Reason)
	}
	return string(e.Type)
}
