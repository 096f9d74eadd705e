package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/repository"
	"casino-bot/internal/service"
)

// pendingPageSize is the number of withdrawals listed by /withdrawals.
const pendingPageSize = 20

// AdminHandler handles admin-only commands. Access is checked by middleware.
type AdminHandler struct {
	accounts    *service.AccountService
	withdrawals *service.WithdrawalService
	settings    *repository.SettingsRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts *service.AccountService, withdrawals *service.WithdrawalService, settings *repository.SettingsRepository) *AdminHandler {
	return &AdminHandler{accounts: accounts, withdrawals: withdrawals, settings: settings}
}

// HandleAdjust handles /adjust <user_id> <delta> <reason...>.
func (h *AdminHandler) HandleAdjust(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 3 {
		return c.Reply("Usage: /adjust <user_id> <delta> <reason>")
	}
	target, err := parseID("user id", args[0])
	if err != nil {
		return replyError(c, "adjust", err)
	}
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || delta == 0 {
		return replyError(c, "adjust", apperr.Invalid("delta", "delta must be a non-zero whole number"))
	}
	reason := strings.Join(args[2:], " ")

	w, err := h.accounts.Adjust(context.Background(), target, delta, reason, sender.ID)
	if err != nil {
		return replyError(c, "adjust", err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", target).
		Int64("delta", delta).
		Str("reason", reason).
		Msg("Admin adjustment executed")

	return c.Reply(fmt.Sprintf("✅ Adjusted %d by %+d\n%s", target, delta, formatWallet(w)))
}

// HandleDeposit handles /deposit <user_id> <amount> <reference>.
func (h *AdminHandler) HandleDeposit(c tele.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return c.Reply("Usage: /deposit <user_id> <amount> <reference>")
	}
	target, err := parseID("user id", args[0])
	if err != nil {
		return replyError(c, "deposit", err)
	}
	amount, err := parseAmount("amount", args[1])
	if err != nil {
		return replyError(c, "deposit", err)
	}

	w, err := h.accounts.Deposit(context.Background(), target, amount, "manual", args[2])
	if err != nil {
		return replyError(c, "deposit", err)
	}

	log.Info().Int64("admin_id", c.Sender().ID).Int64("target_id", target).Int64("amount", amount).Str("reference", args[2]).Msg("Deposit recorded")
	return c.Reply(fmt.Sprintf("✅ Deposited %d to %d\n%s", amount, target, formatWallet(w)))
}

// HandleBonus handles /bonus <user_id> <amount> <code>.
func (h *AdminHandler) HandleBonus(c tele.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return c.Reply("Usage: /bonus <user_id> <amount> <code>")
	}
	target, err := parseID("user id", args[0])
	if err != nil {
		return replyError(c, "bonus", err)
	}
	amount, err := parseAmount("amount", args[1])
	if err != nil {
		return replyError(c, "bonus", err)
	}

	w, err := h.accounts.Bonus(context.Background(), target, amount, args[2])
	if err != nil {
		return replyError(c, "bonus", err)
	}

	log.Info().Int64("admin_id", c.Sender().ID).Int64("target_id", target).Int64("amount", amount).Str("code", args[2]).Msg("Bonus granted")
	return c.Reply(fmt.Sprintf("🎁 Bonus %d to %d\n%s", amount, target, formatWallet(w)))
}

// HandleWithdrawals handles /withdrawals.
func (h *AdminHandler) HandleWithdrawals(c tele.Context) error {
	list, err := h.withdrawals.Pending(context.Background(), pendingPageSize)
	if err != nil {
		return replyError(c, "withdrawals", err)
	}
	if len(list) == 0 {
		return c.Reply("📭 No pending withdrawals.")
	}

	var b strings.Builder
	b.WriteString("📤 Pending withdrawals\n")
	for _, wd := range list {
		fmt.Fprintf(&b, "\n#%d user %d amount %d (%s)", wd.ID, wd.UserID, wd.Amount, wd.CreatedAt.Format("01-02 15:04"))
	}
	return c.Reply(b.String())
}

// HandleApprove handles /approve <withdrawal_id>.
func (h *AdminHandler) HandleApprove(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /approve <withdrawal_id>")
	}
	id, err := parseID("withdrawal id", args[0])
	if err != nil {
		return replyError(c, "approve", err)
	}

	wd, err := h.withdrawals.Approve(context.Background(), id)
	if err != nil {
		return h.replyWithdrawalError(c, "approve", id, err)
	}
	log.Info().Int64("admin_id", c.Sender().ID).Int64("withdrawal_id", id).Msg("Withdrawal approved")
	return c.Reply(fmt.Sprintf("✅ Withdrawal #%d approved (%d to user %d).", wd.ID, wd.Amount, wd.UserID))
}

// HandleReject handles /reject <withdrawal_id> [reason...].
func (h *AdminHandler) HandleReject(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /reject <withdrawal_id> [reason]")
	}
	id, err := parseID("withdrawal id", args[0])
	if err != nil {
		return replyError(c, "reject", err)
	}
	reason := strings.Join(args[1:], " ")

	wd, err := h.withdrawals.Reject(context.Background(), id, reason)
	if err != nil {
		return h.replyWithdrawalError(c, "reject", id, err)
	}
	log.Info().Int64("admin_id", c.Sender().ID).Int64("withdrawal_id", id).Str("reason", reason).Msg("Withdrawal rejected")
	return c.Reply(fmt.Sprintf("↩️ Withdrawal #%d rejected, %d returned to user %d.", wd.ID, wd.Amount, wd.UserID))
}

func (h *AdminHandler) replyWithdrawalError(c tele.Context, op string, id int64, err error) error {
	if errors.Is(err, repository.ErrWithdrawalNotFound) {
		return c.Reply(fmt.Sprintf("⚠️ Withdrawal #%d is not pending.", id))
	}
	return replyError(c, op, err)
}

// HandleSetLimits handles /setlimits <min> <max>.
func (h *AdminHandler) HandleSetLimits(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: /setlimits <min> <max>")
	}
	minBet, err := parseAmount("min", args[0])
	if err != nil {
		return replyError(c, "setlimits", err)
	}
	maxBet, err := parseAmount("max", args[1])
	if err != nil {
		return replyError(c, "setlimits", err)
	}
	limits := model.BetLimits{MinBet: minBet, MaxBet: maxBet}
	if !limits.Valid() {
		return replyError(c, "setlimits", apperr.Invalid("limits", "min must be below max"))
	}

	if err := h.settings.SetBetLimits(context.Background(), limits); err != nil {
		return replyError(c, "setlimits", err)
	}
	log.Info().Int64("admin_id", c.Sender().ID).Int64("min_bet", minBet).Int64("max_bet", maxBet).Msg("Bet limits updated")
	return c.Reply(fmt.Sprintf("✅ Bets now range from %d to %d.", minBet, maxBet))
}

// HandleSetReferral handles /setref <percent>.
func (h *AdminHandler) HandleSetReferral(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /setref <percent>")
	}
	percent, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || percent < 0 || percent > 100 {
		return replyError(c, "setref", apperr.Invalid("percent", "percent must be between 0 and 100"))
	}

	if err := h.settings.SetReferralPercent(context.Background(), percent); err != nil {
		return replyError(c, "setref", err)
	}
	log.Info().Int64("admin_id", c.Sender().ID).Int64("percent", percent).Msg("Referral percent updated")
	return c.Reply(fmt.Sprintf("✅ Referrers now earn %d%% of referral losses.", percent))
}

// HandleAudit handles /audit <user_id>.
func (h *AdminHandler) HandleAudit(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /audit <user_id>")
	}
	target, err := parseID("user id", args[0])
	if err != nil {
		return replyError(c, "audit", err)
	}

	report, err := h.accounts.Audit(context.Background(), target)
	if report == nil {
		return replyError(c, "audit", err)
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	status := "✅ consistent"
	if err != nil {
		status = "🚨 MISMATCH"
	}
	return c.Reply(fmt.Sprintf("%s\n\n%s", status, data))
}
