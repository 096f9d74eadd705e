package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/fairness"
	"casino-bot/internal/game"
	"casino-bot/internal/game/crash"
	"casino-bot/internal/game/mines"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/lock"
)

// GameHandler handles game commands and their inline buttons.
type GameHandler struct {
	registry *game.Registry
	crash    *crash.Table
	mines    *mines.Table
	display  *CrashDisplay
	userLock *lock.UserLock
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(registry *game.Registry, crashTable *crash.Table, minesTable *mines.Table, display *CrashDisplay) *GameHandler {
	return &GameHandler{
		registry: registry,
		crash:    crashTable,
		mines:    minesTable,
		display:  display,
		userLock: lock.NewUserLock(),
	}
}

// HandleGames handles /games.
func (h *GameHandler) HandleGames(c tele.Context) error {
	var b strings.Builder
	b.WriteString("🎮 Games\n")
	for _, g := range h.registry.List() {
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", g.Name(), g.Description(), g.Usage())
	}
	return c.Reply(b.String())
}

// HandleCrash handles /crash <bet>.
func (h *GameHandler) HandleCrash(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: " + h.crash.Usage())
	}
	bet, err := parseAmount("bet", args[0])
	if err != nil {
		return replyError(c, "crash", err)
	}

	err = h.userLock.TryWithLock(sender.ID, func() error {
		r, err := h.crash.Start(context.Background(), sender.ID, displayName(sender), bet)
		if err != nil {
			return err
		}
		msg, err := c.Bot().Reply(c.Message(), crashRunningText(bet, fairness.CashOutMultiplier(1)), BuildCrashKeyboard())
		if err != nil {
			log.Warn().Err(err).Str("round_id", r.ID).Msg("Failed to send crash round message")
			return nil
		}
		h.display.Track(r.ID, msg)
		return nil
	})
	if err != nil {
		return replyError(c, "crash", err)
	}
	return nil
}

// HandleMines handles /mines <bet> <mines>.
func (h *GameHandler) HandleMines(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: " + h.mines.Usage())
	}
	bet, err := parseAmount("bet", args[0])
	if err != nil {
		return replyError(c, "mines", err)
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return replyError(c, "mines", apperr.Invalid("mines", "mine count must be a number"))
	}

	var v *mines.View
	err = h.userLock.TryWithLock(sender.ID, func() error {
		var err error
		v, err = h.mines.Start(context.Background(), sender.ID, displayName(sender), bet, count)
		return err
	})
	if err != nil {
		return replyError(c, "mines", err)
	}
	return c.Reply(minesText(v), BuildMinesKeyboard(v))
}

// HandleCallback routes crash and mines buttons.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if !ownsRound(c) {
		return c.Respond(&tele.CallbackResponse{Text: "This is not your round."})
	}

	data := callbackData(c)
	log.Debug().Int64("user_id", sender.ID).Str("data", data).Msg("Callback received")

	err := h.userLock.TryWithLock(sender.ID, func() error {
		switch {
		case data == CallbackCrashCashOut:
			return h.crashCashOut(c)
		case data == CallbackCrashStop:
			return h.crashStop(c)
		case data == CallbackMinesCashOut:
			return h.minesCashOut(c)
		case strings.HasPrefix(data, CallbackMinesOpen):
			i, ok := parseOpen(data)
			if !ok {
				return apperr.Invalid("cell", "unknown cell")
			}
			return h.minesOpen(c, i)
		}
		return c.Respond()
	})
	if errors.Is(err, lock.ErrBusy) {
		return c.Respond(&tele.CallbackResponse{Text: "⏳"})
	}
	if err != nil {
		return replyError(c, "callback", err)
	}
	return nil
}

func (h *GameHandler) crashCashOut(c tele.Context) error {
	res, err := h.crash.CashOut(context.Background(), c.Sender().ID)
	if err != nil {
		return err
	}
	h.display.Forget(res.RoundID)

	text := crashWonText(res)
	if res.Crashed {
		text = "💥 Too late!\n\n" + crashLostText(res.Bet, res.CrashAt)
	}
	if err := c.Edit(text); err != nil {
		log.Debug().Err(err).Str("round_id", res.RoundID).Msg("Failed to edit crash message")
	}
	return c.Respond()
}

func (h *GameHandler) crashStop(c tele.Context) error {
	r, ok := h.crash.Active(c.Sender().ID)
	if !ok {
		return apperr.ErrNoActiveRound
	}
	if err := h.crash.Stop(c.Sender().ID); err != nil {
		return err
	}
	h.display.Forget(r.ID)
	if err := c.Edit(fmt.Sprintf("⏹ Round stopped. The bet of %d is not returned.", r.Bet)); err != nil {
		log.Debug().Err(err).Msg("Failed to edit crash message")
	}
	return c.Respond()
}

func (h *GameHandler) minesOpen(c tele.Context, index int) error {
	v, err := h.mines.Open(context.Background(), c.Sender().ID, index)
	if err != nil {
		return err
	}
	if err := c.Edit(minesText(v), BuildMinesKeyboard(v)); err != nil {
		log.Debug().Err(err).Str("round_id", v.RoundID).Msg("Failed to edit mines message")
	}
	return c.Respond()
}

func (h *GameHandler) minesCashOut(c tele.Context) error {
	v, err := h.mines.CashOut(context.Background(), c.Sender().ID)
	if err != nil {
		return err
	}
	if err := c.Edit(minesText(v), BuildMinesKeyboard(v)); err != nil {
		log.Debug().Err(err).Str("round_id", v.RoundID).Msg("Failed to edit mines message")
	}
	return c.Respond()
}

// ownsRound reports whether the button was pressed by the player the round
// message replied to.
func ownsRound(c tele.Context) bool {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || cb.Message.ReplyTo == nil || cb.Message.ReplyTo.Sender == nil {
		return true
	}
	return cb.Message.ReplyTo.Sender.ID == c.Sender().ID
}

func minesText(v *mines.View) string {
	head := fmt.Sprintf("💣 Mines | bet %d | %d mines", v.Bet, v.Mines)
	switch v.State {
	case mines.StateExploded:
		return fmt.Sprintf("%s\n\n💥 Boom! Lost %d.", head, v.Bet)
	case mines.StateCashedOut:
		return fmt.Sprintf("%s\n\n✅ Cashed out at x%s after %d cells.\nWon %d\n💰 Balance: %d",
			head, v.Multiplier.StringFixed(fairness.Places), v.SafeOpened, v.Payout, v.Balance)
	}
	if v.SafeOpened == 0 {
		return fmt.Sprintf("%s\n\nOpen a cell. First safe cell pays x%s.", head, v.Next.StringFixed(fairness.Places))
	}
	text := fmt.Sprintf("%s\n\n💎 %d safe | x%s", head, v.SafeOpened, v.Multiplier.StringFixed(fairness.Places))
	if !v.Next.IsZero() {
		text += fmt.Sprintf(" | next x%s", v.Next.StringFixed(fairness.Places))
	}
	return text
}
