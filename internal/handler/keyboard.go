package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/fairness"
	"casino-bot/internal/game/mines"
)

// Callback data.
const (
	CallbackCrashCashOut = "crash:cashout"
	CallbackCrashStop    = "crash:stop"
	CallbackMinesOpen    = "mines:open:" // mines:open:<index>
	CallbackMinesCashOut = "mines:cashout"
	CallbackMinesNoop    = "mines:noop"
)

// BuildCrashKeyboard creates the controls of a running crash round.
func BuildCrashKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("💰 Cash out", CallbackCrashCashOut),
		markup.Data("⏹ Stop", CallbackCrashStop),
	))
	return markup
}

// BuildMinesKeyboard renders the grid. Hidden cells of an active round open
// on tap; everything else is inert.
func BuildMinesKeyboard(v *mines.View) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	side := gridSide(v.Cells)

	mined := make(map[int]bool, len(v.MineCells))
	for _, i := range v.MineCells {
		mined[i] = true
	}
	active := v.State == mines.StateActive

	var rows []tele.Row
	for y := 0; y < side; y++ {
		var row []tele.Btn
		for x := 0; x < side; x++ {
			i := y*side + x
			if i >= v.Cells {
				break
			}
			label, data := "⬜", CallbackMinesNoop
			switch {
			case i == v.HitCell:
				label = "💥"
			case mined[i]:
				label = "💣"
			case v.Opened[i]:
				label = "💎"
			case active:
				data = CallbackMinesOpen + strconv.Itoa(i)
			}
			row = append(row, markup.Data(label, data))
		}
		rows = append(rows, markup.Row(row...))
	}

	if active && v.SafeOpened > 0 {
		cashOut := fmt.Sprintf("💰 Cash out x%s (%d)", v.Multiplier.StringFixed(fairness.Places), fairness.Payout(v.Bet, v.Multiplier))
		rows = append(rows, markup.Row(markup.Data(cashOut, CallbackMinesCashOut)))
	}

	markup.Inline(rows...)
	return markup
}

// parseOpen extracts the cell index from a mines:open callback.
func parseOpen(data string) (int, bool) {
	rest, ok := strings.CutPrefix(data, CallbackMinesOpen)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return i, true
}

func gridSide(cells int) int {
	side := 1
	for side*side < cells {
		side++
	}
	return side
}
