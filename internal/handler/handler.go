// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/lock"
)

// displayName returns the best available name for a Telegram user.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("id%d", u.ID)
}

// replyError logs unexpected failures and answers with the user-facing text.
func replyError(c tele.Context, op string, err error) error {
	if errors.Is(err, lock.ErrBusy) {
		return nil
	}
	if !expected(err) {
		ev := log.Error().Err(err).Str("op", op)
		if s := c.Sender(); s != nil {
			ev = ev.Int64("user_id", s.ID)
		}
		ev.Msg("Handler failed")
	}
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: apperr.UserMessage(err), ShowAlert: true})
	}
	return c.Reply(apperr.UserMessage(err))
}

// expected reports whether err is a normal negative outcome rather than a fault.
func expected(err error) bool {
	var cd *apperr.CooldownError
	return apperr.IsValidation(err) ||
		errors.As(err, &cd) ||
		errors.Is(err, apperr.ErrInsufficientFunds) ||
		errors.Is(err, apperr.ErrRoundActive) ||
		errors.Is(err, apperr.ErrNoActiveRound) ||
		errors.Is(err, apperr.ErrUserNotFound)
}

// parseAmount parses a positive integer argument.
func parseAmount(field, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid(field, "%s must be a positive whole number", field)
	}
	return n, nil
}

// parseID parses a user or withdrawal id argument.
func parseID(field, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Invalid(field, "%s must be a numeric id", field)
	}
	return n, nil
}

// callbackData strips the prefix telebot adds to inline button data.
func callbackData(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	return strings.TrimPrefix(cb.Data, "\f")
}
