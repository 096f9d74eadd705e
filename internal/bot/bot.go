// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/config"
	"casino-bot/internal/handler"
)

// NewClient creates the telebot instance. It is built before the games so
// the channel publisher and crash display can share it.
func NewClient(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Unhandled bot error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// Bot wraps the telebot instance with application handlers.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	private *PrivateAllowList

	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	gameHandler    *handler.GameHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	AccountHandler *handler.AccountHandler
	AdminHandler   *handler.AdminHandler
	GameHandler    *handler.GameHandler
}

// New registers middleware and handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		private:        NewPrivateAllowList(),
		accountHandler: deps.AccountHandler,
		adminHandler:   deps.AdminHandler,
		gameHandler:    deps.GameHandler,
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.private))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/withdraw", b.accountHandler.HandleWithdraw)

	// Game handlers
	b.bot.Handle("/games", b.gameHandler.HandleGames)
	b.bot.Handle("/crash", b.gameHandler.HandleCrash)
	b.bot.Handle("/mines", b.gameHandler.HandleMines)
	b.bot.Handle(tele.OnCallback, b.gameHandler.HandleCallback)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/adjust", b.adminHandler.HandleAdjust)
	adminGroup.Handle("/deposit", b.adminHandler.HandleDeposit)
	adminGroup.Handle("/bonus", b.adminHandler.HandleBonus)
	adminGroup.Handle("/withdrawals", b.adminHandler.HandleWithdrawals)
	adminGroup.Handle("/approve", b.adminHandler.HandleApprove)
	adminGroup.Handle("/reject", b.adminHandler.HandleReject)
	adminGroup.Handle("/setlimits", b.adminHandler.HandleSetLimits)
	adminGroup.Handle("/setref", b.adminHandler.HandleSetReferral)
	adminGroup.Handle("/audit", b.adminHandler.HandleAudit)
}

// Start starts the bot polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
