// Package main is the entry point for the casino bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"casino-bot/internal/admission"
	"casino-bot/internal/api"
	"casino-bot/internal/bot"
	"casino-bot/internal/config"
	"casino-bot/internal/fairness"
	"casino-bot/internal/game"
	"casino-bot/internal/game/crash"
	"casino-bot/internal/game/mines"
	"casino-bot/internal/handler"
	"casino-bot/internal/model"
	"casino-bot/internal/notify"
	"casino-bot/internal/pkg/clock"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/repository"
	"casino-bot/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(&cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Repositories
	tx := db.NewTransactor(dbPool.Pool, cfg.Database.TxRetries)
	userRepo := repository.NewUserRepository(dbPool.Pool)
	walletRepo := repository.NewWalletRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	settingsRepo := repository.NewSettingsRepository(dbPool.Pool)
	referralRepo := repository.NewReferralRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)

	// Services
	balances := service.NewBalanceLedger(tx, walletRepo, ledgerRepo)
	wagers := service.NewWagerService(balances, walletRepo)
	accounts := service.NewAccountService(tx, userRepo, walletRepo, ledgerRepo, balances)
	withdrawals := service.NewWithdrawalService(tx, balances, withdrawalRepo, cfg.Withdrawal.MinAmount)
	referrals := service.NewReferralService(tx, userRepo, settingsRepo, referralRepo, balances, cfg.Referral.DefaultPercent)

	// Admission
	clk := clock.System{}
	cooldowns, closeCooldowns, err := newCooldownStore(ctx, cfg, clk)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cooldown store")
	}
	defer closeCooldowns()

	fallback := model.BetLimits{MinBet: cfg.Wager.DefaultMinBet, MaxBet: cfg.Wager.DefaultMaxBet}
	limits := admission.NewLimitsCache(settingsRepo, cfg.Wager.LimitsCacheTTL, fallback, clk)
	guard := admission.NewGuard(limits, cooldowns, cfg.Wager.Cooldown)

	// Telegram client, shared by the handlers, the channel publisher and the crash display
	teleBot, err := bot.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	var publisher notify.Publisher = notify.LogPublisher{}
	if cfg.Channel.GamesChatID != 0 {
		publisher = notify.NewChannelPublisher(teleBot, cfg.Channel.GamesChatID)
	}

	deps := game.Deps{
		Guard:     guard,
		Wagers:    wagers,
		Credits:   balances,
		Losses:    referrals,
		Publisher: publisher,
	}

	// Games
	display := handler.NewCrashDisplay(teleBot)
	crashTable := crash.NewTable(
		fairness.NewCrashEngine(cfg.Crash.HouseEdge, cfg.Crash.GrowthK, nil),
		deps, display, clk,
		crash.Options{Tick: cfg.Crash.Tick, DisplayInterval: cfg.Crash.DisplayInterval},
	)
	defer crashTable.Close()

	minesTable := mines.NewTable(
		fairness.NewMinesEngine(cfg.Mines.GridSize, cfg.Mines.HouseEdge, nil),
		deps, clk, cfg.Mines.RoundTTL,
	)

	gameRegistry := game.NewRegistry()
	for _, g := range []game.Game{crashTable, minesTable} {
		if err := gameRegistry.Register(g); err != nil {
			log.Fatal().Err(err).Str("game", g.Command()).Msg("Failed to register game")
		}
	}
	log.Info().Int("game_count", gameRegistry.Count()).Msg("Games registered")

	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:         cfg,
		AccountHandler: handler.NewAccountHandler(accounts, withdrawals),
		AdminHandler:   handler.NewAdminHandler(accounts, withdrawals, settingsRepo),
		GameHandler:    handler.NewGameHandler(gameRegistry, crashTable, minesTable, display),
	})

	server := api.NewServer(cfg.HTTP.Addr, api.NewHandler(dbPool, accounts, map[string]api.Counter{
		crash.Scope: crashTable,
		mines.Scope: minesTable,
	}))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		telegramBot.Start()
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Ops HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		minesTable.RunReaper(gctx, cfg.Mines.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		telegramBot.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown with error")
	}
	log.Info().Msg("Bot stopped gracefully")
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newCooldownStore picks the memory or Redis cooldown store.
func newCooldownStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (admission.CooldownStore, func(), error) {
	if cfg.Wager.CooldownStore != "redis" {
		return admission.NewMemoryCooldowns(clk), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis cooldown store")

	return admission.NewRedisCooldowns(client, "casino:cooldown:"), func() { _ = client.Close() }, nil
}
