package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/config"
	"github.com/BatmanBruc/convert-bot/internal/converter"
	"github.com/BatmanBruc/convert-bot/internal/dispatcher"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/internal/handlers"
	"github.com/BatmanBruc/convert-bot/internal/middleware"
	"github.com/BatmanBruc/convert-bot/internal/scheduler"
	"github.com/BatmanBruc/convert-bot/internal/session"
	"github.com/BatmanBruc/convert-bot/store"
	"github.com/BatmanBruc/convert-bot/types"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFile("config.env"); err != nil {
		slog.Warn("load env file", "error", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	history, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	registry := formats.Default()
	conv := converter.NewDefaultConverter(converter.Config{
		FFmpegPath:      cfg.FFmpegPath,
		SofficePath:     cfg.SofficePath,
		DocxRenderer:    cfg.DocxRenderer,
		FontPath:        cfg.FontPath,
		VideoTimeout:    cfg.VideoTimeout,
		DocumentTimeout: cfg.DocumentTimeout,
		Logger:          log,
	})

	taskScheduler := scheduler.NewScheduler(scheduler.Config{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		JobTimeout: cfg.JobTimeout,
		ScratchDir: cfg.ScratchDir,
		Logger:     log,
	})

	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		return err
	}

	conversation := handlers.NewConversation(handlers.ConversationConfig{
		Registry:   registry,
		Sessions:   session.NewManager(sessionStore),
		Dispatcher: dispatcher.New(registry, conv, log),
		Out:        handlers.NewTelegramOutbound(b),
		History:    history,
		Logger:     log,
	})
	h := handlers.NewHandlers(conversation, b, taskScheduler, handlers.NewTelegramDownloader(b, nil, 0), log)

	if err := taskScheduler.Start(); err != nil {
		return err
	}
	defer taskScheduler.Stop()

	middlewares := middleware.NewMessageAnalyzer(log)
	handlerChain := middlewares.RecoverMiddleware(
		middlewares.ResolveUserMiddleware(
			middlewares.AnalyzeMessageMiddleware(
				h.MainHandler,
			),
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	log.Info("bot started", "environment", cfg.Environment, "workers", cfg.Workers)
	b.Start(ctx)
	return nil
}

func openSessionStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (types.SessionStore, func(), error) {
	if cfg.Redis.Enabled() {
		rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, err
		}
		log.Info("sessions in redis", "addr", cfg.Redis.Addr())
		return store.NewRedisSessionStore(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }, nil
	}

	mem := session.NewMemoryStore(cfg.SessionTTL)
	go mem.Run(ctx, time.Minute)
	log.Info("sessions in memory", "ttl", cfg.SessionTTL)
	return mem, func() {}, nil
}

// openHistory prefers Postgres (POSTGRES_DSN or POSTGRES_HOST) and falls back to SQLite;
// nil means history is off.
func openHistory(ctx context.Context, cfg *config.Config, log *slog.Logger) (types.HistoryStore, error) {
	pgDSN := store.PostgresDSN(cfg.PostgresDSN)
	switch {
	case pgDSN != "":
		pg, err := store.NewPostgresHistory(ctx, pgDSN)
		if err != nil {
			return nil, err
		}
		log.Info("history in postgres")
		return pg, nil
	case cfg.HistorySQLitePath != "":
		lite, err := store.NewSQLiteHistory(ctx, cfg.HistorySQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("history in sqlite", "path", cfg.HistorySQLitePath)
		return lite, nil
	}
	log.Info("history disabled")
	return nil, nil
}
