package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-meme-bot/internal/adapters/bot"
	"tg-meme-bot/internal/adapters/repo"
	"tg-meme-bot/internal/adapters/telegram"
	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/cache"
	"tg-meme-bot/internal/infra/config"
	"tg-meme-bot/internal/infra/db"
	applog "tg-meme-bot/internal/infra/log"
	"tg-meme-bot/internal/infra/metrics"
	"tg-meme-bot/internal/infra/retry"
	"tg-meme-bot/internal/infra/telemetry"
	"tg-meme-bot/internal/usecase/broadcast"
	"tg-meme-bot/internal/usecase/memes"
	"tg-meme-bot/internal/usecase/reactions"
	"tg-meme-bot/internal/usecase/subscription"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	if cfg.PGDSN == "" {
		logger.Fatal().Msg("bot: не указана строка подключения к БД (PG_DSN)")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: нет подключения к БД")
	}
	defer pool.Close()

	telemetryClient := telemetry.New(logger)
	policy := retry.NewPolicy(telemetryClient)
	store := repo.NewPostgres(pool, policy)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось создать схему")
	}

	var modeCache domain.Cache
	if cfg.RedisAddr != "" {
		modeCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI)

	subsService := subscription.NewService(store, modeCache, cfg.Limits.ModeCacheTTL)
	reactionsService := reactions.NewService(store)
	broadcastService := broadcast.NewService(store, store, sender, logger.With().Str("component", "broadcast").Logger())
	memesService := memes.NewService(store)

	handler := bot.NewHandler(
		sender,
		logger.With().Str("component", "bot").Logger(),
		telemetryClient,
		subsService,
		reactionsService,
		broadcastService,
		memesService,
		cfg.Limits.MinPhotoHeight,
	)

	registerCommands(botAPI, logger)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: router}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("bot: ops-сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("bot: ops-сервер остановлен")
		}
	}()

	poller := bot.NewPoller(botAPI, handler, logger.With().Str("component", "poller").Logger(), cfg.Telegram.PollTimeout, cfg.Limits.Workers)
	logger.Info().Msg("bot: приём апдейтов запущен")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("bot: поллер остановлен с ошибкой")
	}

	logger.Info().Msg("bot: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// registerCommands публикует список команд бота на платформе.
func registerCommands(botAPI *tgbotapi.BotAPI, logger zerolog.Logger) {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "random_meme", Description: "Випадковий мем."},
		tgbotapi.BotCommand{Command: "subscribe", Description: "Підписатися на розсилку."},
		tgbotapi.BotCommand{Command: "unsubscribe", Description: "Відписатися від розсилки."},
		tgbotapi.BotCommand{Command: "start", Description: "З чого почати."},
	)
	if _, err := botAPI.Request(commands); err != nil {
		logger.Error().Err(err).Msg("bot: не удалось зарегистрировать команды")
	}
}
