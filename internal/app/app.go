package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/callmebot"
	"github.com/haowern98/Telebot/internal/config"
	"github.com/haowern98/Telebot/internal/domain"
	"github.com/haowern98/Telebot/internal/scheduler"
	"github.com/haowern98/Telebot/internal/store"
	"github.com/haowern98/Telebot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	store   *store.Store
	engine  *scheduler.Engine
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	st, err := store.Open(store.Config{
		Dir:             cfg.DataDir,
		MaxCallsPerUser: cfg.MaxCallsPerUser,
		Message: domain.MessageBounds{
			Min: cfg.MinMessageLength,
			Max: cfg.MaxMessageLength,
		},
		DefaultLanguage:     cfg.DefaultLanguage,
		DefaultRepeat:       cfg.DefaultRepeat,
		DefaultTimeout:      cfg.DefaultTimeout,
		DefaultSendTextCopy: true,
		DefaultTimezone:     cfg.DefaultTZ,
	}, log)
	if err != nil {
		return nil, err
	}

	gateway := callmebot.New(callmebot.Config{
		Endpoint:      cfg.CallMeBotURL,
		Timeout:       cfg.HTTPTimeout,
		MaxMessageLen: cfg.MaxMessageLength,
	}, log)

	engine := scheduler.New(st, gateway, log, scheduler.Config{
		CheckInterval:    cfg.CheckInterval,
		DeliveryTimeout:  cfg.DeliveryTimeout,
		MaxRetries:       cfg.MaxCallRetries,
		RetryBackoffBase: cfg.RetryBackoffBase,
		FallbackTZ:       cfg.DefaultTZ,
		RetentionAge:     cfg.RetentionAge,
	})

	router := telegram.NewRouter(bot, log, st, engine, gateway, cfg.DefaultTZ)

	a := &App{
		cfg:    cfg,
		log:    log,
		bot:    bot,
		store:  st,
		engine: engine,
		router: router,
	}
	a.httpSrv = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.opsHandler(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	return a, nil
}

// opsHandler serves the operational endpoints: liveness and runtime counters.
func (a *App) opsHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"store":  a.store.Stats(),
			"engine": a.engine.Stats(),
		})
	})
	return r
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting call-scheduler-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("data_dir", a.cfg.DataDir),
		zap.String("default_tz", a.cfg.DefaultTZ),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		a.engine.Run(ctx)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Wait for in-flight deliveries before tearing anything down.
			<-engineDone

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
