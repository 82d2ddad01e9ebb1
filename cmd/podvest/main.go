package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/podvest/internal/application"
	"github.com/Spok95/podvest/internal/config"
	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/Spok95/podvest/internal/domain/pod"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/Spok95/podvest/internal/infra/db"
	"github.com/Spok95/podvest/internal/infra/events"
	httpx "github.com/Spok95/podvest/internal/infra/http"
	"github.com/Spok95/podvest/internal/infra/logger"
	"github.com/Spok95/podvest/internal/infra/metrics"
	"github.com/Spok95/podvest/internal/infra/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
)

func runMigrations(dsn, dir string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, dir)
}

type stores struct {
	pods     pod.Store
	settings settings.Store
	outbox   event.Outbox
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.Postgres.DSN == "" {
		log.Warn("no postgres dsn, state is kept in memory")
		outbox := event.NewMemoryOutbox()
		return stores{
			pods:     pod.NewMemStore(outbox),
			settings: settings.NewMemStore(outbox),
			outbox:   outbox,
			close:    func() {},
		}, nil
	}

	if !cfg.Postgres.SkipMigrations {
		if err := runMigrations(cfg.Postgres.DSN, cfg.Postgres.MigrationsDir); err != nil {
			return stores{}, err
		}
		log.Info("migrations applied")
	}
	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return stores{}, err
	}
	log.Info("db connected")
	return stores{
		pods:     pod.NewRepo(pool),
		settings: settings.NewRepo(pool),
		outbox:   event.NewRepo(pool),
		close:    pool.Close,
	}, nil
}

func sinks(cfg config.Config, log *slog.Logger) ([]events.Sink, func()) {
	out := []events.Sink{events.NewLogSink(log)}
	closers := []func(){}

	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.KafkaTopicByEvent())
		if err != nil {
			log.Error("kafka publisher disabled", "err", err)
		} else {
			out = append(out, kp)
			closers = append(closers, func() { _ = kp.Close() })
			log.Info("kafka publisher enabled", "brokers", cfg.Kafka.Brokers)
		}
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram notifier disabled", "err", err)
		} else {
			out = append(out, telegram.New(api, log, cfg.Telegram.AdminChatID))
			log.Info("telegram notifier enabled", "bot", api.Self.UserName)
		}
	}

	return out, func() {
		for _, c := range closers {
			c()
		}
	}
}

func main() {
	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", "err", err)
		return
	}
	defer st.close()

	reg, err := settings.New(cfg.Settings, cfg.Platform.AdminToken)
	if err != nil {
		log.Error("invalid platform settings", "err", err)
		return
	}
	if _, err := st.settings.Init(ctx, reg); err != nil {
		log.Error("settings init failed", "err", err)
		return
	}

	svc := application.NewService(application.Dependencies{
		Pods:     st.pods,
		Settings: st.settings,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Log:      log,
	})

	sinkList, closeSinks := sinks(cfg, log)
	defer closeSinks()
	relay := events.NewRelay(log, st.outbox, cfg.Outbox.Interval, cfg.Outbox.BatchSize, sinkList...)
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("outbox relay stopped", "err", err)
		}
	}()

	srv := httpx.New(cfg.HTTP.Addr, httpx.NewRouter(httpx.NewHandler(svc, log)), cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
