package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/config"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/endpoints"
	"github.com/Nixie-Tech-LLC/marquee/internal/jobs"
	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer db.DB.Close()

	if err := db.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	store := db.NewStore(db.DB, cfg.Location)
	m := metrics.New(nil)
	deps := &endpoints.Deps{
		Store:       store,
		Metrics:     m,
		HorizonDays: cfg.ExpansionHorizonDays,
	}

	runner := jobs.NewRunner(cfg.Location)
	if cfg.CacheEnabled() {
		rdb := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		defer rdb.Close()

		cache := redis.NewScheduleCache(rdb)
		refresher := jobs.NewRefresher(store, cache, cfg.Location, m)
		deps.Cache = cache
		deps.Refresher = refresher

		if err := runner.ScheduleRefresh(cfg.CacheRefreshSpec, refresher); err != nil {
			log.Fatal().Err(err).Msg("cache refresh job")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := refresher.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial cache refresh failed")
		}
		cancel()
	} else {
		log.Info().Msg("REDIS_ADDRESS not set, schedule cache disabled")
	}

	if cfg.NotificationsEnabled() {
		pub, err := notify.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect")
		}
		defer pub.Close()
		deps.Notifier = notify.NewNotifier(pub, store, cfg.Location, m)
	} else {
		log.Info().Msg("MQTT_BROKER_URL not set, schedule notifications disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, deps)

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}

	runner.Start()
	go func() {
		log.Info().Str("addr", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	runner.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
