package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/zeromonos/config"
	"github.com/Domenick1991/zeromonos/internal/bootstrap"
	"github.com/Domenick1991/zeromonos/internal/cache"
	"github.com/Domenick1991/zeromonos/internal/kafka"
	"github.com/Domenick1991/zeromonos/internal/notify"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	cfgPath := pflag.StringP("config", "c", defaultPath, "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
	}

	logger, err := bootstrap.SetupLogger(cfg.Log, os.Stdout, "booking-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var municipalities *municipality.MunicipalityService
	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Municipalities.CacheTTL())
		defer redisCache.Close()
		municipalities = bootstrap.MunicipalityService(cfg.Municipalities, redisCache)
	} else {
		municipalities = bootstrap.MunicipalityService(cfg.Municipalities, nil)
	}

	if cfg.Kafka.Enabled() && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		sender := notify.NewSender(logger)
		go func() {
			if err := consumer.Consume(ctx, sender.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("topic", cfg.Kafka.NotificationsTopic).Msg("consumer stopped")
				stop()
			}
		}()
		log.Info().Str("topic", cfg.Kafka.NotificationsTopic).Str("group", cfg.Kafka.GroupID).Msg("consuming booking notifications")
	} else {
		log.Warn().Msg("kafka notifications topic not configured, only refreshing municipalities")
	}

	refresh := func() {
		names, err := municipalities.Refresh(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("refresh municipalities")
			return
		}
		log.Info().Int("count", len(names)).Msg("municipalities refreshed")
	}
	refresh()

	refreshTicker := time.NewTicker(time.Duration(cfg.Worker.MunicipalityRefreshMinutes) * time.Minute)
	defer refreshTicker.Stop()

	for {
		select {
		case <-refreshTicker.C:
			refresh()
		case <-ctx.Done():
			log.Info().Msg("shutting down worker")
			return
		}
	}
}
