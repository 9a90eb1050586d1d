package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/zeromonos/api"
	"github.com/Domenick1991/zeromonos/config"
	"github.com/Domenick1991/zeromonos/internal/bootstrap"
	"github.com/Domenick1991/zeromonos/internal/cache"
	"github.com/Domenick1991/zeromonos/internal/kafka"
	"github.com/Domenick1991/zeromonos/internal/receipt"
	"github.com/Domenick1991/zeromonos/internal/repository"
	"github.com/Domenick1991/zeromonos/internal/service/booking"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
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

	logger, err := bootstrap.SetupLogger(cfg.Log, os.Stdout, "booking-api")
	if err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bookingRepo repository.BookingRepository
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("migrate schema")
			}
		}
		bookingRepo = repository.NewBookingRepository(pool)
	default:
		bookingRepo = repository.NewMemoryBookingRepository()
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("booking store ready")

	rules, err := bootstrap.BookingRules(cfg.Booking)
	if err != nil {
		log.Fatal().Err(err).Msg("booking rules")
	}
	bookingOpts := []booking.BookingServiceOption{booking.WithRules(rules)}

	var municipalities *municipality.MunicipalityService
	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Municipalities.CacheTTL())
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable, continuing")
		}
		municipalities = bootstrap.MunicipalityService(cfg.Municipalities, redisCache)
		bookingOpts = append(bookingOpts, booking.WithSlotLocker(redisCache))
	} else {
		municipalities = bootstrap.MunicipalityService(cfg.Municipalities, nil)
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("kafka not reachable, continuing")
		}
		bookingOpts = append(bookingOpts,
			booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	bookingService := booking.NewBookingService(bookingRepo, municipalities, bookingOpts...)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(
		cfg.HTTP,
		logger,
		api.NewBookingHandler(bookingService, receipt.NewGenerator(cfg.HTTP.PublicURL)),
		api.NewMunicipalityHandler(municipalities),
	)

	if err := bootstrap.Run(ctx, cfg.HTTP.Address, router); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
