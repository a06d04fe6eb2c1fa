package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ttanlocc/VMPharmacy-sub000/internal/auth"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/basket"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/catalog"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/config"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/customer"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/db"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/events"
	posHttp "github.com/ttanlocc/VMPharmacy-sub000/internal/handler/http"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/order"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/pricing"
	"github.com/ttanlocc/VMPharmacy-sub000/migrations"
)

func main() {
	log.Logger = log.With().Str("service", "pos-service").Logger()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Str("env", cfg.App.Env).Msg("POS service starting...")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.ApplyMigrations(migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	policy, err := pricing.ParseRemainderPolicy(cfg.Pricing.RemainderPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pricing configuration")
	}
	distributor := pricing.NewDistributor(cfg.Pricing.CurrencyScale, policy)

	catalogRepo := catalog.NewRepository(pg.SQLX())
	customerRepo := customer.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool)
	basketRepo := basket.NewRepository(pg.Pool)

	var publisher order.EventPublisher = order.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing order events to Kafka")
	} else {
		log.Warn().Msg("Kafka brokers not configured, order events are disabled")
	}

	orderService := order.NewService(orderRepo, catalogRepo, customerRepo, distributor, publisher)

	router := posHttp.NewRouter(auth.Middleware(cfg.Auth.Secret),
		posHttp.NewOrderHandler(orderService),
		posHttp.NewTemplateHandler(catalog.NewExpander(catalogRepo)),
		posHttp.NewBasketHandler(basketRepo, orderService, distributor),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level := zerolog.InfoLevel
	if cfg.App.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(cfg.App.LogLevel)
		if err != nil {
			log.Warn().Str("log_level", cfg.App.LogLevel).Msg("Unknown log level, using info")
		} else {
			level = parsed
		}
	} else if cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
