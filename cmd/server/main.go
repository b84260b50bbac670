package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tradedesk/internal/api"
	"tradedesk/internal/config"
	"tradedesk/internal/events"
	"tradedesk/internal/logger"
	"tradedesk/internal/pricefeed"
	"tradedesk/internal/repository"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	if err := repository.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	db, err := repository.NewDatabase(cfg.Database.URL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	prices := pricefeed.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SnapshotTopic)
	defer producer.Close()
	consumer := events.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.ExecutionTopic, cfg.Kafka.GroupID,
		db, prices, producer, log,
	)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("execution consumer stopped", zap.Error(err))
			stop()
		}
	}()

	limiter := api.NewRateLimiter(cfg.Server.BacktestRateCap, time.Minute)
	handlers := api.NewHandlers(db, prices, limiter, log)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
