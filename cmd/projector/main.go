package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/config"
	kafkax "github.com/ariefcatur/equipment-orders/internal/kafka"
	"github.com/ariefcatur/equipment-orders/internal/logging"
	"github.com/ariefcatur/equipment-orders/internal/projector"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	name := cfg.ServiceName + "-projector"
	logger, err := logging.New(name, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, name, logger); err != nil {
		logger.Fatal("projector exited", zap.Error(err))
	}
}

func run(cfg config.Config, name string, logger *zap.Logger) error {
	if cfg.RedisAddr == "" || len(cfg.KafkaBrokers) == 0 {
		return errors.New("projector needs REDIS_ADDR and KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return err
	}

	svc := &projector.Service{
		Redis:       rdb,
		Cache:       redisx.NewStockCache(rdb),
		Logger:      logger,
		ServiceName: name,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, catalog.TopicEquipmentEvents, cfg.ProjectorWorkers, logger)
	logger.Info("projector consumer started",
		zap.String("group", cfg.ProjectorGroup),
		zap.String("topic", catalog.TopicEquipmentEvents),
		zap.Int("workers", cfg.ProjectorWorkers))
	return cons.Start(ctx, svc.HandleEvent)
}
