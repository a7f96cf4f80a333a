package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/config"
	"github.com/ariefcatur/equipment-orders/internal/httpx"
	"github.com/ariefcatur/equipment-orders/internal/inventory"
	kafkax "github.com/ariefcatur/equipment-orders/internal/kafka"
	"github.com/ariefcatur/equipment-orders/internal/logging"
	"github.com/ariefcatur/equipment-orders/internal/postgres"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
	"github.com/ariefcatur/equipment-orders/internal/sqlite"
	"github.com/ariefcatur/equipment-orders/internal/stock"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			return err
		}
	}

	var locker stock.Locker = stock.NewKeyedMutex()
	if cfg.LockBackend == config.LockRedis {
		locker = redisx.NewLocker(rdb, cfg.LockTTL, logger)
	}

	svc := &inventory.Service{
		Store:        st,
		Engine:       stock.NewEngine(locker),
		Logger:       logger,
		ServiceName:  cfg.ServiceName,
		StoreTimeout: cfg.StoreTimeout,
	}

	// Kafka producer; runs on its own context so it can flush after the
	// HTTP server has drained.
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prodCtx, cancelProd := context.WithCancel(context.Background())
		defer cancelProd()
		prod = kafkax.NewProducer(cfg.KafkaBrokers, catalog.TopicEquipmentEvents, 1024, logger)
		prod.Start(prodCtx)
		svc.Publisher = prod
	}

	router := httpx.NewRouter(logger)
	eh := &httpx.EquipmentHandler{Service: svc, Log: logger}
	oh := &httpx.OrdersHandler{Service: svc, Log: logger}
	if rdb != nil {
		eh.Stock = redisx.NewStockCache(rdb)
		oh.Idem = redisx.NewIdempotency(rdb)
	}
	eh.Register(router)
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("lock", cfg.LockBackend),
			zap.Bool("events", prod != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if prod != nil {
			prod.Close() // flush queued events, then close writer
			prod.WaitClosed()
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{
			MaxConns:         cfg.PostgresMax,
			AppName:          cfg.ServiceName,
			StatementTimeout: cfg.StoreTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewStore(pool), nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		return sqlite.NewStore(db), nil
	default:
		return store.NewMemory(), nil
	}
}
