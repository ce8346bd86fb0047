package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-stock-service/config"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	invH "github.com/fekuna/omnipos-stock-service/internal/inventory/handler"
	invIndexerPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/indexer"
	invPublisherPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/publisher"
	invRepoPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	invSweeperPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/sweeper"
	invUCPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	orderH "github.com/fekuna/omnipos-stock-service/internal/order/handler"
	orderListenerPkg "github.com/fekuna/omnipos-stock-service/internal/order/listener"
	orderRepoPkg "github.com/fekuna/omnipos-stock-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-stock-service/internal/order/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse"
	whH "github.com/fekuna/omnipos-stock-service/internal/warehouse/handler"
	whRepoPkg "github.com/fekuna/omnipos-stock-service/internal/warehouse/repository"
	whUCPkg "github.com/fekuna/omnipos-stock-service/internal/warehouse/usecase"
	"github.com/fekuna/omnipos-stock-service/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/pkg/cache"
	"github.com/fekuna/omnipos-stock-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/search"
	"github.com/fekuna/omnipos-stock-service/pkg/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Telemetry first, so the logger can tee into it
	otelShutdown := func(context.Context) error { return nil }
	var telemetryErr error
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, &telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Endpoint:       cfg.Telemetry.Endpoint,
			AuthHeader:     cfg.Telemetry.AuthHeader,
			Insecure:       cfg.Telemetry.Insecure,
			MetricInterval: cfg.Telemetry.MetricInterval,
		})
		if err != nil {
			// keep running without exporters
			telemetryErr = err
			_ = shutdown(ctx)
		} else {
			otelShutdown = shutdown
		}
	}

	// 3. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
		ServiceName:       cfg.Telemetry.ServiceName,
	}
	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}
	if cfg.Telemetry.Enabled && telemetryErr == nil {
		logConfig.OTelScope = "github.com/fekuna/omnipos-stock-service"
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()
	if telemetryErr != nil {
		appLogger.Warn("Telemetry setup failed, continuing without exporters", zap.Error(telemetryErr))
	}

	// 4. Storage
	var (
		invRepo   inventory.Repository
		whRepo    warehouse.Repository
		orderRepo order.Repository
	)
	switch cfg.Storage.Driver {
	case "memory":
		appLogger.Warn("Using in-memory storage, state is lost on restart")
		invRepo = invRepoPkg.NewMemoryRepository()
		whRepo = whRepoPkg.NewMemoryRepository()
		orderRepo = orderRepoPkg.NewMemoryRepository()
	default:
		db, err := postgres.NewPostgres(&postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to database", zap.Error(err))
		}
		defer db.Close()
		appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

		invRepo = invRepoPkg.NewPGRepository(db)
		whRepo = whRepoPkg.NewPGRepository(db)
		orderRepo = orderRepoPkg.NewPGRepository(db)
	}

	// 5. Initialize Redis
	var locker invSweeperPkg.Locker
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, running without warehouse cache and sweeper lock", zap.Error(err))
		} else {
			defer redisClient.Close()
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
			whRepo = whRepoPkg.NewCachedRepository(whRepo, redisClient, cfg.Redis.WarehouseTTL, appLogger)
			locker = redisClient
		}
	}

	// 6. Kafka
	var publisher inventory.EventPublisher
	var consumer broker.MessageConsumer
	if cfg.Kafka.Enabled {
		producer, err := broker.NewProducer(&broker.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.InventoryTopic,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLogger.Fatal("Could not create Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		publisher = invPublisherPkg.NewKafkaPublisher(producer, appLogger)

		kafkaConsumer, err := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OrderTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		if err != nil {
			appLogger.Fatal("Could not create Kafka consumer", zap.Error(err))
		}
		defer kafkaConsumer.Close()
		consumer = kafkaConsumer
		appLogger.Info("Connected to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("orders_topic", cfg.Kafka.OrderTopic),
			zap.String("inventory_topic", cfg.Kafka.InventoryTopic),
		)
	}

	// 7. Initialize Elasticsearch
	var indexer inventory.MovementIndexer
	if cfg.Elastic.Enabled {
		esClient, err := search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Elasticsearch, movement search disabled", zap.Error(err))
		} else {
			indexer = invIndexerPkg.NewMovementIndexer(esClient, appLogger)
			appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	// 8. Initialize UseCases
	whUC := whUCPkg.NewWarehouseUseCase(whRepo, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, whRepo, publisher, indexer, invUCPkg.Options{
		CartReservationTTL:  cfg.Inventory.CartReservationTTL,
		OrderReservationTTL: cfg.Inventory.OrderReservationTTL,
		DefaultCurrency:     cfg.Inventory.DefaultCurrency,
	}, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, invUC, appLogger)

	// 9. Background workers
	if consumer != nil {
		go orderListenerPkg.NewOrderListener(consumer, orderUC, appLogger).Start(ctx)
	}
	sweeper := invSweeperPkg.New(invUC, locker, invSweeperPkg.Config{
		Interval:       cfg.Inventory.SweepInterval,
		BatchSize:      cfg.Inventory.SweepBatchSize,
		ReconcileEvery: cfg.Inventory.ReconcileEvery,
	}, appLogger)
	go sweeper.Start(ctx)

	// 10. HTTP API
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(auth.ActorMiddleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	invH.NewInventoryHandler(invUC, appLogger).RegisterRoutes(router)
	whH.NewWarehouseHandler(whUC, appLogger).RegisterRoutes(router)
	orderH.NewOrderHandler(orderUC, appLogger).RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:              normalizePort(cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 11. gRPC health for the platform's health checks
	lis, err := net.Listen("tcp", normalizePort(cfg.Server.GRPCPort))
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	go func() {
		appLogger.Info("Starting gRPC health server", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	if err := otelShutdown(shutdownCtx); err != nil {
		appLogger.Error("telemetry shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func normalizePort(port string) string {
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
