package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tx-coordinator/config"
	"tx-coordinator/internal/api"
	"tx-coordinator/internal/broker"
	"tx-coordinator/internal/redisclient"
	"tx-coordinator/internal/service"
	"tx-coordinator/internal/store"
	"tx-coordinator/internal/util"
	"tx-coordinator/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting transaction coordinator")

	tp, err := util.InitTracer("tx-coordinator", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ordersDB, err := store.Open(cfg.OrdersDB.URL)
	if err != nil {
		log.Fatalf("Failed to connect to orders database: %v", err)
	}
	defer ordersDB.Close()
	log.Println("Orders database connected")

	paymentsDB, err := store.Open(cfg.PaymentsDB.URL)
	if err != nil {
		log.Fatalf("Failed to connect to payments database: %v", err)
	}
	defer paymentsDB.Close()
	log.Println("Payments database connected")

	orderStore := store.NewOrderStore(ordersDB)
	catalogStore := store.NewCatalogStore(ordersDB)
	sagaLogStore := store.NewSagaLogStore(ordersDB)
	paymentStore := store.NewPaymentStore(paymentsDB)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	for _, init := range []func(context.Context) error{
		catalogStore.InitSchema,
		orderStore.InitSchema,
		sagaLogStore.InitSchema,
		paymentStore.InitSchema,
	} {
		if err := init(initCtx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTx)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	validator := service.NewInventoryValidator(catalogStore, redisClient,
		time.Duration(cfg.Business.ProductCacheTTLSeconds)*time.Second)
	scorer := service.NewUniformScorer(0.8)

	coordinator := service.NewCoordinator(
		orderStore, paymentStore, validator, scorer, sagaLogStore, eventPublisher,
		service.CoordinatorConfig{
			FraudThreshold:    cfg.Business.FraudThreshold,
			MaxQuantity:       cfg.Business.MaxQuantity,
			ExecuteTimeout:    time.Duration(cfg.Business.TransactionTimeoutSeconds) * time.Second,
			CompensateTimeout: time.Duration(cfg.Business.CompensateTimeoutSeconds) * time.Second,
			Currency:          cfg.Business.Currency,
			PaymentMethod:     cfg.Business.PaymentMethod,
		})

	queryService := service.NewQueryService(orderStore, paymentStore, sagaLogStore, redisClient,
		time.Duration(cfg.Business.StatsCacheTTLSeconds)*time.Second)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTx, cfg.Kafka.ConsumerGroup)
	reconciliationWorker := worker.NewReconciliationWorker(consumer, sagaLogStore, redisClient)
	go func() {
		if err := reconciliationWorker.Start(workerCtx); err != nil {
			log.Printf("Reconciliation worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(coordinator, queryService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	reconciliationWorker.Stop()

	log.Println("Server exited")
}
