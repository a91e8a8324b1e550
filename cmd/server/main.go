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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// repository is what both storage backends provide
type repository interface {
	service.ProductRepository
	service.OrderRepository
	service.CustomerRepository
	worker.ReconciliationStore
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
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

	checks := map[string]api.ReadinessCheck{}

	var repo repository
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connected")

		if cfg.Storage.RunMigrations {
			if err := db.RunMigrations(logger); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
		repo = db
		checks["database"] = db.Ping
	case "memory":
		mem := store.NewMemory()
		mem.SeedCatalog()
		repo = mem
		log.Println("Using in-memory catalog and order store")
	default:
		log.Fatalf("Unknown storage backend %q", cfg.Storage.Backend)
	}

	var sessions session.Store
	switch cfg.Storage.SessionBackend {
	case "redis":
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")

		sessions = redisclient.NewSessionStore(redisClient, cfg.Business.SessionTTL)
		checks["redis"] = redisClient.Ping
	case "memory":
		mem := session.NewMemoryStore(cfg.Business.SessionTTL)
		defer mem.Close()
		sessions = mem
	default:
		log.Fatalf("Unknown session backend %q", cfg.Storage.SessionBackend)
	}

	var publisher service.EventPublisher = broker.NoopPublisher{}
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var reconciliationWorker *worker.ReconciliationWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		log.Println("Kafka producer initialized")
		publisher = broker.NewEventPublisher(producer)

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		reconciliationWorker = worker.NewReconciliationWorker(consumer, repo)
		go func() {
			if err := reconciliationWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Reconciliation worker error", zap.Error(err))
			}
		}()
	}

	shipping := service.FlatShipping(cfg.Business.ShippingFee)
	if cfg.Business.ShippingPolicy == "free_over" {
		shipping = service.FreeShippingOver(cfg.Business.ShippingFee, cfg.Business.FreeShippingThreshold)
	}

	cartService := service.NewCartService(sessions, repo, shipping)
	services := api.Services{
		Catalog:   service.NewCatalogService(repo),
		Cart:      cartService,
		Checkout:  service.NewCheckoutService(sessions, cartService, repo, repo, publisher),
		Customers: service.NewCustomerService(repo, sessions),
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, api.CookieConfig{
		Name:   cfg.Business.SessionCookieName,
		MaxAge: int(cfg.Business.SessionTTL.Seconds()),
		Secure: cfg.Business.SessionCookieSecure,
	}, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	if reconciliationWorker != nil {
		reconciliationWorker.Stop()
	}

	log.Println("Server exited")
}
