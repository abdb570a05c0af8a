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

	"github.com/gorilla/mux"
	"github.com/piougy/CzechIdMng-sub011/internal/broker"
	"github.com/piougy/CzechIdMng-sub011/internal/compiler"
	"github.com/piougy/CzechIdMng-sub011/internal/config"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/controllers"
	"github.com/piougy/CzechIdMng-sub011/internal/database"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/provision"
	"github.com/piougy/CzechIdMng-sub011/internal/repository"
	"github.com/piougy/CzechIdMng-sub011/internal/services"
	syncer "github.com/piougy/CzechIdMng-sub011/internal/sync"
	"github.com/piougy/CzechIdMng-sub011/internal/transform"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Create repositories
	mappingRepo := repository.NewMappingRepository(db)
	identityRepo := repository.NewIdentityRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	syncConfigRepo := repository.NewSyncConfigRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	trustedServiceRepo := repository.NewTrustedServiceRepository(db)

	// Create broker publisher
	publisher, err := broker.NewPublisher(&cfg.Broker)
	if err != nil {
		log.Fatalf("Failed to create broker publisher: %v", err)
	}
	defer publisher.Close()

	// Register connectors
	registry := connector.MapRegistry{
		"memory": connector.NewMemory(),
	}
	if cfg.Connector.RESTURL != "" {
		registry["rest"] = connector.NewREST(cfg.Connector.RESTURL, cfg.Connector.RESTKey,
			cfg.Connector.Timeout, connector.Capabilities{CanChangePassword: true})
	}

	// Create the provisioning pipeline
	compiled := compiler.NewCached()
	evaluator := transform.NewRegistry()
	builder := provision.NewBuilder(evaluator)
	executor := provision.NewExecutor(registry, cfg.Connector.Timeout)

	// Create services
	provisioning := services.NewProvisioning(mappingRepo, identityRepo, accountRepo,
		compiled, builder, executor, registry, publisher)
	links := services.NewLinks(mappingRepo, accountRepo, builder, executor)
	engine := syncer.NewEngine(syncConfigRepo, mappingRepo, identityRepo, accountRepo,
		syncLogRepo, registry, evaluator, provisioning, links)
	webhookService := services.NewWebhookService(cfg.WebhookSecret, publisher)
	authService := services.NewAuthService(trustedServiceRepo)
	consumerService := services.NewConsumerService(authService, provisioning,
		identityRepo, accountRepo, engine, 10*time.Minute)

	// Clear running flags left behind by a previous crash
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	recovered, err := engine.RecoverStaleRuns(startupCtx)
	if err != nil {
		log.Fatalf("Failed to recover stale runs: %v", err)
	}
	if recovered > 0 {
		log.Printf("[engine] Recovered %d stale synchronization runs", recovered)
	}
	if err := seedInternalService(startupCtx, trustedServiceRepo, cfg.InternalAPIKey); err != nil {
		log.Fatalf("Failed to seed internal trusted service: %v", err)
	}
	cancelStartup()

	// Create broker consumer
	consumer, err := broker.NewConsumer(&cfg.Broker, publisher)
	if err != nil {
		log.Fatalf("Failed to create broker consumer: %v", err)
	}
	defer consumer.Close()

	// Register handlers and start consumer
	consumerService.RegisterHandlers(consumer)
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}

	// Create handlers
	webhookHandler := controllers.NewWebhookHandler(webhookService)
	mappingsHandler := controllers.NewMappingsHandler(mappingRepo, provisioning)
	runsHandler := controllers.NewRunsHandler(syncLogRepo)
	apiHandler := controllers.NewAPIHandler(publisher, cfg.InternalAPIKey)

	// Create router
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Mount routes
	router.HandleFunc("/hook", webhookHandler.HandleWebhook).Methods("POST")
	router.HandleFunc("/health", webhookHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/api/mappings", mappingsHandler.HandleListMappings).Methods("GET")
	router.HandleFunc("/api/mappings", mappingsHandler.HandleUpsertMapping).Methods("POST")
	router.HandleFunc("/api/mappings/{id}", mappingsHandler.HandleDeleteMapping).Methods("DELETE")

	// Engine triggers (proxied through MQTT)
	router.HandleFunc("/api/sync/{id}/run", apiHandler.HandleRunSync).Methods("POST")
	router.HandleFunc("/api/identities/{id}/provision", apiHandler.HandleProvisionIdentity).Methods("POST")
	router.HandleFunc("/api/identities/{id}/push/{attribute}", apiHandler.HandlePushAttribute).Methods("POST")

	// Run history
	router.HandleFunc("/api/sync/{id}/runs", runsHandler.HandleListRuns).Methods("GET")
	router.HandleFunc("/api/runs/{id}", runsHandler.HandleGetRun).Methods("GET")
	router.HandleFunc("/api/runs/actions/{id}/items", runsHandler.HandleListItems).Methods("GET")

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[engine] Server running on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[engine] Shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[engine] Server stopped")
}

// seedInternalService makes sure the engine's own async API key is accepted
// by the broker consumer.
func seedInternalService(ctx context.Context, repo *repository.TrustedServiceRepository, apiKey string) error {
	existing, err := repo.FindByAPIKey(ctx, apiKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return repo.Create(ctx, &models.TrustedService{
		APIKey:         apiKey,
		Name:           "engine-internal",
		AllowedActions: []string{"*"},
		IsActive:       true,
	})
}

// corsMiddleware adds CORS headers for admin UI access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
