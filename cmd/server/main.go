package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rentdesk/payments/docs"
	"github.com/rentdesk/payments/internal/config"
	"github.com/rentdesk/payments/internal/database"
	"github.com/rentdesk/payments/internal/events"
	"github.com/rentdesk/payments/internal/handlers"
	mW "github.com/rentdesk/payments/internal/middleware"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/services"
	"github.com/rentdesk/payments/internal/storage/postgres"
	"github.com/rentdesk/payments/internal/vault"
)

// @title Rentdesk Payments API
// @version 1.0
// @description Charge creation, security deposits and processor webhook reconciliation for rental tenants
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()
	ctx := context.Background()

	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"

	paymentsCfg := config.GetPaymentsConfig()

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	vaultCfg := config.GetVaultConfig()
	secrets, err := vault.New(vault.Config{MasterKey: vaultCfg.MasterKey, Salt: vaultCfg.Salt})
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	ledger := postgres.NewLedgerStore(db)
	deposits := postgres.NewDepositStore(db)
	merchants := postgres.NewMerchantStore(db)
	registry := postgres.NewRegistryStore(db)
	records := postgres.NewRecordStore(db)

	// Domain events fan out in process and, when brokers are configured, to Kafka.
	var downstream events.Publisher
	kafkaCfg := config.GetKafkaConfig()
	if len(kafkaCfg.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(kafkaCfg.Brokers, kafkaCfg.Topic)
		defer kafkaPublisher.Close()
		downstream = kafkaPublisher
		log.Printf("Publishing domain events to Kafka at %v", kafkaCfg.Brokers)
	}
	dispatcher := events.NewDispatcher(downstream, true)
	defer dispatcher.Wait()

	var notifier services.Notifier = services.LogNotifier{}
	if notifyCfg := config.GetNotifyConfig(); notifyCfg.URL != "" {
		notifier = services.NewHTTPNotifier(notifyCfg)
	}
	invitations := services.NewInvitationService(registry, notifier, config.GetArgon2Config())
	dispatcher.Subscribe(models.TopicOrderConfirmed, invitations.HandleOrderConfirmed)

	gateway := processor.NewStripeGateway(processor.StripeConfig{
		Timeout: paymentsCfg.ProcessorTimeout,
		BaseURL: paymentsCfg.ProcessorURL,
	})
	decoder := processor.NewStripeEventDecoder(paymentsCfg.WebhookSecret)
	if paymentsCfg.WebhookSecret == "" {
		log.Println("Warning: webhook secret is not set, processor events will be refused")
	}

	directory := services.NewMerchantDirectory(registry, merchants, secrets, paymentsCfg.PlatformAPIKey, paymentsCfg.Environment)
	locker := services.NewKeyedLocker(redisClient, paymentsCfg.LockTTL)

	chargeService := services.NewChargeService(directory, ledger, deposits, gateway, services.NewQRService())
	depositService := services.NewDepositService(deposits, directory, gateway, locker, dispatcher)
	reconciler := services.NewReconciler(decoder, services.ReconcilerStores{
		Ledger:         ledger,
		Deposits:       deposits,
		Orders:         registry,
		PaymentMethods: records,
		Transfers:      records,
		Payouts:        records,
	}, directory, locker, dispatcher)

	paymentsHandler, err := handlers.NewPaymentsHandler(chargeService, depositService, ledger, paymentsCfg.FrontendBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize payments handler: %v", err)
	}
	webhookHandler := handlers.NewWebhookHandler(reconciler)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{paymentsCfg.FrontendBaseURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Signed by the processor, not by our tokens
		r.Post("/payments/webhook", webhookHandler.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole(mW.RoleAdmin, mW.RoleOperator))

			r.Post("/payments/charges", paymentsHandler.CreateCharge)
			r.Get("/payments/ledger/{chargeIntentId}", paymentsHandler.GetLedger)

			r.Get("/payments/deposits/{orderId}", paymentsHandler.GetDeposit)
			r.Post("/payments/deposits/{orderId}/capture", paymentsHandler.CaptureDeposit)
			r.Post("/payments/deposits/{orderId}/release", paymentsHandler.ReleaseDeposit)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
