package router

import (
	"database/sql"
	"net/http"

	"cashback-platform/internal/config"
	"cashback-platform/internal/handlers"
	"cashback-platform/internal/mailer"
	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"
	"cashback-platform/internal/services"
	"cashback-platform/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func SetupRouter(db *sql.DB, cfg config.Config, logger zerolog.Logger) *mux.Router {
	notificationService := services.NewNotificationService(db, logger)
	reserveService := services.NewReserveService(db, logger)
	walletService := services.NewWalletService(db, logger)
	userService := services.NewUserService(db, logger)
	authService := services.NewAuthService(cfg.JWTSecret, logger)
	storeService := services.NewStoreService(db, logger, notificationService)
	cashbackService := services.NewCashbackService(db, logger, walletService, reserveService, notificationService)
	pixService := services.NewPixWebhookService(cfg.PixWebhookSecret, cashbackService, logger)

	mail := mailer.New(mailer.Options{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}, logger)
	receipts := storage.NewReceiptStore(cfg.ReceiptDir)
	paymentService := services.NewBalancePaymentService(db, logger, reserveService, notificationService, mail, receipts)
	paymentQueries := services.NewPaymentQueryService(db, logger)

	authHandler := handlers.NewAuthHandler(userService, authService, storeService, logger)
	storeHandler := handlers.NewStoreHandler(storeService, logger)
	cashbackHandler := handlers.NewCashbackHandler(walletService, cashbackService, logger)
	reserveHandler := handlers.NewReserveHandler(reserveService, logger)
	paymentHandler := handlers.NewBalancePaymentHandler(paymentService, paymentQueries, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, logger)
	webhookHandler := handlers.NewWebhookHandler(pixService, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	authenticated := middleware.Authentication(authService, logger)
	admin := string(models.RoleAdmin)
	store := string(models.RoleStore)
	client := string(models.RoleClient)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestValidation())

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")

	protectedAuth := auth.PathPrefix("").Subrouter()
	protectedAuth.Use(authenticated)
	protectedAuth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	webhooks := api.PathPrefix("/webhooks").Subrouter()
	webhooks.HandleFunc("/pix", webhookHandler.Pix).Methods("POST")

	stores := api.PathPrefix("/stores").Subrouter()
	stores.Use(authenticated)
	stores.Use(middleware.RequireRole(store))
	stores.HandleFunc("", storeHandler.Register).Methods("POST")

	cashback := api.PathPrefix("/cashback").Subrouter()
	cashback.Use(authenticated)
	cashback.Use(middleware.RequireRole(client, admin))
	cashback.HandleFunc("/balance", cashbackHandler.GetBalance).Methods("GET")
	cashback.HandleFunc("/movements", cashbackHandler.GetMovements).Methods("GET")
	cashback.HandleFunc("/reconcile", cashbackHandler.ReconcileWallet).Methods("GET")

	notifications := api.PathPrefix("/notifications").Subrouter()
	notifications.Use(authenticated)
	notifications.HandleFunc("", notificationHandler.List).Methods("GET")
	notifications.HandleFunc("/{id:[0-9]+}/read", notificationHandler.MarkAsRead).Methods("POST")

	storeArea := api.PathPrefix("/store").Subrouter()
	storeArea.Use(authenticated)
	storeArea.Use(middleware.RequireRole(store))
	storeArea.HandleFunc("/transactions", cashbackHandler.RegisterPurchase).Methods("POST")
	storeArea.HandleFunc("/transactions", cashbackHandler.ListStoreTransactions).Methods("GET")
	storeArea.HandleFunc("/balance-usage", cashbackHandler.UseBalance).Methods("POST")
	storeArea.HandleFunc("/balance-payments", paymentHandler.StorePayments).Methods("GET")
	storeArea.HandleFunc("/balance-payments/{id:[0-9]+}", paymentHandler.StorePaymentDetail).Methods("GET")

	adminArea := api.PathPrefix("/admin").Subrouter()
	adminArea.Use(authenticated)
	adminArea.Use(middleware.RequireRole(admin))
	adminArea.HandleFunc("/stores", storeHandler.List).Methods("GET")
	adminArea.HandleFunc("/stores/{id:[0-9]+}/approve", storeHandler.Approve).Methods("POST")
	adminArea.HandleFunc("/stores/{id:[0-9]+}/reject", storeHandler.Reject).Methods("POST")
	adminArea.HandleFunc("/transactions/{id:[0-9]+}/approve", cashbackHandler.ApproveTransaction).Methods("POST")

	adminArea.HandleFunc("/reserve", reserveHandler.Overview).Methods("GET")
	adminArea.HandleFunc("/reserve/movements", reserveHandler.Movements).Methods("GET")
	adminArea.HandleFunc("/reserve/credit", reserveHandler.Credit).Methods("POST")
	adminArea.HandleFunc("/reserve/reconcile", reserveHandler.Reconcile).Methods("GET")

	payments := adminArea.PathPrefix("/balance-payments").Subrouter()
	payments.HandleFunc("", paymentHandler.Process).Methods("POST")
	payments.HandleFunc("", paymentHandler.History).Methods("GET")
	payments.HandleFunc("/pending", paymentHandler.Pending).Methods("GET")
	payments.HandleFunc("/statistics", paymentHandler.Statistics).Methods("GET")
	payments.HandleFunc("/stores/{id:[0-9]+}", paymentHandler.StoreDetail).Methods("GET")
	payments.HandleFunc("/{id:[0-9]+}", paymentHandler.Detail).Methods("GET")
	payments.HandleFunc("/{id:[0-9]+}/status", paymentHandler.UpdateStatus).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":true}`))
	}).Methods("GET")

	return r
}
