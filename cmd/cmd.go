package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pair-collection-backend/internal/config"
	"pair-collection-backend/internal/handlers"
	"pair-collection-backend/internal/middleware"
	"pair-collection-backend/internal/repository"
	"pair-collection-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := repository.Open(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Apply schema migrations
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	txRunner := repository.NewTxRunner(db)
	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	coupleRepo := repository.NewCoupleRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	itemRepo := repository.NewItemRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)

	// Initialize services
	hub := services.NewHub()
	userService := services.NewUserService(userRepo, tokenRepo, cfg.JWT.Secret)
	inviteService := services.NewInviteService(txRunner, userRepo, inviteRepo, coupleRepo, hub)
	notifier, err := services.NewNotifier(userRepo, coupleRepo, tokenRepo, cfg.APNS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notifier")
	}
	ledgerService := services.NewLedgerService(txRunner, collectionRepo, itemRepo, commentRepo, coupleRepo, hub, notifier)

	// Start the push delivery worker
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	go notifier.Run(notifierCtx)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	inviteHandler := handlers.NewInviteHandler(inviteService, userService)
	collectionHandler := handlers.NewCollectionHandler(ledgerService, userService)
	itemHandler := handlers.NewItemHandler(ledgerService, userService)
	wsHandler := handlers.NewWebSocketHandler(hub, userService, inviteService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/users/me", userHandler.GetMe)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)
			r.Delete("/users/me/push-token", userHandler.DeletePushToken)
			r.Put("/users/me/notification-preferences", userHandler.UpdateNotificationPreferences)

			r.Post("/invites", inviteHandler.CreateInvite)
			r.Post("/invites/redeem", inviteHandler.RedeemInvite)
			r.Get("/invites/pending", inviteHandler.PendingInvite)
			r.Get("/couple", inviteHandler.GetCouple)
			r.Patch("/couple", inviteHandler.UpdateCouple)

			r.Post("/collections", collectionHandler.CreateCollection)
			r.Get("/collections", collectionHandler.ListCollections)
			r.Delete("/collections/{collection_id}", collectionHandler.DeleteCollection)
			r.Post("/collections/{collection_id}/repair", collectionHandler.RepairCollection)

			r.Post("/items", itemHandler.CreateItem)
			r.Get("/items", itemHandler.ListItems)
			r.Post("/items/{item_id}/move", itemHandler.MoveItem)
			r.Patch("/items/{item_id}/status", itemHandler.UpdateItemStatus)
			r.Delete("/items/{item_id}", itemHandler.DeleteItem)
			r.Post("/items/{item_id}/comments", itemHandler.CreateComment)
			r.Get("/items/{item_id}/comments", itemHandler.ListComments)
			r.Delete("/items/{item_id}/comments/{comment_id}", itemHandler.DeleteComment)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Metrics
	r.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stopNotifier()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
