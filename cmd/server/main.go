package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/config"
	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/internal/handlers"
	"github.com/vexbus/booking-backend/internal/lockstore"
	"github.com/vexbus/booking-backend/internal/middleware"
	"github.com/vexbus/booking-backend/internal/services"
	"github.com/vexbus/booking-backend/pkg/mailer"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.HoldTTLExceedsGrace() {
		logger.WithFields(logrus.Fields{
			"checkout_hold_ttl":    cfg.Booking.CheckoutHoldTTL.String(),
			"payment_grace_window": cfg.Booking.PaymentGraceWindow.String(),
		}).Warn("Checkout hold TTL exceeds the payment grace window; holds may outlive reclaimed bookings")
	}

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Redis is advisory; fall back to in-process locks when unreachable
	var store lockstore.Store
	redisStore, err := lockstore.NewRedisStore(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-memory seat locks (single instance only)")
		store = lockstore.NewMemoryStore()
	} else {
		store = redisStore
		logger.Info("Redis connection established")
	}
	defer store.Close()

	// Event broadcasting is best-effort; run without it when no broker
	// is configured or the connection fails
	var publisher events.Publisher
	if cfg.AMQP.URL == "" {
		publisher = events.NewNoopPublisher(logger)
	} else if amqpPublisher, err := events.NewAMQPPublisher(&cfg.AMQP, logger); err != nil {
		logger.WithError(err).Warn("RabbitMQ unavailable, seat events will not be broadcast")
		publisher = events.NewNoopPublisher(logger)
	} else {
		publisher = amqpPublisher
		logger.Info("RabbitMQ connection established")
	}
	defer publisher.Close()

	// Repositories
	bookingRepo := database.NewBookingRepository(db)
	tripRepo := database.NewTripRepository(db)

	// Services
	gateway := services.NewPayOSService(&cfg.Payment, logger)
	if !gateway.IsConfigured() {
		logger.Warn("Payment gateway credentials missing, payment links will not be created")
	}
	bookingMailer := mailer.NewLogMailer(logger)
	lockService := services.NewSeatLockService(store, publisher, &cfg.Booking, logger)
	bookingService := services.NewBookingService(bookingRepo, tripRepo, gateway, publisher, bookingMailer, &cfg.Booking, logger)
	reconciler := services.NewPaymentReconciler(bookingRepo, gateway, publisher, bookingMailer, logger)
	expiryService := services.NewExpiryService(bookingRepo, publisher, bookingMailer, cfg.Booking.PaymentGraceWindow, logger)

	if err := expiryService.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start expiry service")
	}
	defer expiryService.Stop()

	// Handlers
	seatHandler := handlers.NewSeatHandler(lockService, bookingService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(reconciler, logger)

	router := setupRouter(cfg, logger, db, seatHandler, bookingHandler, paymentHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Server.Environment,
		}).Info("Starting booking server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	db *sqlx.DB,
	seatHandler *handlers.SeatHandler,
	bookingHandler *handlers.BookingHandler,
	paymentHandler *handlers.PaymentHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
	})

	v1 := router.Group("/api/v1")
	{
		trips := v1.Group("/trips")
		{
			trips.POST("/:id/seats/hold", seatHandler.HoldSeats)
			trips.POST("/:id/seats/release", seatHandler.ReleaseSeats)
			trips.GET("/:id/seats", seatHandler.SeatStatus)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("/lookup", bookingHandler.Lookup)
			bookings.POST("/:id/cancel", bookingHandler.Cancel)
			bookings.POST("/:id/change-seat", bookingHandler.ChangeSeat)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/webhook", paymentHandler.Webhook)
		}
	}

	return router
}
