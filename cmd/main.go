package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/dlq"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/handler"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/middleware"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/repository"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/scheduler"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/sender"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/service"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/rabbitmq"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/webhook"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/worker"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Appointment Reminder Service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize repositories
	appointmentRepo := repository.NewAppointmentRepository(mongoClient)
	userRepo := repository.NewUserRepository(mongoClient)
	jobRegistry := repository.NewJobRegistry(mongoClient)
	logRepo := repository.NewReminderLogRepository(mongoClient)
	settingsRepo := repository.NewSettingsRepository(mongoClient)
	analyticsRepo := repository.NewAnalyticsRepository(mongoClient)
	failedRepo := repository.NewFailedReminderRepository(mongoClient)
	inboxRepo := repository.NewInboxRepository(mongoClient)

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer indexCancel()
	for name, ensure := range map[string]func(context.Context) error{
		"jobs":      jobRegistry.EnsureIndexes,
		"logs":      logRepo.EnsureIndexes,
		"settings":  settingsRepo.EnsureIndexes,
		"analytics": analyticsRepo.EnsureIndexes,
		"failed":    failedRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal("Failed to ensure indexes", "collection", name, "error", err)
		}
	}

	// Initialize delay queue
	delayQueue, err := queue.NewRabbitDelayQueue(rabbitMQClient, log)
	if err != nil {
		log.Fatal("Failed to declare delay queue topology", "error", err)
	}

	// Initialize channel senders
	var smtpPool *sender.SMTPPool
	if cfg.SMTP.Host != "" && cfg.SMTP.Username != "" {
		smtpPool, err = sender.NewSMTPPool(sender.SMTPPoolConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.Port == 465,
		}, cfg.SMTP.PoolSize)
		if err != nil {
			log.Error("SMTP pool unavailable, email reminders will fail", "error", err)
		} else {
			defer smtpPool.Close()
		}
	}

	senders := sender.NewRegistry(
		sender.NewEmailSender(smtpPool, cfg.SMTP, log),
		sender.NewSMSSender(cfg.SMS, nil, log),
		sender.NewPushSender(cfg.Push, userRepo, nil, log),
		sender.NewInAppSender(inboxRepo, log),
	)

	// Initialize scheduling engine and worker pipeline
	engine := scheduler.NewEngine(appointmentRepo, userRepo, settingsRepo, jobRegistry, logRepo, delayQueue, log)
	deadLetterQueue := dlq.NewDeadLetterQueue(failedRepo, jobRegistry, delayQueue, log)
	deliveryWorker := worker.NewDeliveryWorker(
		delayQueue, jobRegistry, appointmentRepo, userRepo,
		logRepo, analyticsRepo, deadLetterQueue, senders, cfg.Worker, log,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go func() {
		if err := deliveryWorker.Start(workerCtx); err != nil {
			log.Error("Delivery worker stopped", "error", err)
		}
	}()

	// Initialize sweeper
	sweeper := scheduler.NewSweeper(jobRegistry, logRepo, delayQueue, cfg.Worker.SweepGrace, cfg.Worker.LogRetention, log)
	if err := sweeper.Start(); err != nil {
		log.Error("Failed to start sweeper", "error", err)
	}
	defer sweeper.Stop()

	// Initialize services
	reminderService := service.NewReminderService(engine, logRepo, analyticsRepo, log)
	lifecycleService := service.NewLifecycleService(reminderService, log)
	bulkService := service.NewBulkService(reminderService, log)
	settingsService := service.NewSettingsService(settingsRepo, log)

	// Initialize HTTP handlers
	reminderHandler := handler.NewReminderHandler(reminderService, lifecycleService, log)
	settingsHandler := handler.NewSettingsHandler(settingsService, log)
	bulkHandler := handler.NewBulkHandler(bulkService, log)
	dlqHandler := handler.NewDLQHandler(deadLetterQueue, log)
	inboxHandler := handler.NewInboxHandler(inboxRepo, log)
	receiptHandler := webhook.NewReceiptHandler(logRepo, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewClientRateLimiter(cfg.Server.RateLimitPerClient, cfg.Server.RateLimitBurst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		// Reminders
		reminders := v1.Group("/reminders")
		{
			reminders.POST("/schedule", reminderHandler.Schedule)
			reminders.POST("/:appointmentId/cancel", reminderHandler.Cancel)
			reminders.POST("/:appointmentId/reschedule", reminderHandler.Reschedule)
			reminders.POST("/:appointmentId/test", reminderHandler.SendTest)
			reminders.POST("/:appointmentId/events", reminderHandler.AppointmentEvent)
		}

		// Bulk operations
		v1.POST("/reminders/bulk", bulkHandler.Execute)

		// Audit log and analytics
		v1.GET("/reminders/logs", reminderHandler.GetLogs)
		v1.GET("/analytics/doctors/:doctorId", reminderHandler.GetAnalytics)

		// Settings
		settings := v1.Group("/settings")
		{
			settings.GET("/:ownerType/:ownerId", settingsHandler.Get)
			settings.PUT("/:ownerType/:ownerId", settingsHandler.Update)
		}

		// In-app inbox
		inbox := v1.Group("/inbox")
		{
			inbox.GET("/:userId", inboxHandler.List)
			inbox.POST("/notifications/:id/read", inboxHandler.MarkRead)
		}

		// Dead Letter Queue
		dlqRoutes := v1.Group("/dlq")
		{
			dlqRoutes.GET("", dlqHandler.List)
			dlqRoutes.POST("/:id/retry", dlqHandler.Retry)
			dlqRoutes.DELETE("/:id", dlqHandler.Discard)
		}
	}

	// Webhooks (no rate limiting for external providers)
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/receipts", receiptHandler.Receive)
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Appointment Reminder Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Appointment Reminder Service...")
	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Appointment Reminder Service stopped")
}
