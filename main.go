package main

import (
	"context"
	"time"

	api "mailmirror-backend/cmd/api"
	authdomain "mailmirror-backend/internal/auth/domain"
	authRepo "mailmirror-backend/internal/auth/repository"
	emaildelivery "mailmirror-backend/internal/email/delivery"
	emaildomain "mailmirror-backend/internal/email/domain"
	emailRepo "mailmirror-backend/internal/email/repository"
	emailUsecase "mailmirror-backend/internal/email/usecase"
	"mailmirror-backend/internal/email/scheduler"
	"mailmirror-backend/pkg/cache"
	"mailmirror-backend/pkg/config"
	"mailmirror-backend/pkg/database"
	"mailmirror-backend/pkg/gmail"
	"mailmirror-backend/pkg/logger"
	"mailmirror-backend/pkg/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.Init(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&emaildomain.Label{},
		&emaildomain.Thread{},
		&emaildomain.Message{},
		&emaildomain.Attachment{},
		&emaildomain.ThreadLabel{},
		&emaildomain.SyncAudit{},
	); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	threadRepo := emailRepo.NewThreadRepository(db)
	messageRepo := emailRepo.NewMessageRepository(db)
	attachmentRepo := emailRepo.NewAttachmentRepository(db)
	labelRepo := emailRepo.NewLabelRepository(db)
	auditRepo := emailRepo.NewSyncAuditRepository(db)

	// Initialize Gmail client
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, 10)

	// Initialize blob store
	storageService, err := storage.NewService(context.Background(), cfg.GCSBucket, cfg.GoogleCredentials)
	if err != nil {
		logger.Fatal("Failed to initialize blob store: %v", err)
	}

	// Initialize read cache: Redis when configured, in-process otherwise
	var cacheStore cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 2*time.Minute)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: %v", err)
		}
		cacheStore = redisCache
	} else {
		cacheStore = cache.NewLocalCache(2 * time.Minute)
	}

	// Initialize use case (dependency injection)
	provider := emailUsecase.NewGmailProvider(gmailService, userRepo)
	emailUsecaseInstance := emailUsecase.NewEmailUsecase(
		userRepo,
		threadRepo,
		messageRepo,
		attachmentRepo,
		labelRepo,
		auditRepo,
		provider,
		provider,
		storageService,
		cacheStore,
		emailUsecase.Options{
			MaxThreads:   cfg.SyncMaxThreads,
			Workers:      cfg.SyncWorkers,
			UserDelay:    cfg.SyncUserDelay,
			SyncInterval: cfg.SyncInterval,
			SignedURLTTL: cfg.SignedURLTTL,
		},
	)

	// Start the background sync scheduler
	syncScheduler := scheduler.NewSyncScheduler(emailUsecaseInstance, cfg.SyncInterval, cfg.SyncEnabled)
	syncScheduler.Start()
	defer syncScheduler.Stop()

	// Initialize HTTP handler and routes
	emailHandler := emaildelivery.NewEmailHandler(emailUsecaseInstance, cfg.SyncCronSecret)
	router := api.SetupRouter(emailHandler, cfg.JWTSecret)

	logger.Info("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
