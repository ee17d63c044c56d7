package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cred-lifecycle/internal/config"
	"cred-lifecycle/internal/db"
	"cred-lifecycle/internal/email"
	apihttp "cred-lifecycle/internal/http"
	"cred-lifecycle/internal/repository"
	"cred-lifecycle/internal/service"
	"cred-lifecycle/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var userRepo repository.UserRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		if cfg.RunMigrations {
			if err := db.RunMigrations(ctx, pool); err != nil {
				logger.Fatal("db migrate", zap.Error(err))
			}
		}
		userRepo = repository.NewPgUserRepository(pool)
	} else {
		logger.Warn("database url not configured, using in-memory user store")
		userRepo = repository.NewMemoryUserRepository()
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case cfg.ResendAPIKey != "":
		sender, err := email.NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom)
		if err != nil {
			logger.Warn("resend sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	clock := service.SystemClock()
	revoked := service.NewMemoryRevocationStore(clock)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory revocation list", zap.Error(err))
		} else {
			revoked = service.NewRedisRevocationStore(redisClient)
		}
		cancel()
	}

	var imageStore storage.Storage
	var routerOpts apihttp.RouterOptions
	switch cfg.ImageStorage {
	case "s3":
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			logger.Fatal("s3 storage init", zap.Error(err))
		}
		imageStore = s3Store
	default:
		local, err := storage.NewLocalStorage(cfg.ImageDir, cfg.ImageBaseURL)
		if err != nil {
			logger.Fatal("local storage init", zap.Error(err))
		}
		imageStore = local
		routerOpts = apihttp.RouterOptions{ImageDir: local.Dir(), ImagePath: cfg.ImageBaseURL}
	}

	hasher := service.NewBcryptHasher(cfg.BcryptCost, cfg.HashWorkers)
	resets := service.NewResetTokenManager(userRepo, hasher, clock, service.SystemRandom(), cfg.ResetTokenTTL)
	tokens := service.NewSessionTokenCodec(cfg.JWTSecret, cfg.SessionTTL, clock, revoked, logger)
	credSvc := service.NewCredentialService(logger, userRepo, hasher, resets, tokens, emailSender, clock, service.CredentialOptions{
		AppName:         cfg.AppName,
		HideUnknownUser: cfg.HideUnknownUser,
	})

	userHandler := apihttp.NewUserHandler(logger, credSvc)
	uploadHandler := apihttp.NewUploadHandler(logger, credSvc, imageStore, clock)
	router := apihttp.NewRouter(logger, userHandler, uploadHandler, routerOpts)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
