package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"diaspora-api/internal/config"
	"diaspora-api/internal/db"
	"diaspora-api/internal/email"
	"diaspora-api/internal/events"
	apihttp "diaspora-api/internal/http"
	"diaspora-api/internal/metrics"
	"diaspora-api/internal/repository"
	"diaspora-api/internal/service"
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

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)

	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.MailerSendAPIKey != "":
		sender, err := email.NewMailerSendSender(cfg.MailerSendAPIKey)
		if err != nil {
			logger.Warn("mailersend sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	if cfg.MailFrom == "" {
		logger.Warn("mail from address not configured")
	}
	dispatcher := email.NewDispatcher(emailSender, logger)

	var mailLimiter service.MailRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			mailLimiter = service.NewRedisMailRateLimiter(redisClient, cfg.SignupMailWindow, cfg.SignupMailLimit)
		}
		cancel()
	}
	if mailLimiter == nil {
		mailLimiter = service.NewMemoryMailRateLimiter(cfg.SignupMailWindow, cfg.SignupMailLimit)
	}

	publisher := events.NewNoopPublisher()
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats connect failed", zap.Error(err))
		} else {
			publisher = natsPub
		}
	}
	defer publisher.Close()

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	appMetrics := metrics.New()
	userSvc := service.NewUserService(logger, userRepo, hasher, jwtSvc, dispatcher, mailLimiter, service.MailSettings{
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
		BaseURL:  cfg.PublicBaseURL(),
		Timeout:  cfg.MailSendTimeout,
	}).WithPublisher(publisher).WithMetrics(appMetrics)

	userHandler := apihttp.NewUserHandler(logger, userSvc)
	healthHandler := apihttp.NewHealthHandler(logger, pool)
	router := apihttp.NewRouter(logger, userHandler, healthHandler, jwtSvc, appMetrics, cfg.CORSAllowedOrigins)

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
