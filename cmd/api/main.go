package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/infrastructure/dynamo"
	"github.com/taskboard-api/internal/infrastructure/google"
	jwtinfra "github.com/taskboard-api/internal/infrastructure/jwt"
	"github.com/taskboard-api/internal/infrastructure/memory"
	"github.com/taskboard-api/internal/infrastructure/redisstore"
	"github.com/taskboard-api/internal/infrastructure/smtp"
	"github.com/taskboard-api/internal/infrastructure/telegram"
	transporthttp "github.com/taskboard-api/internal/transport/http"
)

type closableTempData interface {
	transporthttp.TempDataStore
	io.Closer
}

type closableCodes interface {
	transporthttp.CodeStore
	io.Closer
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.MustLoad()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dynamoClient, err := dynamo.NewClient(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	// Creates the tables when they don't exist.
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	var (
		temp    closableTempData
		codes   closableCodes
		closers []io.Closer
	)
	switch cfg.Confirmation.Backend {
	case "redis":
		rdb, err := redisstore.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		temp = redisstore.NewTempDataStore(rdb, cfg.Confirmation.PendingTTL)
		codes = redisstore.NewCodeStore(rdb, cfg.Confirmation.CodeTTL, cfg.Confirmation.CodeLength, nil)
		closers = append(closers, rdb)
	default:
		temp = memory.NewTempDataStore(memory.TempDataOptions{
			TTL:           cfg.Confirmation.PendingTTL,
			SweepInterval: cfg.Confirmation.SweepInterval,
		})
		codes = memory.NewCodeStore(memory.CodeOptions{
			TTL:           cfg.Confirmation.CodeTTL,
			Digits:        cfg.Confirmation.CodeLength,
			SweepInterval: cfg.Confirmation.SweepInterval,
		})
	}
	closers = append([]io.Closer{temp, codes}, closers...)

	sender, err := smtp.NewConfirmationSender(smtp.NewMailer(cfg.SMTP), cfg.Confirmation.CodeTTL)
	if err != nil {
		log.Fatalf("confirmation templates: %v", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWT)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.Uniques),
		SessionRepo: dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		BoardRepo:   dynamo.NewBoardRepo(dynamoClient, cfg.DynamoTables.Boards, cfg.DynamoTables.Tasks),
		TempData:    temp,
		Codes:       codes,
		CodeSender:  sender,
		JWTProvider: jwtProvider,
		Google:      google.NewVerifier(cfg.Google),
		Telegram:    telegram.NewClient(cfg.Telegram),
		Logger:      logger,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.App.Port, "env", cfg.App.Env, "confirmation_backend", cfg.Confirmation.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
	}
	stop()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
