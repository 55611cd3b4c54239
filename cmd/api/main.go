package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agristack/agristack-auth/internal/auth"
	"github.com/agristack/agristack-auth/internal/router"
	"github.com/agristack/agristack-auth/internal/user/repo"
	"github.com/agristack/agristack-auth/pkg/database"
	"github.com/agristack/agristack-auth/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting agristack-auth")

	cfg := database.ConfigFromEnv()
	client, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("mongo connect: %v", err)
	}
	defer client.Disconnect(context.Background())

	userRepo := repo.NewUserRepo(client.Database(cfg.Database))
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := userRepo.EnsureIndexes(ctx); err != nil {
			cancel()
			sugar.Fatalf("ensure indexes: %v", err)
		}
		cancel()
	}

	tokenCfg, err := auth.TokenConfigFromEnv()
	if err != nil {
		sugar.Fatalf("token config: %v", err)
	}
	tokens, err := auth.NewTokenService(tokenCfg)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}

	// the OTP collaborator: Redis-backed challenges when an address is
	// configured, the static dev placeholder otherwise
	var otp auth.OTPProvider
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		otp = auth.NewRedisOTPProvider(rdb, auth.LogOTPSender{Logger: sugar})
		defer rdb.Close()
	} else {
		code := os.Getenv("OTP_STATIC_CODE")
		if code == "" {
			code = "123456"
		}
		otp = auth.StaticOTPProvider{Code: code, Logger: sugar}
		sugar.Warn("no REDIS_ADDR configured; using static OTP provider")
	}

	svc := auth.NewService(userRepo, nil, tokens, otp, auth.LogMagicLinkSender{Logger: sugar}, sugar)
	handler := auth.NewHandler(svc, sugar)
	handler.EchoMagicToken = os.Getenv("MAGIC_LINK_DEV_ECHO") == "1"

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "4000"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router.RegisterRoutes(sugar, handler, svc),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infof("api listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := client.Ping(doneCtx, nil); err != nil {
		sugar.Warnf("mongo ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
