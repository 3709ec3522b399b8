package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatapp-gateway/internal/auth"
	"chatapp-gateway/internal/config"
	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/handlers"
	"chatapp-gateway/internal/jwt"
	"chatapp-gateway/internal/keyValue"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/presence"
	"chatapp-gateway/internal/service"
	"chatapp-gateway/internal/snowflake"
	"chatapp-gateway/internal/store"
	"chatapp-gateway/internal/validator"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *models.ConfigFile) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	if cfg.LogToFile {
		config.OutputPaths = []string{"app.log", "stdout"}
	}
	return config.Build()
}

func main() {
	fmt.Println("Reading config file...")
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println("Setting up logger...")
	logger, err := setupLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(cfg, sugar); err != nil {
		sugar.Fatal(err)
	}
}

func run(cfg *models.ConfigFile, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Setup(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer db.Close()

	kv, err := keyValue.Setup(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer kv.Close()

	node, err := snowflake.NewNode(cfg.SnowflakeWorkerID)
	if err != nil {
		return err
	}

	lifetime, err := config.JwtLifetime(cfg)
	if err != nil {
		return err
	}
	isHttps := config.IsHttps(cfg)
	signer := jwt.NewSigner(cfg.JwtSecret, lifetime, isHttps)

	validate := validator.New()
	st := store.New(db, node)
	authService := auth.NewService(st, signer, validate, sugar)

	registry := presence.NewRegistry()
	gw := gateway.New(gateway.NewRouter(sugar), registry, gateway.NewAssembler(st, registry), sugar)
	chat := service.New(st, gw, registry, validate, sugar)
	gw.UseMessages(chat)

	wsHandler := gateway.NewHandler(gw, authService, cfg.AllowedOrigins, sugar)
	h := handlers.New(authService, chat, st, kv, wsHandler, sugar)

	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           h.Routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		if isHttps {
			sugar.Infof("Server is running on https://%s", address)
			errs <- server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
		} else {
			sugar.Infof("Server is running on http://%s", address)
			errs <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	sugar.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	gw.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
