package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/http/http_server"
	"chatrelay/internal/redis/redis_client"
	"chatrelay/internal/relay"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:generate go tool swag init -g main.go -o api_specs --outputTypes json --parseInternal

var (
	Log, _ = zap.NewDevelopment()
)

//	@title			chatrelay admin API
//	@version		1.0
//	@description	Admin API of the chat relay server: health, metrics, live rooms and administrative room close.
//	@BasePath		/
func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if Log, err = newLogger(cfg); err != nil {
		zap.L().Fatal("Failed to build logger", zap.Error(err))
	}
	defer Log.Sync()
	zap.ReplaceGlobals(Log)
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Rooms, clients and the chat server
	registry := chat.NewRegistry()
	chatSrv := chat.NewServer(registry, chat.NewClientSet(), chat.Options{
		WriteTimeout:  cfg.WriteTimeout,
		SendQueueSize: cfg.SendQueueSize,
		MaxLineBytes:  cfg.MaxLineBytes,
	})

	// 4. Optional Redis relay between instances
	if cfg.RedisRelayEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		rl := relay.New(redisClient, cfg.InstanceID, registry)
		defer rl.Close()
		registry.OnChange(rl.Observe)
		chatSrv.SetRelay(rl)
		Log.Info("Redis relay enabled", zap.String("instance", cfg.InstanceID))
	}

	// 5. Chat TCP listener
	ln, err := net.Listen("tcp", cfg.ChatAddr())
	if err != nil {
		Log.Fatal("Failed to listen", zap.String("addr", cfg.ChatAddr()), zap.Error(err))
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- chatSrv.Serve(ctx, ln) }()

	// 6. Admin HTTP + WS server
	var httpServer interface{ Dispose() error }
	if cfg.HttpServerEnabled {
		hs := http_server.NewHttpServer(ctx, cfg.HttpServerPort, chatSrv, cfg.MaxLineBytes)
		httpServer = hs
		go func() {
			if err := hs.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Log.Fatal("Failed to start HTTP server", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		Log.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			Log.Error("Chat listener stopped", zap.Error(err))
		}
	}

	// 7. Graceful shutdown
	if httpServer != nil {
		_ = httpServer.Dispose()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := chatSrv.Shutdown(shutdownCtx); err != nil {
		Log.Warn("Chat shutdown incomplete", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
