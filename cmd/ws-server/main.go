package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"codesync-backend/internal/api"
	"codesync-backend/internal/api/router"
	"codesync-backend/internal/env"
	internaljwt "codesync-backend/internal/jwt"
	"codesync-backend/internal/logger"
	"codesync-backend/internal/queue"
	"codesync-backend/internal/websocket"
	"codesync-backend/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env.Load()

	flagSet := pflag.NewFlagSet("ws-server", pflag.ContinueOnError)
	addr := flagSet.String("addr", env.GetOrDefault(env.WSServerAddr, ":83"), "listen address")
	logLevel := flagSet.String("log-level", env.GetOrDefault(env.LogLevel, "info"), "debug, info, warn or error")
	logFormat := flagSet.String("log-format", env.GetOrDefault(env.LogFormat, "text"), "text or json")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger.Setup(*logLevel, *logFormat)
	internaljwt.Configure(internaljwt.RoleAdmin, env.Get(env.AdminSecretKey))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queueManager := queue.NewRequestQueueManager(env.GetInt(env.QueueSize, 10), env.GetInt(env.QueueWorkers, 10))
	defer queueManager.Shutdown()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	redisClient := websocket.NewRedisClient(env.Get(env.RedisURL), env.Get(env.RedisPass))
	if redisClient == nil {
		slog.Warn("redis not configured, rooms only receive locally produced events")
	} else {
		defer redisClient.Close()
	}

	origins := utils.SplitList(env.GetOrDefault(env.CORSAllowedOrigins, "*"))
	handler := websocket.NewHandler(hub, websocket.HandlerConfig{
		Redis:             redisClient,
		MessagesPerSecond: float64(env.GetInt(env.WSMessagesPerSecond, 100)),
		MessageBurst:      env.GetInt(env.WSMessageBurst, 200),
		CheckOrigin:       websocket.OriginChecker(origins),
	})

	server := api.NewAPIServer(
		*addr,
		queueManager,
		api.Dependencies{
			Handler:        handler,
			AllowedOrigins: origins,
			Collectors:     websocket.Collectors(),
		},
		router.UtilsRoutes("/api/ws/v1"),
		router.SessionRoutes("/api/ws/v1"),
	)

	go handler.SubscribeToRoomChannels(ctx)

	return server.Run(ctx)
}
