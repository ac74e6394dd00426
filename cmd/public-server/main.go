package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"codesync-backend/internal/api"
	"codesync-backend/internal/api/router"
	"codesync-backend/internal/database"
	"codesync-backend/internal/env"
	"codesync-backend/internal/execution"
	internaljwt "codesync-backend/internal/jwt"
	"codesync-backend/internal/logger"
	"codesync-backend/internal/queue"
	executionservice "codesync-backend/internal/service/execution"
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

	flagSet := pflag.NewFlagSet("public-server", pflag.ContinueOnError)
	addr := flagSet.String("addr", env.GetOrDefault(env.PublicServerAddr, ":82"), "listen address")
	languagesFile := flagSet.String("languages", env.Get(env.ExecutionLanguagesFile), "YAML file overriding the language routing table")
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

	routes := execution.DefaultRoutes()
	if *languagesFile != "" {
		loaded, err := execution.LoadRoutes(*languagesFile)
		if err != nil {
			return err
		}
		routes = loaded
	}

	timeout := env.GetDuration(env.ExecutionTimeout, 10*time.Second)
	dispatcher, err := execution.NewDispatcher(routes,
		execution.NewPistonBackend(env.GetOrDefault(env.PistonURL, execution.DefaultPistonURL), timeout),
		execution.NewLocalBackend(timeout),
	)
	if err != nil {
		return err
	}

	var db *database.Database
	dbConfig := database.ConfigFromEnv()
	if dbConfig.Enabled() {
		db, err = database.NewDatabase(ctx, dbConfig)
		if err != nil {
			return fmt.Errorf("db init failed: %w", err)
		}
	} else {
		slog.Warn("dynamodb not configured, executions are not recorded")
	}

	var publisher executionservice.Publisher
	if redisClient := websocket.NewRedisClient(env.Get(env.RedisURL), env.Get(env.RedisPass)); redisClient != nil {
		defer redisClient.Close()
		publisher = websocket.NewPublisher(redisClient)
	} else {
		slog.Warn("redis not configured, execution results are not shared with rooms")
	}

	svc := executionservice.New(dispatcher, db, publisher)

	queueManager := queue.NewRequestQueueManager(env.GetInt(env.QueueSize, 10), env.GetInt(env.QueueWorkers, 10))
	defer queueManager.Shutdown()

	server := api.NewAPIServer(
		*addr,
		queueManager,
		api.Dependencies{
			Execution:      svc,
			AllowedOrigins: utils.SplitList(env.GetOrDefault(env.CORSAllowedOrigins, "*")),
			Collectors:     executionservice.Collectors(),
		},
		router.UtilsRoutes("/api/public/v1"),
		router.ExecutionRoutes("/api/public/v1"),
	)

	return server.Run(ctx)
}
