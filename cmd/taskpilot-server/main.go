package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskpilot/taskpilot/internal/activity"
	activityrepo "github.com/taskpilot/taskpilot/internal/activity/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/board"
	boardrepo "github.com/taskpilot/taskpilot/internal/board/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/chat"
	chatrepo "github.com/taskpilot/taskpilot/internal/chat/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/event"
	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/generation"
	"github.com/taskpilot/taskpilot/internal/lifecycle"
	"github.com/taskpilot/taskpilot/internal/pushnotification"
	pushsubrepo "github.com/taskpilot/taskpilot/internal/pushsubscription/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/relay"
	"github.com/taskpilot/taskpilot/internal/stats"
	"github.com/taskpilot/taskpilot/internal/task"
	taskrepo "github.com/taskpilot/taskpilot/internal/task/repositoryimpl"
	"github.com/taskpilot/taskpilot/pkg/clog"
	"github.com/taskpilot/taskpilot/pkg/storage"

	server "github.com/taskpilot/taskpilot/internal"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	boardRepo := boardrepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	chatRepo := chatrepo.NewYAMLRepository(store)
	activityRepo := activityrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	// Setup agent registry, optionally hot-reloaded from a config file.
	agents, err := agent.LoadConfig(env.LLMEnv.AgentConfigPath)
	if err != nil {
		slog.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}
	registry := agent.NewRegistry(agents)
	if env.LLMEnv.AgentConfigPath != "" {
		go agent.WatchConfig(ctx, env.LLMEnv.AgentConfigPath, registry)
	}

	// Setup generation backend
	var generator generation.Generator
	switch env.LLMEnv.Provider {
	case "gemini":
		generator, err = generation.NewGeminiGenerator(ctx, env.LLMEnv.GeminiAPIKey, env.LLMEnv.GeminiModel)
		if err != nil {
			slog.Error("failed to create gemini generator", "error", err)
			os.Exit(1)
		}
	case "openrouter":
		generator, err = generation.NewOpenRouterGenerator(env.LLMEnv.OpenRouterBase, env.LLMEnv.OpenRouterAPIKey, env.LLMEnv.OpenRouterModel)
		if err != nil {
			slog.Error("failed to create openrouter generator", "error", err)
			os.Exit(1)
		}
	default:
		generator = generation.NewStaticGenerator()
	}

	// Setup lifecycle controller
	recorder := activity.NewRecorder(activityRepo)
	rly := relay.New(generator, relay.WithTimeout(env.LLMEnv.RequestTimeout))
	controller := lifecycle.New(taskRepo, registry, rly, recorder, bus)

	// Setup servers
	boardServer := board.NewServer(boardRepo, taskRepo, bus)
	taskServer := task.NewServer(taskRepo, controller, boardRepo, registry, bus)
	agentServer := agent.NewServer(registry, controller)
	chatServer := chat.NewServer(chatRepo, boardRepo, bus)
	activityServer := activity.NewServer(activityRepo)
	statsServer := stats.NewServer(taskRepo, registry, controller)
	eventServer := event.NewServer(bus)

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo)
	pushServer := pushnotification.NewServer(vapidEnv, pushSubRepo)
	pushDispatcher := pushnotification.NewDispatcher(bus, taskRepo, pushSender)

	srv := server.NewServer(
		env,
		boardServer,
		taskServer,
		agentServer,
		chatServer,
		activityServer,
		statsServer,
		eventServer,
		pushServer,
	)

	go pushDispatcher.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give active connections and in-flight relays time to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	controller.Wait()
}
