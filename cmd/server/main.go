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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plan-chat-backend/internal/config"
	"plan-chat-backend/internal/database"
	"plan-chat-backend/internal/events"
	"plan-chat-backend/internal/handlers"
	"plan-chat-backend/internal/llm"
	"plan-chat-backend/internal/middleware"
	"plan-chat-backend/internal/repository"
	"plan-chat-backend/internal/router"
	"plan-chat-backend/internal/services"
	"plan-chat-backend/internal/websocket"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts struct {
		EnvFile string
		Port    string
	}

	cmd := &cobra.Command{
		Use:           "plan-chat-server",
		Short:         "Serve the project planning chat API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if opts.EnvFile != "" {
				envFiles = append(envFiles, opts.EnvFile)
			}
			cfg := config.Load(envFiles...)
			if opts.Port != "" {
				cfg.Port = opts.Port
			}

			setupLogging(cfg)
			if err := run(cmd.Context(), cfg); err != nil {
				log.Error().Err(err).Msg("✗ Server stopped")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "Env file to load instead of .env")
	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("🚀 Starting Plan Chat Backend...")

	// ──── Step 1: Validate configuration ────
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Info().Msg("✓ Environment variables loaded")

	// ──── Step 2: Model catalog & provider registry ────
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	// ──── Step 3: Event bus ────
	bus, cleanup, err := buildBus(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// ──── Step 4: Store, services, handlers ────
	chatRepo := repository.NewChatRepo()
	chatService := services.NewChatService(chatRepo, registry, bus)
	chatHandler := handlers.NewChatHandler(chatService)

	// ──── Step 5: WebSocket hub ────
	wsHub := websocket.NewHub(cfg.AuthUsers)
	hubEvents, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe hub to chat events: %w", err)
	}
	log.Info().Msg("✓ WebSocket hub started")

	// ──── Step 6: HTTP server ────
	r := router.New(
		middleware.NewHeaderAuth(cfg.AuthUsers),
		middleware.NewRateLimiter(ctx, cfg.RateLimitPerMin, time.Minute),
		chatHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
		// Responses wait on the LLM, so the write timeout is configurable.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wsHub.Run(gctx, hubEvents)
	})
	g.Go(func() error {
		log.Info().Msgf("✓ Plan Chat Backend ready on http://localhost:%s", cfg.Port)
		log.Info().Msgf("  API: http://localhost:%s/api", cfg.Port)
		log.Info().Msgf("  WS:  ws://localhost:%s/api/ws", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildRegistry(cfg *config.Config) (*llm.Registry, error) {
	catalog, err := llm.LoadCatalog(cfg.ModelsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}

	registry := llm.NewRegistry(catalog, cfg.DefaultProvider)
	if cfg.GeminiAPIKey != "" {
		registry.Register(llm.ProviderGemini, llm.GeminiFactory(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs))
	}
	if cfg.OpenAIAPIKey != "" {
		registry.Register(llm.ProviderOpenAI, llm.OpenAIFactory(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	if cfg.MockLLM {
		registry.Register(llm.ProviderMock, llm.MockFactory("mock"))
	}

	for _, id := range registry.PruneCatalog() {
		log.Warn().Str("model", id).Msg("model dropped: provider not configured")
	}
	if len(registry.ListModelIDs()) == 0 {
		return nil, errors.New("model catalog is empty after removing unconfigured providers")
	}

	log.Info().Strs("providers", registry.Providers()).Strs("models", registry.ListModelIDs()).Msg("✓ LLM providers registered")
	return registry, nil
}

func buildBus(cfg *config.Config) (events.Bus, func(), error) {
	if cfg.RedisURL == "" {
		bus := events.NewChannelBus()
		log.Info().Msg("✓ In-process event bus ready")
		return bus, func() { bus.Close() }, nil
	}

	client, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info().Msg("✓ Redis connected")

	bus := events.NewRedisBus(client)
	return bus, func() {
		bus.Close()
		client.Close()
	}, nil
}
