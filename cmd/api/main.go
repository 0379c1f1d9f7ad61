// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/internal/config"
	"github.com/playground-ai/agent-platform/internal/handler"
	"github.com/playground-ai/agent-platform/internal/llm"
	"github.com/playground-ai/agent-platform/internal/middleware"
	natsclient "github.com/playground-ai/agent-platform/internal/nats"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Transcript store: JetStream when a NATS_URL is configured, in-memory
	// otherwise.
	var store service.MessageStore
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", "error", err)
			os.Exit(1)
		}
		store = streamManager
	} else {
		log.Warn("NATS_URL not set, transcripts are in-memory only")
		store = service.NewMemoryStore()
	}

	// Initialize LLM client
	llmClient, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), llmAPIKey(cfg))
	if err != nil {
		log.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}

	// Agent toolchain
	tools := agent.NewRegistry(
		agent.NewDocumentTool(),
		agent.NewListArtifactsTool(),
	)
	runner := agent.NewRunner(llmClient, tools, cfg.Model, log)

	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		log.Error("failed to create artifacts dir", "dir", cfg.ArtifactsDir, "error", err)
		os.Exit(1)
	}

	// Initialize services
	conversationSvc := service.NewConversationService(store, log)
	recorder := service.NewTranscriptRecorder(store, conversationSvc, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	conversationHandler := handler.NewConversationHandler(conversationSvc, cfg.ArtifactsDir, cfg.AllowConversationDelete, log)
	artifactHandler := handler.NewArtifactHandler(conversationSvc, cfg.ArtifactsDir, log)
	chatHandler := handler.NewChatHandler(
		runner, conversationSvc, recorder, store,
		cfg.ArtifactsDir, cfg.Model, cfg.RunIdleTimeout, log,
	)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/artifacts", artifactHandler.List)
			})
		})

		r.Get("/artifacts/{conversationID}", artifactHandler.List)
		r.Get("/artifacts/{conversationID}/{filename}", artifactHandler.Download)
	})

	// Create HTTP server. WriteTimeout stays unset so long-lived streams are
	// never cut by the server itself.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func llmAPIKey(cfg *config.Config) string {
	if llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}
