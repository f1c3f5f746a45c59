// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonathanwmaddison/jonabot/background"
	"github.com/jonathanwmaddison/jonabot/handlers"
	"github.com/jonathanwmaddison/jonabot/llm"
	"github.com/jonathanwmaddison/jonabot/middleware"
	"github.com/jonathanwmaddison/jonabot/observability"
	"github.com/jonathanwmaddison/jonabot/routes"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
)

const (
	// shutdownTimeout bounds the HTTP server drain.
	shutdownTimeout = 10 * time.Second

	// drainTimeout bounds the background-task drain that follows; it must
	// cover the tee's 30s persistence window.
	drainTimeout = 35 * time.Second
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// No collector configured; spans stay in-process no-ops.
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("jonabot-backend")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newStore picks the persistence sink: Supabase when configured, otherwise
// the embedded Badger log (lightweight mode).
func newStore() (sessionlog.Store, error) {
	if os.Getenv("SUPABASE_URL") != "" {
		return sessionlog.NewSupabaseStoreFromEnv()
	}

	dataDir := os.Getenv("JONABOT_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data/sessions"
	}
	slog.Info("SUPABASE_URL not set. Running in lightweight mode with local session log.",
		"path", dataDir)
	cfg := sessionlog.DefaultBadgerConfig(dataDir)
	cfg.Logger = slog.Default()
	return sessionlog.OpenBadgerStore(cfg)
}

func main() {
	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env")
	}

	port := os.Getenv("JONABOT_PORT")
	if port == "" {
		port = "8080"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	store, err := newStore()
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer store.Close()

	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	var mailer handlers.Mailer
	mailer, err = handlers.NewSMTPMailerFromEnv()
	if err != nil {
		slog.Warn("Contact mailer not configured, contact endpoint will fail sends",
			"error", err)
		mailer = unconfiguredMailer{}
	}

	tasks := background.NewRegistry()
	resolver := handlers.NewSessionResolver(store)
	tee := handlers.NewStreamTee(store, tasks)
	refreshCookies := os.Getenv("SESSION_COOKIE_SLIDING") == "true"
	chat := handlers.NewChatHandler(llmClient, resolver, tee, refreshCookies)

	router := gin.Default()
	router.Use(otelgin.Middleware("jonabot-backend"))
	routes.SetupRoutes(router, routes.Deps{
		Chat:    chat,
		Store:   store,
		Limiter: middleware.NewSlidingWindowLimiter(3, time.Hour),
		Mailer:  mailer,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		slog.Info("Starting JonaBot backend", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain the logging
	// tasks so no transcript write is cut off.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := tasks.Wait(drainCtx); err != nil {
		slog.Error("Background tasks did not drain before deadline", "error", err)
	}
	slog.Info("Shutdown complete")
}

// unconfiguredMailer keeps the contact route alive without SMTP settings;
// every send reports failure.
type unconfiguredMailer struct{}

func (unconfiguredMailer) Send(context.Context, handlers.ContactMessage) error {
	return errors.New("mailer not configured: set GMAIL_USER and GMAIL_APP_PASSWORD")
}
