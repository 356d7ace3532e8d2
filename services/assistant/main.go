// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/pkg/logging"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runlog"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runreg"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/sessionctx"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/synthesize"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
	"github.com/AleutianAI/InitiativeHub/services/assistant/config"
	"github.com/AleutianAI/InitiativeHub/services/assistant/handlers"
	"github.com/AleutianAI/InitiativeHub/services/assistant/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("assistant-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildGateway registers every configured provider backend.
func buildGateway(cfg *config.Config, keys *config.Keyring) (*provider.Gateway, error) {
	gateway := provider.NewGateway()

	for _, p := range cfg.Providers {
		tier := provider.TierStandard
		if p.Tier == "elevated" {
			tier = provider.TierElevated
		}
		desc := provider.Descriptor{ID: p.ID, Tier: tier, Available: p.Available}

		var backend provider.Backend
		var err error
		switch p.Kind {
		case "openai":
			apiKey := ""
			if keys.Has(p.ID) {
				k, err := keys.Key(p.ID)
				if err != nil {
					return nil, err
				}
				apiKey = k
			}
			backend, err = provider.NewOpenAIBackend(p.ID, apiKey, p.Model, p.BaseURL)
		case "ollama":
			backend, err = provider.NewOllamaBackend(p.ID, p.BaseURL, p.Model)
		}
		if err != nil {
			return nil, err
		}

		gateway.Register(desc, backend, p.RPS)
		slog.Info("Registered provider",
			"id", p.ID, "kind", p.Kind, "tier", string(tier), "available", p.Available)
	}
	return gateway, nil
}

func main() {
	logger := logging.New(logging.FromEnv())
	slog.SetDefault(logger)

	cfgPath := os.Getenv("ASSISTANT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("FATAL: could not load configuration: %v", err)
	}

	cleanup, err := initTracer(cfg.Server.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	keys, err := config.LoadKeys(cfg.Providers)
	if err != nil {
		log.Fatalf("FATAL: could not load provider keys: %v", err)
	}

	gateway, err := buildGateway(cfg, keys)
	if err != nil {
		log.Fatalf("FATAL: could not build provider gateway: %v", err)
	}

	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, gateway, logger)
		if err != nil {
			slog.Warn("Config hot reload disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	// TODO: swap MemStore for the initiative database client once the
	// read replica endpoint is provisioned.
	store := tools.NewMemStore()
	registry := tools.BuiltinCatalog(store)
	dispatcher := tools.NewDispatcher(registry,
		tools.WithToolTimeout(cfg.Server.ToolTimeout))

	sessionOpts := []sessionctx.StoreOption{sessionctx.WithLogger(logger)}
	if cfg.Sessions.RingCapacity > 0 {
		sessionOpts = append(sessionOpts, sessionctx.WithRingCapacity(cfg.Sessions.RingCapacity))
	}
	if cfg.Sessions.TTL > 0 {
		sessionOpts = append(sessionOpts, sessionctx.WithSessionTTL(cfg.Sessions.TTL))
	}
	sessions := sessionctx.NewStore(sessionOpts...)
	defer sessions.Close()

	var archive *runlog.Archive
	if cfg.Archive.Enabled {
		archiveOpts := []runlog.Option{runlog.WithLogger(logger)}
		if cfg.Archive.TTL > 0 {
			archiveOpts = append(archiveOpts, runlog.WithTTL(cfg.Archive.TTL))
		}
		archive, err = runlog.Open(cfg.Archive.Path, archiveOpts...)
		if err != nil {
			log.Fatalf("FATAL: could not open run archive: %v", err)
		}
		defer archive.Close()
	} else {
		slog.Info("Run archive disabled. Running in lightweight mode.")
	}

	synth := synthesize.New(gateway, cfg.DefaultProvider, provider.TierStandard,
		synthesize.WithLogger(logger))

	engine, err := agent.NewEngine(gateway, registry, dispatcher, sessions,
		agent.EngineConfig{
			MaxIterations: cfg.Engine.MaxIterations,
			RunTimeout:    cfg.Engine.RunTimeout,
			DefaultSkills: cfg.Engine.DefaultSkills,
			SystemPrompt:  cfg.Engine.SystemPrompt,
		},
		agent.WithFinalizer(synth),
		agent.WithEngineLogger(logger))
	if err != nil {
		log.Fatalf("FATAL: could not build the agent engine: %v", err)
	}

	ext := extensions.DefaultOptions().
		WithAudit(extensions.NewSlogAuditLogger(logger))

	deps := &handlers.Deps{
		Engine:          engine,
		Gateway:         gateway,
		Runs:            runreg.NewRegistry(logger),
		Sessions:        sessions,
		Archive:         archive,
		Audit:           ext.AuditLogger,
		DefaultProvider: cfg.DefaultProvider,
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("assistant-service"))
	routes.SetupRoutes(router, deps, ext.AuthProvider)

	slog.Info("Starting the assistant server", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
