// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pathlore/pathlore/services/boundary"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/llm"
	"github.com/pathlore/pathlore/services/observability"
)

// Serve builds the full App from cfg and runs the HTTP server until a
// SIGINT/SIGTERM arrives, then shuts down gracefully. Both
// cmd/pathlore-server and the "pathlore serve" CLI subcommand call this
// so the bootstrap sequence is defined exactly once.
func Serve(ctx context.Context, cfg *config.Config, serviceName string, prettyTracing bool) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Pretty:         prettyTracing,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	app, err := Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("app shutdown failed", "error", err)
		}
	}()

	go warmUpLLM(app)

	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	engine.GET("/readyz", func(c *gin.Context) {
		if err := app.DB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	boundary.RegisterRoutes(engine.Group("/api"), app.Handlers)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("pathlore server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return <-serveErr
}

// warmUpLLM issues a throwaway completion at startup so the first real
// request doesn't pay for a cold local-model load. A failure here is
// logged, not fatal: the server still comes up and Complete will retry
// per request as usual.
func warmUpLLM(app *App) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("llm warm-up panicked", "recovered", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	params := llm.GenerationParams{MaxTokens: 8, Temperature: 0, Mode: llm.ModeText}
	if _, err := app.LLM.Complete(ctx, "ping", params); err != nil {
		slog.Warn("llm warm-up failed, continuing without it", "error", err)
	}
}
