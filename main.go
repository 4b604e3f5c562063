package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/CodeAndHammer/learngames/internal/config"
	handlers "github.com/CodeAndHammer/learngames/internal/handlers"
	"github.com/CodeAndHammer/learngames/internal/logger"
	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/scheduler"
	"github.com/CodeAndHammer/learngames/internal/store"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log.SugaredLogger.Desugar())

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	log.Info("Starting learning games server",
		"env", cfg.Env,
		"store", cfg.Store.Driver,
		"actionLimit", cfg.DefaultPolicy.ActionLimit,
		"cooldown", cfg.DefaultPolicy.Cooldown,
		"actionPolicies", len(cfg.ActionPolicies),
	)

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatal("Failed to open store", "driver", cfg.Store.Driver, "error", err)
	}
	defer func() {
		if err := store.Close(st); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}()

	app := models.NewApp(cfg, log, st, nil)
	router := handlers.NewRouter(app)

	jobs := scheduler.New(app)
	if err := jobs.Start(); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}
	defer jobs.Stop()

	startServer(app, router)
}

func startServer(app *models.App, handler http.Handler) {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		app.Log.Info("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			app.Log.Warn("HTTP server Shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	app.Log.Info("Server starting", "addr", "http://localhost:"+app.Config.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		app.Log.Fatal("Server failed to start", "error", err)
	}
	<-idleConnsClosed
	app.Log.Info("Server shutdown complete")
}
