package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/api"
	"github.com/alejor21/trabajo-final-IA/internal/client"
	"github.com/alejor21/trabajo-final-IA/internal/config"
	"github.com/alejor21/trabajo-final-IA/internal/database"
	"github.com/alejor21/trabajo-final-IA/internal/live"
	"github.com/alejor21/trabajo-final-IA/internal/logger"
	"github.com/alejor21/trabajo-final-IA/internal/metrics"
	"github.com/alejor21/trabajo-final-IA/internal/session"
	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	port := flag.String("port", "", "Listen port (overrides PORT)")
	backendURL := flag.String("backend", "", "Detection backend URL (overrides EPP_BACKEND_URL)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}

	m := metrics.New()
	backend := client.NewClient(cfg.BackendURL,
		client.WithHTTPClient(&http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: m.InstrumentTransport(http.DefaultTransport),
		}),
		client.WithRateLimit(cfg.RateLimit),
	)

	workspace := session.NewWorkspace(backend, live.NewGenerator(cfg.LiveInterval))
	defer workspace.Close()

	hub := api.NewHub(func(n int) { m.EventClients.Set(float64(n)) })
	defer hub.Close()

	workspace.Subscribe(m.Listen)
	workspace.Subscribe(hub.Listen)

	app := &api.App{
		Workspace:     workspace,
		Storage:       localStorage,
		Backend:       backend,
		Hub:           hub,
		Metrics:       m,
		MaxUploadSize: cfg.MaxUploadSize,
	}

	if cfg.DBPath != "" {
		db, err := database.NewDB(database.Config{Path: cfg.DBPath})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize database")
		}
		defer db.Close()

		history := database.NewHistoryRepository(db)
		app.History = history
		workspace.Subscribe(api.RecordHistory(history))
		log.Infof("Analysis history: %s", cfg.DBPath)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		status, err := backend.Health(checkCtx)
		if err != nil {
			log.WithError(err).Warn("detection backend is not reachable yet")
			return
		}
		log.WithFields(log.Fields{"status": status.Status, "model_loaded": status.ModelLoaded}).Info("detection backend ready")
	}()

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		log.Infof("Detection backend: %s", backend.BaseURL())
		log.Infof("Upload directory: %s", cfg.UploadDir)
		log.Infof("Max upload size: %d bytes", cfg.MaxUploadSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
