package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jnsite/internal/config"
	"jnsite/internal/database"
	"jnsite/internal/server"
	"jnsite/internal/services"
	"jnsite/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second

	defaultSessionSecret = "change-me-session-secret"
)

const defaultLandingPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>JN</title>
</head>
<body>
  <h1>Welcome</h1>
  <p>This page can be edited from the admin area.</p>
</body>
</html>
`

func main() {
	log.SetPrefix("[API] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Starting %s v%s", cfg.App.Name, cfg.App.Version)
	log.Printf("Environment: debug=%v, port=%s, host=%s", cfg.App.Debug, cfg.App.Port, cfg.App.Host)

	log.Println("Initializing database connection...")
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Println("Closing database connections...")
		if err := database.Close(db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	log.Println("Initializing services...")
	locale := services.NewLocale(cfg.Site.DisplayLocale, cfg.Site.DisplayTimezone)
	authSvc := services.NewAuthService(db, &cfg.Admin)
	if err := authSvc.EnsureAdmin(context.Background()); err != nil {
		log.Fatalf("Failed to ensure admin credential: %v", err)
	}

	contentSvc := services.NewContentService(cfg.Site.LandingFile)
	if err := contentSvc.EnsureDefault(defaultLandingPage); err != nil {
		log.Fatalf("Failed to prepare landing page: %v", err)
	}

	pool := worker.NewPool(cfg.Worker.Size, cfg.Worker.QueueSize)

	var notifier services.Notifier
	emailSvc := services.NewEmailService(&cfg.Email)
	if emailSvc.IsEnabled() {
		notifier = emailSvc
		log.Printf("Submission notifications enabled via %s to %s", cfg.Email.Provider, cfg.Email.NotifyEmail)
	} else {
		log.Println("Submission notifications disabled")
	}

	sessionSvc := services.NewSessionService(db, &cfg.Session)
	cleanerCtx, stopCleaner := context.WithCancel(context.Background())
	defer stopCleaner()
	go sessionSvc.RunCleaner(cleanerCtx)

	srv, err := server.New(cfg, server.Deps{
		Auth:        authSvc,
		Sessions:    sessionSvc,
		Visits:      services.NewVisitService(db),
		Submissions: services.NewSubmissionService(db, locale, notifier, pool),
		Stats:       services.NewStatsService(db),
		Content:     contentSvc,
		Health:      services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
		Locale:      locale,
	})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     log.New(os.Stderr, "[HTTP] ", log.LstdFlags),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Printf("Server failed to start: %v", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v. Starting graceful shutdown...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Println("Shutdown timeout exceeded, forcing close...")
			_ = httpServer.Close()
		}
	}

	stopCleaner()
	if err := pool.Stop(ctx); err != nil {
		log.Printf("Background jobs did not finish: %v", err)
	}

	log.Println("Server shutdown complete")
}

// validateConfig rejects settings that are only acceptable in debug mode
func validateConfig(cfg *config.Config) error {
	if cfg.App.Debug {
		return nil
	}
	if cfg.Session.Secret == defaultSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be changed from the default value")
	}
	if len(cfg.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	return nil
}
