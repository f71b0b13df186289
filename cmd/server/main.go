package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OpenNSW/formengine/internal/api"
	"github.com/OpenNSW/formengine/internal/config"
	"github.com/OpenNSW/formengine/internal/database"
	"github.com/OpenNSW/formengine/internal/form"
	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/transport"
	"github.com/OpenNSW/formengine/internal/middleware"
	"github.com/OpenNSW/formengine/internal/session"
	"github.com/OpenNSW/formengine/internal/uploads"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	slog.Info("configuration loaded successfully",
		"db_driver", cfg.Database.Driver,
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"storage", cfg.Storage.Type,
	)

	slog.Info("CORS configuration",
		"allowed_origins", cfg.CORS.AllowedOrigins,
		"allowed_methods", cfg.CORS.AllowedMethods,
		"allow_credentials", cfg.CORS.AllowCredentials,
	)

	ctx := context.Background()

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	// Form registry, optionally backed by an upstream form service
	var remote transport.DefinitionSource
	if cfg.Forms.RemoteSourceURL != "" {
		remote = transport.NewHTTPSource(cfg.Forms.RemoteSourceURL)
		slog.Info("remote form source enabled", "url", cfg.Forms.RemoteSourceURL)
	}
	forms, err := form.NewService(db, remote)
	if err != nil {
		log.Fatalf("failed to create form service: %v", err)
	}
	if err := forms.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	if _, err := os.Stat(cfg.Forms.DefinitionsDir); err == nil {
		if _, err := forms.Seed(ctx, definition.NewFileSource(cfg.Forms.DefinitionsDir)); err != nil {
			log.Fatalf("failed to seed form definitions: %v", err)
		}
	} else {
		slog.Warn("form definitions directory not found, skipping seed", "dir", cfg.Forms.DefinitionsDir)
	}

	intake := form.NewIntake(db, forms)

	// Finished sessions go to the local intake unless a forwarding endpoint is configured
	var submitter engine.Submitter = intake.Submitter()
	if cfg.Forms.SubmissionURL != "" {
		submitter = transport.NewHTTPSubmitter(cfg.Forms.SubmissionURL)
		slog.Info("forwarding submissions", "url", cfg.Forms.SubmissionURL)
	}

	sessions, err := session.NewManager(forms, submitter, cfg.Forms.SessionCacheSize)
	if err != nil {
		log.Fatalf("failed to create session manager: %v", err)
	}

	storage, err := uploads.NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	files := uploads.NewHTTPHandler(uploads.NewUploadService(storage, int64(cfg.Storage.MaxUploadSizeMB)<<20))

	// Set up HTTP routes
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			api.WriteError(c, http.StatusServiceUnavailable, api.CodeInternal, err.Error())
			return
		}
		api.WriteJSON(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	form.NewRouter(forms, intake).Register(v1)
	session.NewRouter(sessions, files).Register(v1)
	files.Register(v1)

	// Wrap handler with CORS middleware
	handler := middleware.CORS(&cfg.CORS)(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port, "url", cfg.Server.ServiceURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}
}
