package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Meetwin/AI-Lecturer/internal/api"
	"github.com/Meetwin/AI-Lecturer/internal/auth"
	"github.com/Meetwin/AI-Lecturer/internal/config"
	"github.com/Meetwin/AI-Lecturer/internal/core"
	"github.com/Meetwin/AI-Lecturer/internal/extract"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
	"github.com/Meetwin/AI-Lecturer/internal/persona"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	appLog, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if err := persona.Validate(); err != nil {
		appLog.Fatal("Persona registry is invalid", "error", err)
	}

	// Initialize store
	dataStore, err := store.Open(cfg.StoreDriver, cfg.DatabaseURL, cfg.RetentionCap)
	if err != nil {
		appLog.Fatal("Failed to initialize store", "driver", cfg.StoreDriver, "error", err)
	}
	defer dataStore.Close()

	m := metrics.New()

	// Initialize completion provider; a missing key leaves the gateway in fallback mode
	provider, err := core.NewProviderFromConfig(context.Background(), cfg)
	if err != nil {
		appLog.Fatal("Failed to initialize completion provider", "provider", cfg.AIProvider, "error", err)
	}
	llmService := core.NewLLMService(provider, core.ModelsFromConfig(cfg), appLog, m)
	defer llmService.Close()
	if !llmService.Configured() {
		appLog.Warn("No API key configured, answering in fallback mode", "provider", cfg.AIProvider)
	}

	sessions := auth.NewSessions(cfg.JWTSecret, auth.DefaultSessionTTL)
	maxUploadBytes := int64(cfg.MaxUploadMB) * 1024 * 1024

	apiHandler := api.NewAPIHandler(api.Services{
		Chat:     core.NewChatService(dataStore, llmService, cfg.ExcerptChars, appLog, m),
		Stories:  core.NewStoryService(llmService, appLog),
		Accounts: core.NewAccountService(dataStore, sessions, appLog),
		Groups:   core.NewGroupService(dataStore, appLog),
		Uploads:  core.NewUploadService(dataStore, extract.New(), cfg.UploadDir, maxUploadBytes, appLog, m),
		LLM:      llmService,
	}, api.Options{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: maxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Log:            appLog,
		Metrics:        m,
	})
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // Uploads can be large
		WriteTimeout: cfg.ProviderTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		appLog.Info("Starting server",
			"addr", serverAddr,
			"provider", llmService.ProviderName(),
			"store", cfg.StoreDriver,
			"personas", len(persona.All()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Could not listen", "addr", serverAddr, "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
	}

	appLog.Info("Server exiting gracefully")
}
