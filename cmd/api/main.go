package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-engine/cmd"
	"license-engine/internal/api"
	"license-engine/internal/config"
	"license-engine/internal/database"
	"license-engine/internal/licensing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	log.Println("Starting license status server...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatalf("error building validator config: %v", err)
	}

	validator, err := licensing.NewValidator(engineCfg)
	if err != nil {
		log.Fatalf("Failed to create license validator: %v", err)
	}

	var diagnostics *database.Diagnostics
	if cfg.DiagnosticsDBPath != "" {
		db, err := database.NewSqliteDatabase(cfg.DiagnosticsDBPath)
		if err != nil {
			log.Fatalf("Failed to open diagnostics database: %v", err)
		}
		diagnostics = database.NewDiagnostics(db)
		validator.AttachDiagnostics(diagnostics)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	service := api.NewLicenseService(validator, diagnostics)
	service.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		log.Printf("License status server listening on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	if err := server.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
