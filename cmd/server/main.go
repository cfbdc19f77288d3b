package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facegate/config"
	"facegate/internal/api/handlers"
	"facegate/internal/api/middleware"
	"facegate/internal/auth"
	"facegate/internal/cleanup"
	"facegate/internal/db"
	"facegate/internal/db/repository"
	"facegate/internal/extractor"
	"facegate/internal/integrations/mqtt"
	"facegate/internal/logger"
	"facegate/internal/recognition"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const defaultConfigPath = "/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Pfad zur Konfigurationsdatei")
	flag.Parse()

	// Konfiguration laden
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logger initialisieren
	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Datenbank initialisieren
	log.Info("Initializing database...")
	if err := db.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Info("Database initialization complete.")

	repo := repository.NewSQLiteRepository(db.DB)

	// Zugangsprüfung und Sitzungs-Token
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	gate := auth.NewGate(repo, tokens)

	// Extraktionsgrenze zum externen Embedding-Dienst
	embedder := extractor.New(cfg.Extractor)

	// Optionale Ereignis-Publikation über MQTT
	var publisher recognition.Publisher
	if cfg.MQTT.Enabled {
		mqttClient := mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
		} else {
			publisher = mqttClient
			defer mqttClient.Stop()
		}
	}

	// Erkennungsdienst
	recorder := recognition.NewRecorder(repo)
	recognizer := recognition.NewService(repo, recorder, embedder, publisher, recognition.Options{
		DefaultThreshold: cfg.Recognition.DefaultThreshold,
		RetainImages:     cfg.Recognition.RetainImages,
		RetainedDir:      cfg.Server.RetainedDir,
	})

	// Bereinigungsdienst im Hintergrund starten
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cleanupService := cleanup.NewService(repo, cfg.Cleanup, cfg.Server.UploadDir)
	go cleanupService.Start(ctx)

	// Übersetzungen für lokalisierte Fehlermeldungen
	translator, err := middleware.NewTranslator()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// HTTP-Router aufbauen
	router := buildRouter(cfg, translator)
	handler := handlers.NewHandler(cfg, repo, repo, repo, tokens, recognizer, embedder)
	handler.RegisterRoutes(router, middleware.NewAuthMiddleware(gate))

	// Server starten und auf Signale warten
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Forced shutdown: %v", err)
	}

	log.Info("Server stopped")
}

// buildRouter erstellt die gin-Engine mit der globalen Middleware-Kette
func buildRouter(cfg *config.Config, translator *middleware.Translator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestMetrics())
	router.Use(middleware.I18n(translator))

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-API-Key")
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
