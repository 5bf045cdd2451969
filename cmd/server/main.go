package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"face-lock-go/config"
	"face-lock-go/internal/cleanup"
	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/core/facelock"
	"face-lock-go/internal/db"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/integrations/mqtt"
	"face-lock-go/internal/integrations/opencv"
	"face-lock-go/internal/logger"
	"face-lock-go/internal/server"
	"face-lock-go/internal/server/handlers"
	"face-lock-go/internal/server/sse"
	"face-lock-go/internal/services/enrollment"
	"face-lock-go/internal/services/session"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
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

	// Datenbankverbindung initialisieren
	log.Info("Initializing database...")
	if err := db.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewSQLiteRepository(db.DB)

	// Eingelernte Identitäten in die Engine laden
	identities, err := repo.LoadIdentityDatabase()
	if err != nil {
		log.Fatalf("Failed to load identities: %v", err)
	}
	log.Infof("Loaded %d enrolled identities", identities.Len())

	// OpenCV-Komponenten aufbauen
	detector, err := opencv.NewHaarDetector(cfg.Models, cfg.Engine.MinFaceSize)
	if err != nil {
		log.Fatalf("Failed to initialize face detector: %v", err)
	}
	defer detector.Close()

	embedder, err := opencv.NewEmbedder(cfg.Models.EmbedderONNX)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}
	defer embedder.Close()

	aligner := opencv.NewAligner()

	camera, err := opencv.NewCamera(cfg.Camera)
	if err != nil {
		log.Fatalf("Failed to open video source: %v", err)
	}
	defer camera.Close()

	// Face-Lock-Engine aufbauen
	engine := facelock.NewEngine(
		facelock.Params{
			DistanceThreshold:   cfg.Engine.DistanceThreshold,
			MinLockConfidence:   cfg.Engine.MinLockConfidence,
			LockTimeoutFrames:   cfg.Engine.LockTimeoutFrames,
			RecognitionInterval: cfg.Engine.RecognitionInterval,
			MinFaceSize:         cfg.Engine.MinFaceSize,
			MaxFaces:            cfg.Engine.MaxFaces,
		},
		detector,
		aligner,
		embedder,
		func() vision.Tracker { return opencv.NewTracker() },
		identities,
		actions.NewDetector(actions.Config{
			BlinkThreshold:       cfg.Actions.BlinkThreshold,
			BlinkMinFrames:       cfg.Actions.BlinkMinFrames,
			SmileThreshold:       cfg.Actions.SmileThreshold,
			MovementThresholdPx:  cfg.Actions.MovementThresholdPx,
			ScaleChangeThreshold: cfg.Actions.ScaleChangeThreshold,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MQTT-Client starten, falls aktiviert
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to connect MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// SSE-Hub starten
	hub := sse.NewHub()
	go hub.Run()

	// Sitzungs-Service aufbauen
	sessionService := session.NewService(cfg, camera, engine, identities, repo, mqttClient, hub)

	// Einlern-Service mit eigenen Detektor- und Embedder-Instanzen: der
	// Gin-Handler läuft parallel zur Frame-Schleife, und gocv.Net
	// serialisiert Forward-Aufrufe nicht
	enrollDetector, err := opencv.NewHaarDetector(cfg.Models, cfg.Engine.MinFaceSize)
	if err != nil {
		log.Fatalf("Failed to initialize enrollment detector: %v", err)
	}
	defer enrollDetector.Close()

	enrollEmbedder, err := opencv.NewEmbedder(cfg.Models.EmbedderONNX)
	if err != nil {
		log.Fatalf("Failed to initialize enrollment embedder: %v", err)
	}
	defer enrollEmbedder.Close()

	enrollmentService := enrollment.NewService(enrollDetector, aligner, enrollEmbedder, repo, sessionService)

	// Bereinigungsdienst im Hintergrund starten
	cleanupService := cleanup.NewCleanupService(repo, cfg.Cleanup, cfg.History.Dir)
	go cleanupService.Start(ctx)

	// HTTP-Server starten
	apiHandler := handlers.NewAPIHandler(cfg, repo, sessionService, enrollmentService, hub)
	router := server.NewRouter(cfg, apiHandler)
	go func() {
		if err := server.Run(cfg, router); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Frame-Schleife im Vordergrund betreiben
	if err := sessionService.Run(ctx); err != nil {
		log.Errorf("Session service stopped: %v", err)
	}
	log.Info("Shutdown complete")
}
