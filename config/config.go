package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Models   ModelsConfig   `mapstructure:"models"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Actions  ActionsConfig  `mapstructure:"actions"`
	Movement MovementConfig `mapstructure:"movement"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	History  HistoryConfig  `mapstructure:"history"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen (SQLite)
type DBConfig struct {
	File string `mapstructure:"file"`
}

// CameraConfig enthält Einstellungen für die Videoquelle
type CameraConfig struct {
	Device int    `mapstructure:"device"` // OpenCV VideoCapture Index
	URL    string `mapstructure:"url"`    // Optional: RTSP/HTTP-Stream statt lokaler Kamera
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// ModelsConfig enthält Pfade zu den OpenCV-Modellen
type ModelsConfig struct {
	FaceCascade  string `mapstructure:"face_cascade"`  // Haar-Kaskade für Gesichter
	EyeCascade   string `mapstructure:"eye_cascade"`   // Haar-Kaskade für Augen (Landmark-Schätzung)
	EmbedderONNX string `mapstructure:"embedder_onnx"` // ArcFace-Modell für Embeddings
}

// EngineConfig enthält die Parameter der Face-Lock-Engine.
// Alle Timeouts und Intervalle sind bewusst in Frames angegeben, nicht in
// Wandzeit — das Verhalten bleibt dadurch unter Replay reproduzierbar.
type EngineConfig struct {
	DistanceThreshold   float64 `mapstructure:"distance_threshold"`   // Kosinus-Distanz-Schwellenwert für die Erkennung
	MinLockConfidence   float64 `mapstructure:"min_lock_confidence"`  // Minimale Konfidenz für das Einrasten
	LockTimeoutFrames   int     `mapstructure:"lock_timeout_frames"`  // Frames ohne Ziel bis zur Freigabe des Locks
	RecognitionInterval int     `mapstructure:"recognition_interval"` // Volle Erkennung alle N Frames
	MinFaceSize         int     `mapstructure:"min_face_size"`        // Minimale Gesichtskantenlänge in Pixeln
	MaxFaces            int     `mapstructure:"max_faces"`            // Maximale Kandidaten pro Detektionslauf
}

// ActionsConfig enthält die Schwellenwerte der Aktionserkennung
type ActionsConfig struct {
	BlinkThreshold       float64 `mapstructure:"blink_threshold"`        // Augenöffnungsverhältnis, unter dem die Augen als geschlossen gelten
	BlinkMinFrames       int     `mapstructure:"blink_min_frames"`       // Minimale Anzahl geschlossener Frames für ein Blinzeln
	SmileThreshold       float64 `mapstructure:"smile_threshold"`        // Relativer Anstieg der Mundhöhe für ein Lächeln
	MovementThresholdPx  float64 `mapstructure:"movement_threshold_px"`  // Nasenverschiebung in Pixeln für eine Kopfbewegung
	ScaleChangeThreshold float64 `mapstructure:"scale_change_threshold"` // Relative Änderung des Augenabstands für näher/weiter
}

// MovementConfig enthält die Parameter der Bewegungsableitung für die Servo-Steuerung
type MovementConfig struct {
	DeadZoneRatio      float64 `mapstructure:"dead_zone_ratio"`      // Anteil der Framebreite um die Mitte, der als zentriert gilt
	MinPublishInterval float64 `mapstructure:"min_publish_interval"` // Sekunden zwischen erzwungenen Re-Publishes
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	TeamID   string `mapstructure:"team_id"` // Topic-Namensraum: vision/<team_id>/...
}

// MovementTopic gibt das Topic für Bewegungskommandos zurück
func (c MQTTConfig) MovementTopic() string {
	return fmt.Sprintf("vision/%s/movement", c.TeamID)
}

// StatusTopic gibt das Topic für Lock-Statusmeldungen zurück
func (c MQTTConfig) StatusTopic() string {
	return fmt.Sprintf("vision/%s/status", c.TeamID)
}

// HistoryConfig enthält Einstellungen für die Sitzungs-Historien
type HistoryConfig struct {
	Dir string `mapstructure:"dir"`
}

// CleanupConfig enthält Bereinigungseinstellungen
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("FACE_LOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Konfiguration in Struct umwandeln
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/face-lock.log")

	// DB-Standardwerte
	v.SetDefault("db.file", "/data/face-lock.db")

	// Kamera-Standardwerte
	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)

	// Modell-Standardwerte
	v.SetDefault("models.face_cascade", "/models/haarcascade_frontalface_default.xml")
	v.SetDefault("models.eye_cascade", "/models/haarcascade_eye.xml")
	v.SetDefault("models.embedder_onnx", "/models/embedder_arcface.onnx")

	// Engine-Standardwerte
	v.SetDefault("engine.distance_threshold", 0.54)
	v.SetDefault("engine.min_lock_confidence", 0.65)
	v.SetDefault("engine.lock_timeout_frames", 30)
	v.SetDefault("engine.recognition_interval", 15)
	v.SetDefault("engine.min_face_size", 60)
	v.SetDefault("engine.max_faces", 3)

	// Aktions-Standardwerte
	v.SetDefault("actions.blink_threshold", 0.6)
	v.SetDefault("actions.blink_min_frames", 2)
	v.SetDefault("actions.smile_threshold", 0.08)
	v.SetDefault("actions.movement_threshold_px", 8.0)
	v.SetDefault("actions.scale_change_threshold", 0.12)

	// Bewegungs-Standardwerte
	v.SetDefault("movement.dead_zone_ratio", 0.12)
	v.SetDefault("movement.min_publish_interval", 0.5)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "127.0.0.1")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "face-lock-go")
	v.SetDefault("mqtt.team_id", "team01")

	// Historien-Standardwerte
	v.SetDefault("history.dir", "/data/face_histories")

	// Bereinigungs-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)
}

// validate prüft Wertebereiche, die zur Laufzeit sonst stilles Fehlverhalten erzeugen würden
func validate(cfg *Config) error {
	if cfg.Engine.RecognitionInterval < 1 {
		return fmt.Errorf("engine.recognition_interval must be >= 1, got %d", cfg.Engine.RecognitionInterval)
	}
	if cfg.Engine.LockTimeoutFrames < 1 {
		return fmt.Errorf("engine.lock_timeout_frames must be >= 1, got %d", cfg.Engine.LockTimeoutFrames)
	}
	if cfg.Engine.DistanceThreshold <= 0 || cfg.Engine.DistanceThreshold > 2 {
		return fmt.Errorf("engine.distance_threshold must be in (0, 2], got %v", cfg.Engine.DistanceThreshold)
	}
	if cfg.Engine.MinLockConfidence < 0 || cfg.Engine.MinLockConfidence > 1 {
		return fmt.Errorf("engine.min_lock_confidence must be in [0, 1], got %v", cfg.Engine.MinLockConfidence)
	}
	if cfg.Movement.DeadZoneRatio < 0 || cfg.Movement.DeadZoneRatio >= 0.5 {
		return fmt.Errorf("movement.dead_zone_ratio must be in [0, 0.5), got %v", cfg.Movement.DeadZoneRatio)
	}
	return nil
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	// Daten-Basisverzeichnis
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Historien-Verzeichnis
	if cfg.History.Dir != "" {
		if err := os.MkdirAll(cfg.History.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	// Log-Verzeichnis
	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// Datenbank-Verzeichnis (für SQLite)
	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
