package config

import (
	"os"
	"path/filepath"
	"testing"
)

// testConfig liefert eine Konfiguration, deren Verzeichnisse in ein
// Temp-Verzeichnis zeigen, damit Load keine Systempfade anlegt.
func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  data_dir: " + dir + "\nlog:\n  file: " + filepath.Join(dir, "logs", "test.log") +
		"\ndb:\n  file: " + filepath.Join(dir, "test.db") +
		"\nhistory:\n  dir: " + filepath.Join(dir, "histories") + "\n" + body
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Engine.DistanceThreshold != 0.54 {
		t.Errorf("engine.distance_threshold = %v, want 0.54", cfg.Engine.DistanceThreshold)
	}
	if cfg.Engine.MinLockConfidence != 0.65 {
		t.Errorf("engine.min_lock_confidence = %v, want 0.65", cfg.Engine.MinLockConfidence)
	}
	if cfg.Engine.LockTimeoutFrames != 30 {
		t.Errorf("engine.lock_timeout_frames = %d, want 30", cfg.Engine.LockTimeoutFrames)
	}
	if cfg.Engine.RecognitionInterval != 15 {
		t.Errorf("engine.recognition_interval = %d, want 15", cfg.Engine.RecognitionInterval)
	}
	if cfg.Engine.MinFaceSize != 60 {
		t.Errorf("engine.min_face_size = %d, want 60", cfg.Engine.MinFaceSize)
	}
	if cfg.Actions.BlinkThreshold != 0.6 {
		t.Errorf("actions.blink_threshold = %v, want 0.6", cfg.Actions.BlinkThreshold)
	}
	if cfg.Movement.DeadZoneRatio != 0.12 {
		t.Errorf("movement.dead_zone_ratio = %v, want 0.12", cfg.Movement.DeadZoneRatio)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeTestConfig(t, "engine:\n  distance_threshold: 0.4\n  recognition_interval: 10\nmqtt:\n  team_id: elvin01\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Engine.DistanceThreshold != 0.4 {
		t.Errorf("engine.distance_threshold = %v, want 0.4", cfg.Engine.DistanceThreshold)
	}
	if cfg.Engine.RecognitionInterval != 10 {
		t.Errorf("engine.recognition_interval = %d, want 10", cfg.Engine.RecognitionInterval)
	}
	if got := cfg.MQTT.MovementTopic(); got != "vision/elvin01/movement" {
		t.Errorf("MovementTopic() = %q, want vision/elvin01/movement", got)
	}
	if got := cfg.MQTT.StatusTopic(); got != "vision/elvin01/status" {
		t.Errorf("StatusTopic() = %q, want vision/elvin01/status", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero recognition interval", "engine:\n  recognition_interval: 0\n"},
		{"zero lock timeout", "engine:\n  lock_timeout_frames: 0\n"},
		{"negative distance threshold", "engine:\n  distance_threshold: -0.1\n"},
		{"confidence above one", "engine:\n  min_lock_confidence: 1.5\n"},
		{"dead zone covers whole frame", "movement:\n  dead_zone_ratio: 0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestConfig(t, tt.body)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config %q", tt.body)
			}
		})
	}
}
