package movement

import (
	"testing"
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/vision"
)

func testConfig() config.MovementConfig {
	return config.MovementConfig{
		DeadZoneRatio:      0.12,
		MinPublishInterval: 0.5,
	}
}

func boxAt(centerX int) *vision.Box {
	return &vision.Box{X1: centerX - 50, Y1: 100, X2: centerX + 50, Y2: 220}
}

func TestCommandDerivation(t *testing.T) {
	// Framebreite 1000, Totzone 0.12: zentriert zwischen 380 und 620
	tests := []struct {
		name string
		box  *vision.Box
		want Command
	}{
		{"no face", nil, CommandNoFace},
		{"dead center", boxAt(500), CommandCentered},
		{"inside dead zone left", boxAt(390), CommandCentered},
		{"inside dead zone right", boxAt(610), CommandCentered},
		{"left of dead zone", boxAt(200), CommandMoveLeft},
		{"right of dead zone", boxAt(800), CommandMoveRight},
		{"exactly at dead zone edge", boxAt(620), CommandCentered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(testConfig())
			got, publish := d.Evaluate(tt.box, 1000)
			if got != tt.want {
				t.Errorf("command = %s, want %s", got, tt.want)
			}
			if !publish {
				t.Error("first evaluation must always publish")
			}
		})
	}
}

func TestPublishGating(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.now = func() time.Time { return current }

	// Erstes Kommando publiziert immer
	if _, publish := d.Evaluate(boxAt(200), 1000); !publish {
		t.Fatal("initial command not published")
	}

	// Gleiches Kommando kurz danach: unterdrückt
	current = base.Add(100 * time.Millisecond)
	if _, publish := d.Evaluate(boxAt(210), 1000); publish {
		t.Error("unchanged command republished before min interval")
	}

	// Kommandowechsel publiziert sofort, auch innerhalb des Intervalls
	current = base.Add(200 * time.Millisecond)
	if cmd, publish := d.Evaluate(boxAt(500), 1000); !publish || cmd != CommandCentered {
		t.Errorf("state change suppressed: cmd=%s publish=%v", cmd, publish)
	}

	// Gleiches Kommando nach Ablauf des Intervalls: Keep-Alive
	current = base.Add(800 * time.Millisecond)
	if _, publish := d.Evaluate(boxAt(500), 1000); !publish {
		t.Error("keep-alive republish missing after min interval")
	}
}

func TestNoFaceIsACommandLikeAnyOther(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.now = func() time.Time { return current }

	d.Evaluate(boxAt(500), 1000)

	// Gesicht verschwindet: sofortige Publikation des Wechsels
	current = base.Add(50 * time.Millisecond)
	if cmd, publish := d.Evaluate(nil, 1000); !publish || cmd != CommandNoFace {
		t.Errorf("NO_FACE transition not published: cmd=%s publish=%v", cmd, publish)
	}

	// NO_FACE wiederholt sich nur im Keep-Alive-Takt
	current = base.Add(100 * time.Millisecond)
	if _, publish := d.Evaluate(nil, 1000); publish {
		t.Error("NO_FACE republished before min interval")
	}
}

func TestResetForcesNextPublish(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.now = func() time.Time { return current }

	d.Evaluate(boxAt(500), 1000)
	current = base.Add(50 * time.Millisecond)
	d.Reset()

	if _, publish := d.Evaluate(boxAt(500), 1000); !publish {
		t.Error("publish suppressed after reset")
	}
}
