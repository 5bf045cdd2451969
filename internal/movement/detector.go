package movement

import (
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/vision"
)

// Command ist ein Schwenk-Kommando für die Kameranachführung. Die Werte
// gehen unverändert als MQTT-Payload raus und sind damit Teil des
// Wire-Formats.
type Command string

const (
	CommandMoveLeft  Command = "MOVE_LEFT"
	CommandMoveRight Command = "MOVE_RIGHT"
	CommandCentered  Command = "CENTERED"
	CommandNoFace    Command = "NO_FACE"
)

// Detector leitet aus der horizontalen Position der Lock-Box ein
// Schwenk-Kommando ab. Um die Framemitte liegt eine Totzone, innerhalb
// derer nicht nachgeführt wird; das verhindert Servo-Zittern bei einem
// ruhig sitzenden Gesicht.
//
// Der Detector entprellt zusätzlich die Publikation: ein Kommando wird
// nur bei Zustandswechsel oder nach Ablauf des Mindestintervalls
// (Keep-Alive für den Empfänger) zur Veröffentlichung freigegeben.
type Detector struct {
	deadZoneRatio      float64
	minPublishInterval time.Duration

	lastCommand   Command
	hasLast       bool
	lastPublished time.Time

	now func() time.Time
}

// NewDetector erstellt einen Bewegungsdetektor mit den konfigurierten Parametern
func NewDetector(cfg config.MovementConfig) *Detector {
	return &Detector{
		deadZoneRatio:      cfg.DeadZoneRatio,
		minPublishInterval: time.Duration(cfg.MinPublishInterval * float64(time.Second)),
		now:                time.Now,
	}
}

// Evaluate berechnet das Kommando für den aktuellen Frame und entscheidet,
// ob es veröffentlicht werden soll. box ist die aktuelle Lock-Box oder nil,
// wenn kein Ziel sichtbar ist.
func (d *Detector) Evaluate(box *vision.Box, frameWidth int) (Command, bool) {
	command := d.commandFor(box, frameWidth)

	now := d.now()
	publish := !d.hasLast || command != d.lastCommand ||
		now.Sub(d.lastPublished) >= d.minPublishInterval
	if publish {
		d.lastCommand = command
		d.hasLast = true
		d.lastPublished = now
	}
	return command, publish
}

// Reset verwirft den Entprell-Zustand; das nächste Evaluate publiziert immer
func (d *Detector) Reset() {
	d.hasLast = false
	d.lastPublished = time.Time{}
}

func (d *Detector) commandFor(box *vision.Box, frameWidth int) Command {
	if box == nil || frameWidth <= 0 {
		return CommandNoFace
	}

	offset := box.Center().X - float64(frameWidth)/2
	deadZone := d.deadZoneRatio * float64(frameWidth)

	switch {
	case offset < -deadZone:
		return CommandMoveLeft
	case offset > deadZone:
		return CommandMoveRight
	default:
		return CommandCentered
	}
}
