package actions

import (
	"fmt"
	"math"
	"time"

	"face-lock-go/internal/vision"
)

// blinkState ist der Zustand der Blinzel-Zustandsmaschine.
// Übergänge: open → closing → closed → opening → open.
type blinkState int

const (
	blinkOpen blinkState = iota
	blinkClosing
	blinkClosed
	blinkOpening
)

// Config enthält die Schwellenwerte der Aktionserkennung. Alle Werte sind
// pro Frame definiert (Pixel-Deltas bzw. Verhältnisse zum Vorgänger-Frame),
// nicht zeitnormalisiert — siehe EngineConfig zum Frame-relativen Verhalten.
type Config struct {
	BlinkThreshold       float64 // Augenöffnungsverhältnis, unter dem die Augen als geschlossen gelten
	BlinkMinFrames       int     // Minimale Anzahl geschlossener Frames für ein vollständiges Blinzeln
	SmileThreshold       float64 // Relativer Anstieg der Mundhöhe
	MovementThresholdPx  float64 // Nasenverschiebung in Pixeln
	ScaleChangeThreshold float64 // Relative Änderung des Augenabstands
}

// DefaultConfig gibt die Standard-Schwellenwerte zurück
func DefaultConfig() Config {
	return Config{
		BlinkThreshold:       0.6,
		BlinkMinFrames:       2,
		SmileThreshold:       0.08,
		MovementThresholdPx:  8.0,
		ScaleChangeThreshold: 0.12,
	}
}

// Detector leitet diskrete Gesichtsaktionen aus aufeinanderfolgenden
// 5-Punkt-Landmark-Sätzen desselben Gesichts ab. Er ist zustandsbehaftet
// über Frames hinweg und gehört damit zu genau einer Landmark-Sequenz;
// beim Wechsel auf ein neues Gesicht ist Reset aufzurufen.
type Detector struct {
	cfg Config

	prevMouthHeight float64
	hasPrevMouth    bool
	prevNoseX       float64
	hasPrevNose     bool
	prevEyeDistance float64
	hasPrevEyeDist  bool

	blinkState  blinkState
	blinkFrames int

	now func() time.Time
}

// NewDetector erstellt einen Aktionsdetektor mit den gegebenen Schwellenwerten
func NewDetector(cfg Config) *Detector {
	if cfg.BlinkMinFrames < 1 {
		cfg.BlinkMinFrames = 1
	}
	return &Detector{
		cfg: cfg,
		now: time.Now,
	}
}

// Reset verwirft die Frame-Historie, z.B. wenn eine neue Landmark-Sequenz beginnt
func (d *Detector) Reset() {
	d.hasPrevMouth = false
	d.hasPrevNose = false
	d.hasPrevEyeDist = false
	d.blinkState = blinkOpen
	d.blinkFrames = 0
}

// Detect wertet einen Landmark-Satz aus und gibt null oder mehr Aktionen
// zurück. Alle vier Prüfungen laufen unabhängig; ein einzelner Frame kann
// mehrere Aktionen auslösen. Ein Satz, der nicht aus genau 5 Punkten
// besteht, verletzt den Aufrufer-Vertrag und liefert keine Aktionen.
func (d *Detector) Detect(landmarks vision.Landmarks) []Action {
	if !landmarks.Valid() {
		return nil
	}

	now := d.now()
	var out []Action

	leftEye := landmarks[vision.LeftEye]
	rightEye := landmarks[vision.RightEye]
	nose := landmarks[vision.NoseTip]
	leftMouth := landmarks[vision.LeftMouth]
	rightMouth := landmarks[vision.RightMouth]

	// Blinzeln
	eyeOpening := eyeOpeningRatio(leftEye, rightEye)
	if a := d.detectBlink(eyeOpening, now); a != nil {
		out = append(out, *a)
	}

	// Lächeln
	mouthHeight := math.Abs(rightMouth.Y - leftMouth.Y)
	if d.hasPrevMouth {
		if a := d.detectSmile(mouthHeight, now); a != nil {
			out = append(out, *a)
		}
	}

	// Kopfbewegung links/rechts
	if d.hasPrevNose {
		out = append(out, d.detectMovement(nose.X, now)...)
	}

	// Skalenänderung (näher/weiter)
	eyeDistance := leftEye.Distance(rightEye)
	if d.hasPrevEyeDist {
		if a := d.detectScaleChange(eyeDistance, now); a != nil {
			out = append(out, *a)
		}
	}

	// Historie aktualisieren
	d.prevMouthHeight = mouthHeight
	d.hasPrevMouth = true
	d.prevNoseX = nose.X
	d.hasPrevNose = true
	d.prevEyeDistance = eyeDistance
	d.hasPrevEyeDist = true

	return out
}

// eyeOpeningRatio schätzt die Augenöffnung (0 = geschlossen, 1 = offen)
// über die vertikale Spannweite der Augen-Landmarken relativ zum
// Augenabstand. Blinzeln reduziert die vertikale Spannweite deutlich.
func eyeOpeningRatio(leftEye, rightEye vision.Point) float64 {
	eyeDist := leftEye.Distance(rightEye)
	if eyeDist < 1.0 {
		return 1.0
	}
	ratio := math.Abs(rightEye.Y-leftEye.Y) / eyeDist
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// detectBlink treibt die 4-Zustands-Maschine. Der Zustand "closed" wird
// erst nach BlinkMinFrames aufeinanderfolgenden Frames mit niedrigem
// Verhältnis erreicht; das Blinzeln feuert genau auf dem Frame, auf dem
// sich die Augen aus "closed" heraus wieder öffnen.
func (d *Detector) detectBlink(eyeOpening float64, now time.Time) *Action {
	if eyeOpening > d.cfg.BlinkThreshold {
		// Augen offen
		switch d.blinkState {
		case blinkClosed:
			d.blinkState = blinkOpening
			d.blinkFrames = 0
			return &Action{
				Kind:        KindBlink,
				Timestamp:   now,
				Confidence:  0.85,
				Value:       eyeOpening,
				Description: "Eye blink detected (open -> closed -> open)",
			}
		case blinkClosing, blinkOpening:
			// Zu kurze Schließung bzw. abgeschlossener Zyklus
			d.blinkState = blinkOpen
			d.blinkFrames = 0
		}
		return nil
	}

	// Augen geschlossen
	switch d.blinkState {
	case blinkOpen, blinkOpening:
		d.blinkState = blinkClosing
		d.blinkFrames = 1
	case blinkClosing:
		d.blinkFrames++
	case blinkClosed:
		d.blinkFrames++
		return nil
	}
	if d.blinkFrames >= d.cfg.BlinkMinFrames {
		d.blinkState = blinkClosed
	}
	return nil
}

// detectSmile erkennt Lächeln/Lachen über den Anstieg der Mundhöhe
// gegenüber dem vorherigen Frame.
func (d *Detector) detectSmile(mouthHeight float64, now time.Time) *Action {
	if d.prevMouthHeight <= 0 {
		return nil
	}
	ratio := mouthHeight / d.prevMouthHeight
	if ratio <= 1.0+d.cfg.SmileThreshold {
		return nil
	}
	return &Action{
		Kind:        KindSmile,
		Timestamp:   now,
		Confidence:  math.Min(0.9, (ratio-1.0)/0.15),
		Value:       ratio,
		Description: fmt.Sprintf("Smile/laugh detected (mouth height ratio: %.2f)", ratio),
	}
}

// detectMovement erkennt Kopfbewegungen links/rechts über die Verschiebung
// der Nasenspitze gegenüber dem vorherigen Frame.
func (d *Detector) detectMovement(noseX float64, now time.Time) []Action {
	deltaX := noseX - d.prevNoseX
	if math.Abs(deltaX) <= d.cfg.MovementThresholdPx {
		return nil
	}

	confidence := math.Min(0.95, math.Abs(deltaX)/20.0)
	if deltaX > 0 {
		return []Action{{
			Kind:        KindMoveRight,
			Timestamp:   now,
			Confidence:  confidence,
			Value:       deltaX,
			Description: fmt.Sprintf("Head movement right (%.1fpx)", deltaX),
		}}
	}
	return []Action{{
		Kind:        KindMoveLeft,
		Timestamp:   now,
		Confidence:  confidence,
		Value:       math.Abs(deltaX),
		Description: fmt.Sprintf("Head movement left (%.1fpx)", math.Abs(deltaX)),
	}}
}

// detectScaleChange erkennt Abstandsänderungen zur Kamera über die
// relative Änderung des Augenabstands.
func (d *Detector) detectScaleChange(eyeDistance float64, now time.Time) *Action {
	if d.prevEyeDistance <= 0 {
		return nil
	}
	ratio := eyeDistance / d.prevEyeDistance

	if ratio > 1.0+d.cfg.ScaleChangeThreshold {
		return &Action{
			Kind:        KindFaceCloser,
			Timestamp:   now,
			Confidence:  math.Min(0.85, (ratio-1.0)/0.15),
			Value:       ratio,
			Description: fmt.Sprintf("Face moved closer to camera (scale ratio: %.2f)", ratio),
		}
	}
	if ratio < 1.0-d.cfg.ScaleChangeThreshold {
		return &Action{
			Kind:        KindFaceFarther,
			Timestamp:   now,
			Confidence:  math.Min(0.85, (1.0-ratio)/0.15),
			Value:       1.0 / ratio,
			Description: fmt.Sprintf("Face moved farther from camera (scale ratio: %.2f)", ratio),
		}
	}
	return nil
}
