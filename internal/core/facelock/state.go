package facelock

import (
	"time"

	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/vision"
)

// Mode ist der Zustand des Face-Locks
type Mode string

const (
	// ModeSearching: kein Ziel eingerastet, volle Erkennung auf jedem Frame
	ModeSearching Mode = "searching"

	// ModeLocked: Ziel verifiziert und aktiv verfolgt
	ModeLocked Mode = "locked"

	// ModeLost: Ziel kurzzeitig verloren, Karenzzeit läuft noch
	ModeLost Mode = "lost"
)

// Params sind die Konstruktionsparameter der Engine; zur Laufzeit
// unveränderlich. Timeouts und Intervalle sind in Frames angegeben.
type Params struct {
	DistanceThreshold   float64 // Kosinus-Distanz, bis zu der ein Kandidat als erkannt gilt
	MinLockConfidence   float64 // Minimale Konfidenz für Einrasten bzw. Wiedereinrasten
	LockTimeoutFrames   int     // Frames ohne bestätigtes Ziel bis zur Freigabe
	RecognitionInterval int     // Volle Erkennung alle N Frames, dazwischen nur Tracking
	MinFaceSize         int     // Minimale Gesichtskantenlänge in Pixeln (Rauschfilter)
	MaxFaces            int     // Obergrenze der Kandidaten pro Detektionslauf
}

// DefaultParams gibt die Standardparameter der Engine zurück
func DefaultParams() Params {
	return Params{
		DistanceThreshold:   0.54,
		MinLockConfidence:   0.65,
		LockTimeoutFrames:   30,
		RecognitionInterval: 15,
		MinFaceSize:         60,
		MaxFaces:            3,
	}
}

// minFaceArea gibt die minimale Gesichtsfläche in Pixeln zurück
func (p Params) minFaceArea() int {
	return p.MinFaceSize * p.MinFaceSize
}

// State ist der einzige veränderliche, sitzungslange Zustand des Locks.
// Er wird bei der Zielauswahl erzeugt, von der Engine pro Frame mutiert
// und bei manueller Freigabe oder Timeout auf searching zurückgesetzt.
// Pro Sitzung existiert höchstens ein State.
type State struct {
	Mode                 Mode
	TargetIdentity       string
	Box                  *vision.Box
	Landmarks            vision.Landmarks
	Confidence           float64
	FramesSinceDetection int
	LockAcquiredAt       time.Time // Nullwert: kein aktiver Lock
}

// Observation ist ein im aktuellen Frame erkannter Kandidat inklusive
// Erkennungsergebnis — auch Nicht-Ziel-Identitäten, für die Anzeige.
type Observation struct {
	Box        vision.Box       `json:"box"`
	Landmarks  vision.Landmarks `json:"landmarks"`
	Identity   string           `json:"identity,omitempty"` // leer: unbekannt
	Distance   float64          `json:"distance"`
	Confidence float64          `json:"confidence"`
}

// Result ist der alleinige Ausgabevertrag der Engine pro verarbeitetem
// Frame; bewusst anzeige- und transportneutral.
type Result struct {
	Mode                Mode             `json:"mode"`
	TargetIdentity      string           `json:"target_identity,omitempty"`
	Box                 *vision.Box      `json:"box,omitempty"`
	Landmarks           vision.Landmarks `json:"landmarks,omitempty"`
	RecognitionDistance *float64         `json:"recognition_distance,omitempty"`
	LockConfidence      float64          `json:"lock_confidence"`
	Actions             []actions.Action `json:"actions,omitempty"`
	LockedFor           *time.Duration   `json:"locked_for,omitempty"`
	AllFaces            []Observation    `json:"all_faces,omitempty"`
}

// Sink empfängt Statusmeldungen und Aktionen der laufenden Sitzung.
// Append-only; die Engine liest nie zurück.
type Sink interface {
	LogStatus(message string)
	LogActions(acts []actions.Action)
}
