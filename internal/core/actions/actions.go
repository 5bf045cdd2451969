package actions

import "time"

// Kind bezeichnet die Art einer erkannten Gesichtsaktion
type Kind string

const (
	KindBlink       Kind = "blink"
	KindSmile       Kind = "smile"
	KindMoveLeft    Kind = "move_left"
	KindMoveRight   Kind = "move_right"
	KindFaceCloser  Kind = "face_closer"
	KindFaceFarther Kind = "face_farther"
)

// Action ist eine erkannte Gesichtsaktion. Actions sind flüchtig: sie
// werden pro Frame erzeugt, an Historie/Telemetrie übergeben und danach
// nicht weiter aufbewahrt.
type Action struct {
	Kind        Kind      `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float64   `json:"confidence"`
	Value       float64   `json:"value"`
	Description string    `json:"description"`
}
