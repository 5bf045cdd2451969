package opencv

import (
	"fmt"
	"image"

	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// Der Tracker meldet auch dann noch Erfolg, wenn die Box längst aus dem
// Bild gedriftet oder zusammengefallen ist. Unterhalb dieser Kantenlänge
// gilt das Tracking als verloren.
const minTrackedSize = 20

// Tracker verfolgt eine bestätigte Gesichtsbox zwischen zwei vollen
// Erkennungsläufen. Eine Instanz gehört zu genau einer Tracking-Sitzung:
// nach einem Fehlschlag wird sie verworfen und neu erzeugt.
type Tracker struct {
	tracker gocv.Tracker
}

// NewTracker erstellt einen unintialisierten Tracker; vision.TrackerFactory
func NewTracker() vision.Tracker {
	return &Tracker{}
}

// Init startet eine Tracking-Sitzung auf der gegebenen Box
func (t *Tracker) Init(frame vision.Frame, box vision.Box) error {
	mat, ok := matFromFrame(frame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", frame)
	}

	t.release()
	tracker := gocv.NewTrackerMIL()
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	if !tracker.Init(mat, rect) {
		tracker.Close()
		return fmt.Errorf("tracker initialization failed for box %+v", box)
	}
	t.tracker = tracker
	return nil
}

// Update verfolgt die Box in den nächsten Frame. Neben dem Tracker-Status
// wird die Box auf Plausibilität geprüft: sie muss im Frame liegen und
// eine Mindestgröße behalten.
func (t *Tracker) Update(frame vision.Frame) (vision.Box, bool) {
	if t.tracker == nil {
		return vision.Box{}, false
	}
	mat, ok := matFromFrame(frame)
	if !ok {
		return vision.Box{}, false
	}

	rect, ok := t.tracker.Update(mat)
	if !ok {
		return vision.Box{}, false
	}

	box := vision.Box{X1: rect.Min.X, Y1: rect.Min.Y, X2: rect.Max.X, Y2: rect.Max.Y}
	if !plausible(box, mat.Cols(), mat.Rows()) {
		return vision.Box{}, false
	}
	return box, true
}

// Close gibt die Tracker-Ressourcen frei
func (t *Tracker) Close() error {
	t.release()
	return nil
}

func (t *Tracker) release() {
	if t.tracker != nil {
		t.tracker.Close()
		t.tracker = nil
	}
}

func plausible(box vision.Box, frameWidth, frameHeight int) bool {
	if !box.Valid() {
		return false
	}
	if box.Width() < minTrackedSize || box.Height() < minTrackedSize {
		return false
	}
	if box.X1 < 0 || box.Y1 < 0 || box.X2 > frameWidth || box.Y2 > frameHeight {
		return false
	}
	return true
}
