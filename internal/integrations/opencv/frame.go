package opencv

import (
	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// matFromFrame entpackt die gocv-Mat aus einem Frame. Kameras liefern
// Mat-Werte, Aligner und Bild-Loader Mat-Zeiger (damit der Ausschnitt
// über io.Closer freigebbar ist); beide Formen sind hier gleichwertig.
func matFromFrame(frame vision.Frame) (gocv.Mat, bool) {
	switch m := frame.(type) {
	case gocv.Mat:
		return m, true
	case *gocv.Mat:
		return *m, true
	}
	return gocv.Mat{}, false
}
