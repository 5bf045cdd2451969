package opencv

import (
	"fmt"
	"image"

	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// Kantenlänge des ausgerichteten Gesichtsausschnitts; vom Embedder-Modell
// vorgegeben.
const AlignedSize = 112

// Referenzpositionen von linkem Auge, rechtem Auge und Nasenspitze im
// 112x112-Ausschnitt (ArcFace-Template).
var alignTemplate = [3]gocv.Point2f{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
}

// Aligner richtet ein Gesicht anhand seiner Landmarken auf den
// kanonischen 112x112-Ausschnitt aus. Die affine Abbildung wird aus
// Augen und Nasenspitze bestimmt; das reicht für Rotation, Skalierung
// und Translation.
type Aligner struct{}

// NewAligner erstellt einen Aligner
func NewAligner() *Aligner {
	return &Aligner{}
}

// Align schneidet das Gesicht ausgerichtet aus dem Frame. Der Aufrufer
// ist für das Schließen des zurückgegebenen Ausschnitts verantwortlich.
func (a *Aligner) Align(frame vision.Frame, landmarks vision.Landmarks) (vision.Frame, error) {
	mat, ok := matFromFrame(frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if !landmarks.Valid() {
		return nil, fmt.Errorf("alignment requires %d landmarks, got %d", vision.LandmarkCount, len(landmarks))
	}

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		toPoint2f(landmarks[vision.LeftEye]),
		toPoint2f(landmarks[vision.RightEye]),
		toPoint2f(landmarks[vision.NoseTip]),
	})
	defer src.Close()

	dst := gocv.NewPoint2fVectorFromPoints(alignTemplate[:])
	defer dst.Close()

	transform := gocv.GetAffineTransform2f(src, dst)
	defer transform.Close()

	aligned := gocv.NewMat()
	gocv.WarpAffine(mat, &aligned, transform, image.Pt(AlignedSize, AlignedSize))

	// Als Zeiger zurückgeben: nur so ist der Ausschnitt für den Aufrufer
	// über io.Closer freigebbar (Close hat einen Pointer-Receiver)
	return &aligned, nil
}

func toPoint2f(p vision.Point) gocv.Point2f {
	return gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
}
