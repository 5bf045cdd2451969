package opencv

import (
	"fmt"
	"image"
	"sort"

	"face-lock-go/config"
	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// HaarDetector findet Gesichter per Haar-Kaskade und schätzt die fünf
// Landmarken. Die Augen kommen aus einer zweiten Kaskade im oberen
// Gesichtsdrittel; Nase und Mundwinkel werden aus der Gesichtsgeometrie
// abgeleitet. Findet die Augen-Kaskade nichts, greift ein geometrisches
// Standard-Layout über der Box.
type HaarDetector struct {
	face        gocv.CascadeClassifier
	eyes        gocv.CascadeClassifier
	minFaceSize int
}

// NewHaarDetector lädt die Kaskaden-Modelle
func NewHaarDetector(cfg config.ModelsConfig, minFaceSize int) (*HaarDetector, error) {
	face := gocv.NewCascadeClassifier()
	if !face.Load(cfg.FaceCascade) {
		face.Close()
		return nil, fmt.Errorf("failed to load face cascade from %s", cfg.FaceCascade)
	}

	eyes := gocv.NewCascadeClassifier()
	if !eyes.Load(cfg.EyeCascade) {
		face.Close()
		eyes.Close()
		return nil, fmt.Errorf("failed to load eye cascade from %s", cfg.EyeCascade)
	}

	return &HaarDetector{face: face, eyes: eyes, minFaceSize: minFaceSize}, nil
}

// Detect findet Gesichter im Frame, größte zuerst, begrenzt auf maxFaces
func (d *HaarDetector) Detect(frame vision.Frame, maxFaces int) ([]vision.Candidate, error) {
	mat, ok := matFromFrame(frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	// Graustufen plus Histogrammausgleich verbessern die Kaskaden-Trefferquote
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	minSize := image.Pt(d.minFaceSize, d.minFaceSize)
	rects := d.face.DetectMultiScaleWithParams(
		equalized,
		1.1,             // Skalierungsfaktor
		4,               // minNeighbors
		0,               // Flags (bei neuen Kaskaden ungenutzt)
		minSize,         // Minimale Gesichtsgröße
		image.Pt(0, 0),  // Keine Obergrenze
	)

	sort.Slice(rects, func(i, j int) bool {
		return rects[i].Dx()*rects[i].Dy() > rects[j].Dx()*rects[j].Dy()
	})
	if maxFaces > 0 && len(rects) > maxFaces {
		rects = rects[:maxFaces]
	}

	candidates := make([]vision.Candidate, 0, len(rects))
	for _, r := range rects {
		candidates = append(candidates, vision.Candidate{
			Box:       vision.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
			Landmarks: d.estimateLandmarks(equalized, r),
		})
	}
	return candidates, nil
}

// Close gibt die Kaskaden-Ressourcen frei
func (d *HaarDetector) Close() error {
	if err := d.face.Close(); err != nil {
		return err
	}
	return d.eyes.Close()
}

// estimateLandmarks schätzt die fünf Landmarken eines Gesichts. Die Augen
// werden in der oberen Gesichtshälfte gesucht; Nase und Mundwinkel folgen
// dem typischen Gesichtsaufbau relativ zur Box.
func (d *HaarDetector) estimateLandmarks(gray gocv.Mat, face image.Rectangle) vision.Landmarks {
	w := float64(face.Dx())
	h := float64(face.Dy())
	x := float64(face.Min.X)
	y := float64(face.Min.Y)

	leftEye, rightEye, found := d.locateEyes(gray, face)
	if !found {
		leftEye = vision.Point{X: x + 0.30*w, Y: y + 0.37*h}
		rightEye = vision.Point{X: x + 0.70*w, Y: y + 0.37*h}
	}

	return vision.Landmarks{
		leftEye,
		rightEye,
		{X: x + 0.50*w, Y: y + 0.55*h}, // Nasenspitze
		{X: x + 0.35*w, Y: y + 0.80*h}, // linker Mundwinkel
		{X: x + 0.65*w, Y: y + 0.80*h}, // rechter Mundwinkel
	}
}

// locateEyes sucht die beiden Augen in der oberen Gesichtshälfte
func (d *HaarDetector) locateEyes(gray gocv.Mat, face image.Rectangle) (left, right vision.Point, found bool) {
	upper := image.Rect(
		face.Min.X, face.Min.Y,
		face.Max.X, face.Min.Y+face.Dy()/2,
	)
	roi := gray.Region(upper)
	defer roi.Close()

	eyes := d.eyes.DetectMultiScale(roi)
	if len(eyes) < 2 {
		return vision.Point{}, vision.Point{}, false
	}

	// Die beiden größten Treffer sind mit Abstand am verlässlichsten
	sort.Slice(eyes, func(i, j int) bool {
		return eyes[i].Dx()*eyes[i].Dy() > eyes[j].Dx()*eyes[j].Dy()
	})
	a := eyeCenter(eyes[0], upper)
	b := eyeCenter(eyes[1], upper)
	if a.X <= b.X {
		return a, b, true
	}
	return b, a, true
}

func eyeCenter(eye image.Rectangle, roi image.Rectangle) vision.Point {
	return vision.Point{
		X: float64(roi.Min.X+eye.Min.X) + float64(eye.Dx())/2,
		Y: float64(roi.Min.Y+eye.Min.Y) + float64(eye.Dy())/2,
	}
}
