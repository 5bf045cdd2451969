package vision

import "math"

// Indizes der 5-Punkt-Landmarken. Die Reihenfolge ist fest und wird von
// Detektor, Aligner und Aktionserkennung gleichermaßen vorausgesetzt.
const (
	LeftEye = iota
	RightEye
	NoseTip
	LeftMouth
	RightMouth

	// LandmarkCount ist die einzige gültige Länge eines Landmark-Satzes
	LandmarkCount = 5
)

// Point ist ein Punkt in Pixelkoordinaten des jeweiligen Frames
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance gibt den euklidischen Abstand zu einem anderen Punkt zurück
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Landmarks ist ein 5-Punkt-Landmark-Satz in der Reihenfolge
// linkes Auge, rechtes Auge, Nasenspitze, linker Mundwinkel, rechter Mundwinkel
type Landmarks []Point

// Valid prüft, ob der Satz genau die erwarteten 5 Punkte enthält
func (l Landmarks) Valid() bool {
	return len(l) == LandmarkCount
}

// Clone gibt eine unabhängige Kopie des Landmark-Satzes zurück
func (l Landmarks) Clone() Landmarks {
	if l == nil {
		return nil
	}
	out := make(Landmarks, len(l))
	copy(out, l)
	return out
}

// Box ist eine achsenparallele Bounding-Box in Pixelkoordinaten (x1,y1,x2,y2)
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width gibt die Breite der Box zurück
func (b Box) Width() int { return b.X2 - b.X1 }

// Height gibt die Höhe der Box zurück
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area gibt die Fläche der Box in Pixeln zurück
func (b Box) Area() int { return b.Width() * b.Height() }

// Center gibt den Mittelpunkt der Box zurück
func (b Box) Center() Point {
	return Point{
		X: float64(b.X1+b.X2) / 2,
		Y: float64(b.Y1+b.Y2) / 2,
	}
}

// AspectRatio gibt das Verhältnis Breite/Höhe zurück (0 bei degenerierter Box)
func (b Box) AspectRatio() float64 {
	if b.Height() <= 0 {
		return 0
	}
	return float64(b.Width()) / float64(b.Height())
}

// Valid prüft, ob die Box eine positive Ausdehnung hat
func (b Box) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Candidate ist ein vom Detektor gemeldetes Gesicht: Bounding-Box plus
// 5-Punkt-Landmarken, beide im Pixelraum desselben Frames. Kandidaten sind
// flüchtig und werden über den Frame hinaus nicht aufbewahrt.
type Candidate struct {
	Box       Box       `json:"box"`
	Landmarks Landmarks `json:"landmarks"`
}
