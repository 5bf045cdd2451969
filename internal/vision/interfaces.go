package vision

// Frame ist die minimale Sicht der Engine auf ein Videobild. gocv.Mat
// erfüllt das Interface direkt; Tests verwenden leichte Fakes. Die Engine
// selbst liest nie Pixel, sie reicht Frames nur an die Capabilities durch.
type Frame interface {
	Cols() int
	Rows() int
}

// Detector erkennt Gesichter in einem vollen Frame. Ein Frame ohne
// Gesichter ist ein normales Ergebnis (leere Liste), kein Fehler.
type Detector interface {
	Detect(frame Frame, maxFaces int) ([]Candidate, error)
}

// Tracker ist eine kurzlebige Tracking-Sitzung für genau eine Bounding-Box.
// Update meldet Fehlschläge explizit; eine abgelaufene Sitzung darf niemals
// stillschweigend eine veraltete Box liefern.
type Tracker interface {
	// Init bindet den Tracker an eine bestätigte Gesichtsbox
	Init(frame Frame, box Box) error

	// Update schätzt die neue Boxposition; ok=false bedeutet Tracker verloren
	Update(frame Frame) (box Box, ok bool)
}

// TrackerFactory erzeugt eine frische Tracking-Sitzung. Die Engine erstellt
// bei jeder bestätigenden Detektion einen neuen Tracker.
type TrackerFactory func() Tracker

// Aligner warpt die Landmarken eines Kandidaten in einen kanonischen
// Ausschnitt für das Embedding. Der zurückgegebene Frame ist kurzlebig und
// wird vom Aufrufer geschlossen, falls er io.Closer implementiert.
type Aligner interface {
	Align(frame Frame, landmarks Landmarks) (Frame, error)
}

// Embedder bildet einen ausgerichteten Ausschnitt auf einen
// L2-normalisierten Merkmalsvektor fester Länge ab. Für identische
// Eingaben ist das Ergebnis deterministisch.
type Embedder interface {
	Embed(crop Frame) ([]float32, error)
}

// Source liefert Frames in monotoner zeitlicher Reihenfolge (z.B. eine
// Kamera). Read gibt ok=false zurück, wenn die Quelle erschöpft ist.
type Source interface {
	Read() (frame Frame, ok bool)
	Close() error
}
