package facelock

import (
	"fmt"
	"io"
	"time"

	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/core/identity"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
)

// Engine ist die Face-Lock-Zustandsmaschine. Sie entscheidet pro Frame
// zwischen dem schnellen Pfad (nur Tracker-Update) und dem langsamen Pfad
// (Detektion → Filter → Ausrichtung → Embedding → Abgleich), verwaltet den
// Lock-Zustand und treibt die Aktionserkennung.
//
// Die Engine ist nicht reentrant: Process darf erst wieder aufgerufen
// werden, wenn der vorherige Aufruf zurückgekehrt ist, und Frames müssen
// in monotoner zeitlicher Reihenfolge eintreffen. Lock-Zustand und
// Tracker-Sitzung gehören exklusiv der Engine.
type Engine struct {
	params Params

	detector   vision.Detector
	aligner    vision.Aligner
	embedder   vision.Embedder
	newTracker vision.TrackerFactory
	db         *identity.Database
	actions    *actions.Detector
	sink       Sink

	state      State
	tracker    vision.Tracker
	trackerOK  bool
	frameCount int

	// Letzter bekannter Landmark-Satz samt Konfidenz für den schnellen
	// Pfad: der Tracker liefert nur Boxen, keine neuen Landmarken.
	cachedLandmarks  vision.Landmarks
	cachedConfidence float64

	now func() time.Time
}

// NewEngine erstellt eine Engine im Zustand searching ohne Zielidentität
func NewEngine(
	params Params,
	detector vision.Detector,
	aligner vision.Aligner,
	embedder vision.Embedder,
	newTracker vision.TrackerFactory,
	db *identity.Database,
	actionDetector *actions.Detector,
) *Engine {
	return &Engine{
		params:     params,
		detector:   detector,
		aligner:    aligner,
		embedder:   embedder,
		newTracker: newTracker,
		db:         db,
		actions:    actionDetector,
		state:      State{Mode: ModeSearching},
		now:        time.Now,
	}
}

// SetSink registriert einen Empfänger für Status- und Aktionsmeldungen
func (e *Engine) SetSink(sink Sink) {
	e.sink = sink
}

// Mode gibt den aktuellen Lock-Zustand zurück
func (e *Engine) Mode() Mode {
	return e.state.Mode
}

// Target gibt die gewählte Zielidentität zurück (leer: keine)
func (e *Engine) Target() string {
	return e.state.TargetIdentity
}

// SelectTarget wählt die einzurastende Identität. Unbekannte Namen werden
// abgelehnt und lassen den Lock-Zustand unberührt; bekannte Namen setzen
// die Sitzung auf einen frischen searching-Zustand zurück.
func (e *Engine) SelectTarget(name string) bool {
	canonical, ok := e.db.Resolve(name)
	if !ok {
		log.Warnf("Target selection rejected: identity %q is not enrolled", name)
		return false
	}

	e.state = State{Mode: ModeSearching, TargetIdentity: canonical}
	e.dropTracker()
	e.cachedLandmarks = nil
	e.cachedConfidence = 0
	e.actions.Reset()

	log.Infof("Target identity selected: %s", canonical)
	e.logStatus(fmt.Sprintf("Target face selected: %s", canonical))
	return true
}

// Release gibt den Lock manuell frei und setzt den Zustand auf searching
func (e *Engine) Release() {
	if e.state.Mode != ModeLocked && e.state.Mode != ModeLost {
		return
	}
	e.state.Mode = ModeSearching
	e.state.Box = nil
	e.state.Landmarks = nil
	e.state.LockAcquiredAt = time.Time{}
	e.dropTracker()

	log.Info("Lock released by user")
	e.logStatus("Lock RELEASED by user")
}

// Process verarbeitet genau einen Frame und gibt den Ergebnis-Record
// zurück. Schneller Pfad: nur Tracker-Update. Langsamer Pfad: volle
// Detektion und Erkennung — auf jedem N-ten Frame oder bei Tracker-Ausfall.
func (e *Engine) Process(frame vision.Frame) Result {
	e.frameCount++
	now := e.now()

	res := Result{
		Mode:           e.state.Mode,
		TargetIdentity: e.state.TargetIdentity,
		Box:            e.state.Box,
		Landmarks:      e.state.Landmarks,
		LockConfidence: e.state.Confidence,
	}

	// Schneller Pfad: eingerastet und kein Erkennungs-Frame — nur tracken
	if (e.state.Mode == ModeLocked || e.state.Mode == ModeLost) && !e.isRecognitionFrame() && e.trackerOK {
		if box, ok := e.tracker.Update(frame); ok && box.Valid() {
			e.state.Mode = ModeLocked
			e.state.Box = &box
			e.state.FramesSinceDetection = 0

			res.Mode = ModeLocked
			res.Box = &box
			res.Landmarks = e.cachedLandmarks
			res.LockConfidence = e.cachedConfidence

			// Aktionen feuern auch zwischen vollen Erkennungen,
			// auf Basis der zuletzt bekannten Landmarken
			if e.cachedLandmarks != nil {
				res.Actions = e.actions.Detect(e.cachedLandmarks)
				e.logActions(res.Actions)
			}

			e.setLockedFor(&res, now)
			return res
		}
		// Tracker-Ausfall: Sitzung verwerfen und im selben Frame
		// auf den langsamen Pfad zurückfallen
		log.Debug("Tracker update failed, falling back to full detection")
		e.dropTracker()
	}

	// Langsamer Pfad: volle Detektion
	candidates, err := e.detector.Detect(frame, e.params.MaxFaces)
	if err != nil {
		// Detektorfehler degradieren zu "nichts gefunden"
		log.Warnf("Face detection failed: %v", err)
		candidates = nil
	}

	valid := e.filterCandidates(candidates)
	if len(valid) == 0 {
		e.handleTargetMissing(&res)
		e.setLockedFor(&res, now)
		return res
	}

	// Kandidatenauswahl und Erkennung
	target := e.recognizeSelected(frame, e.selectCandidates(valid), &res)

	if target == nil {
		e.handleTargetMissing(&res)
		e.setLockedFor(&res, now)
		return res
	}

	res.RecognitionDistance = &target.Distance

	switch e.state.Mode {
	case ModeSearching:
		if target.Confidence >= e.params.MinLockConfidence {
			e.acquireLock(frame, target, now, &res)
			e.logStatus(fmt.Sprintf("Lock ACQUIRED for %s (confidence=%.3f)",
				e.state.TargetIdentity, target.Confidence))
		}

	case ModeLocked:
		// Eine frische Detektion gewinnt immer gegen einen alten Tracker
		e.refreshLock(frame, target, &res)
		res.Actions = e.actions.Detect(target.Landmarks)
		e.logActions(res.Actions)

	case ModeLost:
		if target.Confidence >= e.params.MinLockConfidence {
			e.refreshLock(frame, target, &res)
			log.WithFields(log.Fields{
				"identity":   e.state.TargetIdentity,
				"confidence": target.Confidence,
			}).Info("Lock re-acquired")
			e.logStatus(fmt.Sprintf("Lock RE-ACQUIRED for %s", e.state.TargetIdentity))
		} else {
			// Zu schwache Sichtung zählt wie keine: der Verlustzähler
			// läuft weiter, sonst könnte der Timeout nie zuschlagen
			e.handleTargetMissing(&res)
		}
	}

	e.setLockedFor(&res, now)
	return res
}

// isRecognitionFrame entscheidet, ob auf diesem Frame die volle (teure)
// Erkennung laufen muss. In searching immer; eingerastet nur jeden N-ten
// Frame des laufenden Frame-Zählers.
func (e *Engine) isRecognitionFrame() bool {
	if e.state.Mode == ModeSearching {
		return true
	}
	return e.frameCount%e.params.RecognitionInterval == 0
}

// filterCandidates verwirft Rausch-Detektionen: zu kleine Boxen und
// Boxen mit unplausiblem Seitenverhältnis (Gesichter sind grob quadratisch).
func (e *Engine) filterCandidates(candidates []vision.Candidate) []vision.Candidate {
	out := make([]vision.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Box.Valid() {
			continue
		}
		if c.Box.Area() < e.params.minFaceArea() {
			continue
		}
		if ratio := c.Box.AspectRatio(); ratio < 0.5 || ratio > 2.0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// selectCandidates begrenzt die teure Erkennung: eingerastet nur Kandidaten
// nahe der letzten bekannten Position (Distanzschwelle 0.75 × Boxhöhe,
// Rückfall auf den größten Kandidaten), sonst nur den größten Kandidaten.
func (e *Engine) selectCandidates(valid []vision.Candidate) []vision.Candidate {
	if e.state.Mode == ModeLocked && e.state.Box != nil {
		lockedCenter := e.state.Box.Center()
		maxDist := float64(e.state.Box.Height()) * 0.75

		var near []vision.Candidate
		for _, c := range valid {
			if c.Box.Center().Distance(lockedCenter) < maxDist {
				near = append(near, c)
			}
		}
		if len(near) > 0 {
			return near
		}
	}
	return []vision.Candidate{largestCandidate(valid)}
}

func largestCandidate(candidates []vision.Candidate) vision.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Box.Area() > best.Box.Area() {
			best = c
		}
	}
	return best
}

// recognizeSelected richtet die gewählten Kandidaten aus, berechnet ihre
// Embeddings und gleicht sie gegen die Datenbank ab. Alle Beobachtungen
// landen in res.AllFaces (auch Nicht-Ziel-Identitäten, für die Anzeige);
// zurückgegeben wird die Beobachtung des Ziels, falls vorhanden.
func (e *Engine) recognizeSelected(frame vision.Frame, selected []vision.Candidate, res *Result) *Observation {
	var target *Observation
	for _, c := range selected {
		obs, err := e.recognize(frame, c)
		if err != nil {
			// Einzelne Fehlschläge degradieren zu "nicht erkannt"
			log.Debugf("Recognition failed for candidate at %+v: %v", c.Box, err)
			continue
		}
		res.AllFaces = append(res.AllFaces, obs)
		if target == nil && obs.Identity != "" && obs.Identity == e.state.TargetIdentity {
			t := obs
			target = &t
		}
	}
	return target
}

// recognize verarbeitet genau einen Kandidaten: ausrichten, einbetten,
// abgleichen. Die Konfidenz bezieht sich stets auf den nächstliegenden
// Datenbankeintrag, auch wenn dieser nicht das Ziel ist.
func (e *Engine) recognize(frame vision.Frame, c vision.Candidate) (Observation, error) {
	crop, err := e.aligner.Align(frame, c.Landmarks)
	if err != nil {
		return Observation{}, fmt.Errorf("face alignment failed: %w", err)
	}
	if closer, ok := crop.(io.Closer); ok {
		defer closer.Close()
	}

	embedding, err := e.embedder.Embed(crop)
	if err != nil {
		return Observation{}, fmt.Errorf("embedding failed: %w", err)
	}

	name, distance, confidence := e.db.Match(embedding, e.params.DistanceThreshold)
	return Observation{
		Box:        c.Box,
		Landmarks:  c.Landmarks.Clone(),
		Identity:   name,
		Distance:   distance,
		Confidence: confidence,
	}, nil
}

// handleTargetMissing zählt den Verlustzähler hoch und führt die
// Timeout-Logik aus: eingerastet geht es zunächst in die Karenzzeit
// (lost), nach Ablauf des Timeouts zurück auf searching.
func (e *Engine) handleTargetMissing(res *Result) {
	e.state.FramesSinceDetection++

	if e.state.Mode != ModeLocked && e.state.Mode != ModeLost {
		return
	}

	if e.state.FramesSinceDetection > e.params.LockTimeoutFrames {
		log.WithFields(log.Fields{
			"identity": e.state.TargetIdentity,
			"frames":   e.state.FramesSinceDetection,
		}).Info("Lock lost, timeout exceeded")
		e.logStatus("Lock LOST (face disappeared)")

		e.state.Mode = ModeSearching
		e.state.Box = nil
		e.state.Landmarks = nil
		e.dropTracker()

		res.Mode = ModeSearching
		res.Box = nil
		res.Landmarks = nil
		return
	}

	// Karenzzeit: Box und Landmarken bleiben unverändert erhalten,
	// bis das Ziel wieder auftaucht oder der Timeout zuschlägt
	e.state.Mode = ModeLost
	res.Mode = ModeLost
}

// acquireLock rastet auf dem Ziel ein und startet eine frische
// Tracker-Sitzung sowie eine neue Aktions-Sequenz.
func (e *Engine) acquireLock(frame vision.Frame, target *Observation, now time.Time, res *Result) {
	e.state.Mode = ModeLocked
	e.state.LockAcquiredAt = now
	e.actions.Reset()
	e.updateLockFromObservation(frame, target, res)

	log.WithFields(log.Fields{
		"identity":   e.state.TargetIdentity,
		"confidence": target.Confidence,
	}).Info("Lock acquired")
}

// refreshLock übernimmt Box, Landmarken und Konfidenz einer frischen
// Zieldetektion und initialisiert den Tracker neu.
func (e *Engine) refreshLock(frame vision.Frame, target *Observation, res *Result) {
	e.state.Mode = ModeLocked
	e.updateLockFromObservation(frame, target, res)
}

func (e *Engine) updateLockFromObservation(frame vision.Frame, target *Observation, res *Result) {
	box := target.Box
	e.state.Box = &box
	e.state.Landmarks = target.Landmarks.Clone()
	e.state.Confidence = target.Confidence
	e.state.FramesSinceDetection = 0
	e.cachedLandmarks = target.Landmarks.Clone()
	e.cachedConfidence = target.Confidence

	e.initTracker(frame, box)

	res.Mode = ModeLocked
	res.Box = &box
	res.Landmarks = e.state.Landmarks
	res.LockConfidence = target.Confidence
}

// initTracker startet eine frische Tracker-Sitzung auf einer bestätigten
// Box. Fehlschläge sind kein Fehler: der nächste Frame nimmt dann den
// langsamen Pfad.
func (e *Engine) initTracker(frame vision.Frame, box vision.Box) {
	e.dropTracker()
	if e.newTracker == nil || !box.Valid() {
		return
	}
	tracker := e.newTracker()
	if err := tracker.Init(frame, box); err != nil {
		log.Warnf("Tracker initialization failed: %v", err)
		return
	}
	e.tracker = tracker
	e.trackerOK = true
}

// dropTracker verwirft die aktuelle Tracker-Sitzung und gibt ihre
// Ressourcen frei, falls sie welche hält
func (e *Engine) dropTracker() {
	if closer, ok := e.tracker.(io.Closer); ok {
		closer.Close()
	}
	e.tracker = nil
	e.trackerOK = false
}

func (e *Engine) setLockedFor(res *Result, now time.Time) {
	if e.state.LockAcquiredAt.IsZero() {
		return
	}
	if res.Mode != ModeLocked && res.Mode != ModeLost {
		return
	}
	d := now.Sub(e.state.LockAcquiredAt)
	res.LockedFor = &d
}

func (e *Engine) logStatus(message string) {
	if e.sink != nil {
		e.sink.LogStatus(message)
	}
}

func (e *Engine) logActions(acts []actions.Action) {
	if e.sink != nil && len(acts) > 0 {
		e.sink.LogActions(acts)
	}
}
