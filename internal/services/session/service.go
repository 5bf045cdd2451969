package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/core/facelock"
	"face-lock-go/internal/core/identity"
	"face-lock-go/internal/core/models"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/history"
	"face-lock-go/internal/integrations/mqtt"
	"face-lock-go/internal/movement"
	"face-lock-go/internal/server/sse"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
)

// Service betreibt die Verarbeitungsschleife: Frames lesen, durch die
// Engine schieben und die Ergebnisse an Historie, Datenbank, MQTT und
// SSE verteilen. Engine und Identitäts-Datenbank werden ausschließlich
// unter dem Service-Mutex angefasst; API-Aufrufe (Zielwahl, Freigabe,
// Einlernen) serialisieren sich darüber mit der Frame-Schleife.
type Service struct {
	cfg        *config.Config
	source     vision.Source
	engine     *facelock.Engine
	identities *identity.Database
	movement   *movement.Detector
	repo       repository.Repository
	mqttClient *mqtt.Client
	hub        *sse.Hub

	mu         sync.Mutex
	buffer     eventBuffer
	sessionLog *history.SessionLogger
	lastResult facelock.Result
	lastUpdate time.Time
}

// eventBuffer sammelt die Sink-Meldungen der Engine während eines
// Process-Aufrufs; der Service verteilt sie danach an Historie und DB.
type eventBuffer struct {
	statuses []string
	actions  []actions.Action
}

func (b *eventBuffer) LogStatus(message string) {
	b.statuses = append(b.statuses, message)
}

func (b *eventBuffer) LogActions(acts []actions.Action) {
	b.actions = append(b.actions, acts...)
}

func (b *eventBuffer) drain() ([]string, []actions.Action) {
	statuses, acts := b.statuses, b.actions
	b.statuses = nil
	b.actions = nil
	return statuses, acts
}

// NewService erstellt den Sitzungs-Service und registriert sich als
// Sink der Engine. mqttClient und hub dürfen nil sein.
func NewService(
	cfg *config.Config,
	source vision.Source,
	engine *facelock.Engine,
	identities *identity.Database,
	repo repository.Repository,
	mqttClient *mqtt.Client,
	hub *sse.Hub,
) *Service {
	s := &Service{
		cfg:        cfg,
		source:     source,
		engine:     engine,
		identities: identities,
		movement:   movement.NewDetector(cfg.Movement),
		repo:       repo,
		mqttClient: mqttClient,
		hub:        hub,
	}
	engine.SetSink(&s.buffer)
	return s
}

// Run betreibt die Frame-Schleife bis zum Stream-Ende oder Context-Abbruch
func (s *Service) Run(ctx context.Context) error {
	log.Info("Session service started, processing frames")
	defer s.closeSessionLog()

	for {
		select {
		case <-ctx.Done():
			log.Info("Session service stopping")
			return nil
		default:
		}

		frame, ok := s.source.Read()
		if !ok {
			log.Warn("Video source ended")
			return fmt.Errorf("video source ended")
		}
		s.processFrame(frame)
	}
}

// processFrame verarbeitet einen Frame und verteilt die Ergebnisse
func (s *Service) processFrame(frame vision.Frame) {
	frameWidth := frame.Cols()

	s.mu.Lock()
	prevMode := s.engine.Mode()
	result := s.engine.Process(frame)
	statuses, acts := s.buffer.drain()

	s.handleTransition(prevMode, result)
	s.recordEvents(result.TargetIdentity, statuses, acts)
	if prevMode != result.Mode {
		s.finishEndedSession(result.Mode)
	}

	s.lastResult = result
	s.lastUpdate = time.Now()

	// Bewegungsableitung noch unter dem Mutex: Reset aus SelectTarget
	// und Release schreibt denselben Entprell-Zustand.
	// Nur eine bestätigte Lock-Box steuert die Kamera.
	var box *vision.Box
	if result.Mode == facelock.ModeLocked {
		box = result.Box
	}
	cmd, publish := s.movement.Evaluate(box, frameWidth)
	s.mu.Unlock()

	if publish && s.mqttClient != nil {
		s.mqttClient.PublishMovement(cmd, result.LockConfidence)
	}

	if s.mqttClient != nil && prevMode != result.Mode {
		s.mqttClient.PublishStatus(mqtt.StatusMessage{
			Mode:           string(result.Mode),
			TargetIdentity: result.TargetIdentity,
			Confidence:     result.LockConfidence,
			Timestamp:      time.Now(),
		})
	}

	if s.hub != nil {
		s.hub.BroadcastFrame(result, cmd)
	}
}

// handleTransition öffnet beim Einrasten die Sitzungs-Historie.
// Muss unter s.mu laufen.
func (s *Service) handleTransition(prevMode facelock.Mode, result facelock.Result) {
	if prevMode == facelock.ModeSearching && result.Mode == facelock.ModeLocked && s.sessionLog == nil {
		logger, err := history.NewSessionLogger(s.cfg.History.Dir, result.TargetIdentity)
		if err != nil {
			log.Errorf("Failed to start session history: %v", err)
			return
		}
		s.sessionLog = logger
		log.Infof("Session history started: %s", logger.Path())
	}
}

// finishEndedSession schließt die Historie, wenn der Lock endgültig weg ist.
// Muss unter s.mu laufen.
func (s *Service) finishEndedSession(mode facelock.Mode) {
	if mode == facelock.ModeSearching {
		s.closeSessionLogLocked()
	}
}

// recordEvents schreibt Statusmeldungen und Aktionen in Historie und DB.
// Muss unter s.mu laufen.
func (s *Service) recordEvents(target string, statuses []string, acts []actions.Action) {
	if s.sessionLog != nil {
		for _, msg := range statuses {
			s.sessionLog.LogStatus(msg)
		}
		if len(acts) > 0 {
			s.sessionLog.LogActions(acts)
		}
	}

	if s.repo == nil {
		return
	}
	now := time.Now()
	for _, msg := range statuses {
		event := &models.SessionEvent{
			Identity:   target,
			Kind:       "status",
			Message:    msg,
			OccurredAt: now,
		}
		if err := s.repo.SaveEvent(event); err != nil {
			log.Errorf("Failed to persist status event: %v", err)
		}
	}
	for _, a := range acts {
		event := &models.SessionEvent{
			Identity:   target,
			Kind:       string(a.Kind),
			Message:    a.Description,
			Confidence: a.Confidence,
			Value:      a.Value,
			OccurredAt: a.Timestamp,
		}
		if err := s.repo.SaveEvent(event); err != nil {
			log.Errorf("Failed to persist action event: %v", err)
		}
	}
}

// SelectTarget wählt die einzurastende Identität; unbekannte Namen werden abgelehnt
func (s *Service) SelectTarget(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.engine.SelectTarget(name)
	statuses, _ := s.buffer.drain()
	if ok {
		// Eine laufende Sitzung endet mit der Neuwahl
		s.closeSessionLogLocked()
		s.recordEvents(s.engine.Target(), statuses, nil)
		s.movement.Reset()
	}
	return ok
}

// Release gibt den Lock manuell frei
func (s *Service) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Release()
	statuses, _ := s.buffer.drain()
	s.recordEvents(s.engine.Target(), statuses, nil)
	s.closeSessionLogLocked()
	s.movement.Reset()
}

// Target gibt die aktuell gewählte Zielidentität zurück
func (s *Service) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Target()
}

// AddIdentity nimmt eine frisch eingelernte Identität in die laufende
// Erkennung auf
func (s *Service) AddIdentity(name string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities.Add(name, embedding)
}

// Status ist der Zustands-Schnappschuss für die API
type Status struct {
	Mode           string    `json:"mode"`
	TargetIdentity string    `json:"target_identity,omitempty"`
	Confidence     float64   `json:"confidence"`
	LockedSeconds  float64   `json:"locked_seconds,omitempty"`
	LastUpdate     time.Time `json:"last_update"`
}

// Status gibt den Zustand der letzten verarbeiteten Frames zurück
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Mode:           string(s.lastResult.Mode),
		TargetIdentity: s.engine.Target(),
		Confidence:     s.lastResult.LockConfidence,
		LastUpdate:     s.lastUpdate,
	}
	if status.Mode == "" {
		status.Mode = string(facelock.ModeSearching)
	}
	if s.lastResult.LockedFor != nil {
		status.LockedSeconds = s.lastResult.LockedFor.Seconds()
	}
	return status
}

func (s *Service) closeSessionLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeSessionLogLocked()
}

func (s *Service) closeSessionLogLocked() {
	if s.sessionLog == nil {
		return
	}
	if err := s.sessionLog.Finalize(); err != nil {
		log.Errorf("Failed to finalize session history: %v", err)
	}
	log.Infof("Session history closed: %s (%d actions)", s.sessionLog.Path(), s.sessionLog.ActionCount())
	s.sessionLog = nil
}
