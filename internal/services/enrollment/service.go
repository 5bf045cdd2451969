package enrollment

import (
	"fmt"
	"io"
	"strings"

	"face-lock-go/internal/core/models"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/integrations/opencv"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
)

// Service lernt neue Identitäten aus Einzelbildern ein: Gesicht finden,
// ausrichten, Embedding berechnen und persistieren. Der Registrar nimmt
// die Identität zusätzlich in die laufende Erkennung auf.
type Service struct {
	detector  vision.Detector
	aligner   vision.Aligner
	embedder  vision.Embedder
	repo      repository.Repository
	registrar Registrar
}

// Registrar nimmt eine eingelernte Identität in die laufende Erkennung auf
type Registrar interface {
	AddIdentity(name string, embedding []float32) error
}

// NewService erstellt den Einlern-Service
func NewService(
	detector vision.Detector,
	aligner vision.Aligner,
	embedder vision.Embedder,
	repo repository.Repository,
	registrar Registrar,
) *Service {
	return &Service{
		detector:  detector,
		aligner:   aligner,
		embedder:  embedder,
		repo:      repo,
		registrar: registrar,
	}
}

// EnrollImageData lernt eine Identität aus rohen Bilddaten ein (z.B. Upload)
func (s *Service) EnrollImageData(name string, data []byte, source string) (*models.Identity, error) {
	frame, err := opencv.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return s.EnrollFrame(name, frame, source)
}

// EnrollImageFile lernt eine Identität aus einer Bilddatei ein
func (s *Service) EnrollImageFile(name, path string) (*models.Identity, error) {
	frame, err := opencv.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return s.EnrollFrame(name, frame, path)
}

// EnrollFrame lernt eine Identität aus einem bereits dekodierten Frame
// ein. Der Frame wird hier geschlossen, falls er io.Closer implementiert.
func (s *Service) EnrollFrame(name string, frame vision.Frame, source string) (*models.Identity, error) {
	if closer, ok := frame.(io.Closer); ok {
		defer closer.Close()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("identity name must not be empty")
	}

	existing, err := s.repo.FindIdentityByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing identity: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("identity %q already exists", name)
	}

	// Das größte Gesicht im Bild ist das Einlern-Gesicht
	candidates, err := s.detector.Detect(frame, 1)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no face found in enrollment image")
	}

	crop, err := s.aligner.Align(frame, candidates[0].Landmarks)
	if err != nil {
		return nil, fmt.Errorf("face alignment failed: %w", err)
	}
	if closer, ok := crop.(io.Closer); ok {
		defer closer.Close()
	}

	embedding, err := s.embedder.Embed(crop)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	encoded, err := models.EncodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	ident := &models.Identity{
		Name:         name,
		Embedding:    encoded,
		EnrolledFrom: source,
	}
	if err := s.repo.SaveIdentity(ident); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	if s.registrar != nil {
		if err := s.registrar.AddIdentity(name, embedding); err != nil {
			log.Warnf("Identity %q saved but not added to running recognition: %v", name, err)
		}
	}

	log.Infof("Identity %q enrolled (embedding dimension %d)", name, len(embedding))
	return ident, nil
}
