package enrollment

import (
	"fmt"
	"strings"
	"testing"

	"face-lock-go/internal/core/models"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/vision"
)

type fakeFrame struct{ closed bool }

func (f *fakeFrame) Cols() int    { return 640 }
func (f *fakeFrame) Rows() int    { return 480 }
func (f *fakeFrame) Close() error { f.closed = true; return nil }

type fakeCrop struct{}

func (fakeCrop) Cols() int { return 112 }
func (fakeCrop) Rows() int { return 112 }

type oneFaceDetector struct{ faces int }

func (d oneFaceDetector) Detect(frame vision.Frame, maxFaces int) ([]vision.Candidate, error) {
	out := make([]vision.Candidate, 0, d.faces)
	for i := 0; i < d.faces; i++ {
		out = append(out, vision.Candidate{
			Box: vision.Box{X1: 100, Y1: 100, X2: 220, Y2: 240},
			Landmarks: vision.Landmarks{
				{X: 130, Y: 140}, {X: 190, Y: 140},
				{X: 160, Y: 170},
				{X: 140, Y: 200}, {X: 180, Y: 200},
			},
		})
	}
	return out, nil
}

type passAligner struct{}

func (passAligner) Align(frame vision.Frame, landmarks vision.Landmarks) (vision.Frame, error) {
	return fakeCrop{}, nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(crop vision.Frame) ([]float32, error) {
	return []float32{0, 1, 0}, nil
}

// fakeRepo implementiert nur die vom Einlernen benutzten Methoden;
// alles andere schlägt über das eingebettete nil-Interface fehl.
type fakeRepo struct {
	repository.Repository
	existing map[string]*models.Identity
	saved    []*models.Identity
}

func (r *fakeRepo) FindIdentityByName(name string) (*models.Identity, error) {
	return r.existing[name], nil
}

func (r *fakeRepo) SaveIdentity(ident *models.Identity) error {
	ident.ID = uint(len(r.saved) + 1)
	r.saved = append(r.saved, ident)
	return nil
}

type recordingRegistrar struct {
	names []string
	fail  bool
}

func (r *recordingRegistrar) AddIdentity(name string, embedding []float32) error {
	if r.fail {
		return fmt.Errorf("registrar unavailable")
	}
	r.names = append(r.names, name)
	return nil
}

func newTestService(repo *fakeRepo, registrar Registrar) *Service {
	return NewService(oneFaceDetector{faces: 1}, passAligner{}, unitEmbedder{}, repo, registrar)
}

func TestEnrollFramePersistsAndRegisters(t *testing.T) {
	repo := &fakeRepo{existing: map[string]*models.Identity{}}
	registrar := &recordingRegistrar{}
	svc := newTestService(repo, registrar)

	frame := &fakeFrame{}
	ident, err := svc.EnrollFrame("Bob", frame, "bob.jpg")
	if err != nil {
		t.Fatalf("EnrollFrame: %v", err)
	}

	if ident.Name != "Bob" || ident.EnrolledFrom != "bob.jpg" {
		t.Errorf("identity = %+v, want Bob from bob.jpg", ident)
	}
	vec, err := ident.EmbeddingVector()
	if err != nil {
		t.Fatalf("decode embedding: %v", err)
	}
	if len(vec) != 3 || vec[1] != 1 {
		t.Errorf("embedding = %v, want [0 1 0]", vec)
	}
	if len(repo.saved) != 1 {
		t.Errorf("saved %d identities, want 1", len(repo.saved))
	}
	if len(registrar.names) != 1 || registrar.names[0] != "Bob" {
		t.Errorf("registrar got %v, want [Bob]", registrar.names)
	}
	if !frame.closed {
		t.Error("enrollment frame was not closed")
	}
}

func TestEnrollFrameRejectsDuplicate(t *testing.T) {
	repo := &fakeRepo{existing: map[string]*models.Identity{
		"Bob": {Name: "Bob"},
	}}
	svc := newTestService(repo, &recordingRegistrar{})

	if _, err := svc.EnrollFrame("Bob", &fakeFrame{}, "bob.jpg"); err == nil {
		t.Fatal("duplicate enrollment accepted")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(repo.saved) != 0 {
		t.Errorf("duplicate was persisted: %v", repo.saved)
	}
}

func TestEnrollFrameRejectsEmptyName(t *testing.T) {
	repo := &fakeRepo{existing: map[string]*models.Identity{}}
	svc := newTestService(repo, &recordingRegistrar{})

	if _, err := svc.EnrollFrame("   ", &fakeFrame{}, "x.jpg"); err == nil {
		t.Fatal("blank name accepted")
	}
}

func TestEnrollFrameNoFaceFound(t *testing.T) {
	repo := &fakeRepo{existing: map[string]*models.Identity{}}
	svc := NewService(oneFaceDetector{faces: 0}, passAligner{}, unitEmbedder{}, repo, nil)

	frame := &fakeFrame{}
	if _, err := svc.EnrollFrame("Bob", frame, "bob.jpg"); err == nil {
		t.Fatal("enrollment without a face accepted")
	}
	if !frame.closed {
		t.Error("frame leaked on the error path")
	}
}

// Ein Registrar-Fehler darf das Einlernen nicht rückgängig machen: die
// Identität ist persistiert und steht nach einem Neustart zur Verfügung.
func TestEnrollFrameSurvivesRegistrarFailure(t *testing.T) {
	repo := &fakeRepo{existing: map[string]*models.Identity{}}
	svc := newTestService(repo, &recordingRegistrar{fail: true})

	ident, err := svc.EnrollFrame("Bob", &fakeFrame{}, "bob.jpg")
	if err != nil {
		t.Fatalf("EnrollFrame: %v", err)
	}
	if ident == nil || len(repo.saved) != 1 {
		t.Error("identity not persisted despite registrar failure")
	}
}
