package session

import (
	"os"
	"strings"
	"testing"

	"face-lock-go/config"
	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/core/facelock"
	"face-lock-go/internal/core/identity"
	"face-lock-go/internal/core/models"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/vision"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeFrame struct{ cols, rows int }

func (f fakeFrame) Cols() int { return f.cols }
func (f fakeFrame) Rows() int { return f.rows }

type fakeCrop struct{}

func (fakeCrop) Cols() int { return 112 }
func (fakeCrop) Rows() int { return 112 }

// scriptDetector liefert pro Frame die hinterlegten Kandidaten
type scriptDetector struct {
	out []vision.Candidate
}

func (d *scriptDetector) Detect(frame vision.Frame, maxFaces int) ([]vision.Candidate, error) {
	return d.out, nil
}

type passAligner struct{}

func (passAligner) Align(frame vision.Frame, landmarks vision.Landmarks) (vision.Frame, error) {
	return fakeCrop{}, nil
}

// aliceEmbedder liefert für jeden Ausschnitt das Alice-Embedding
type aliceEmbedder struct{}

func (aliceEmbedder) Embed(crop vision.Frame) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type noTracker struct{}

func (noTracker) Init(frame vision.Frame, box vision.Box) error { return nil }
func (noTracker) Update(frame vision.Frame) (vision.Box, bool)  { return vision.Box{}, false }

func aliceCandidate() []vision.Candidate {
	return []vision.Candidate{{
		Box: vision.Box{X1: 100, Y1: 100, X2: 220, Y2: 240},
		Landmarks: vision.Landmarks{
			{X: 130, Y: 140}, {X: 190, Y: 140},
			{X: 160, Y: 170},
			{X: 140, Y: 200}, {X: 180, Y: 200},
		},
	}}
}

func newTestService(t *testing.T) (*Service, *scriptDetector) {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.Identity{}, &models.SessionEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewSQLiteRepository(gormDB)

	identities := identity.NewDatabase()
	if err := identities.Add("Alice", []float32{1, 0, 0}); err != nil {
		t.Fatalf("add Alice: %v", err)
	}

	detector := &scriptDetector{}
	params := facelock.DefaultParams()
	params.LockTimeoutFrames = 2
	params.RecognitionInterval = 1
	params.MinFaceSize = 20

	engine := facelock.NewEngine(params, detector, passAligner{}, aliceEmbedder{},
		func() vision.Tracker { return noTracker{} },
		identities, actions.NewDetector(actions.DefaultConfig()))

	cfg := &config.Config{}
	cfg.History.Dir = t.TempDir()
	cfg.Movement.DeadZoneRatio = 0.12
	cfg.Movement.MinPublishInterval = 0.5

	return NewService(cfg, nil, engine, identities, repo, nil, nil), detector
}

func TestSessionHistoryLifecycle(t *testing.T) {
	svc, detector := newTestService(t)
	frame := fakeFrame{cols: 640, rows: 480}

	if !svc.SelectTarget("Alice") {
		t.Fatal("SelectTarget rejected")
	}

	// Einrasten eröffnet die Sitzungs-Historie
	detector.out = aliceCandidate()
	svc.processFrame(frame)
	if svc.sessionLog == nil {
		t.Fatal("no session history after lock")
	}
	path := svc.sessionLog.Path()

	// Verlust bis zum Timeout schließt sie wieder
	detector.out = nil
	svc.processFrame(frame) // lost, Zähler 1
	svc.processFrame(frame) // lost, Zähler 2
	svc.processFrame(frame) // Zähler 3 > 2: searching
	if svc.sessionLog != nil {
		t.Error("session history still open after timeout")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Lock ACQUIRED for Alice") {
		t.Errorf("history missing acquire status:\n%s", content)
	}
	if !strings.Contains(content, "Lock LOST") {
		t.Errorf("history missing lost status:\n%s", content)
	}
	if !strings.Contains(content, "Session ended at") {
		t.Errorf("history not finalized:\n%s", content)
	}
}

func TestEventsPersisted(t *testing.T) {
	svc, detector := newTestService(t)
	frame := fakeFrame{cols: 640, rows: 480}

	svc.SelectTarget("Alice")
	detector.out = aliceCandidate()
	svc.processFrame(frame)

	events, total, err := svc.repo.GetEvents(10, 0)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if total == 0 {
		t.Fatal("no events persisted after lock")
	}

	foundAcquire := false
	for _, e := range events {
		if e.Kind == "status" && strings.Contains(e.Message, "Lock ACQUIRED") {
			foundAcquire = true
			if e.Identity != "Alice" {
				t.Errorf("event identity = %q, want Alice", e.Identity)
			}
		}
	}
	if !foundAcquire {
		t.Errorf("acquire status not persisted, got %+v", events)
	}
}

func TestStatusSnapshot(t *testing.T) {
	svc, detector := newTestService(t)
	frame := fakeFrame{cols: 640, rows: 480}

	// Vor dem ersten Frame: searching ohne Ziel
	status := svc.Status()
	if status.Mode != "searching" {
		t.Errorf("initial mode = %q, want searching", status.Mode)
	}

	svc.SelectTarget("Alice")
	detector.out = aliceCandidate()
	svc.processFrame(frame)

	status = svc.Status()
	if status.Mode != "locked" || status.TargetIdentity != "Alice" {
		t.Errorf("status = %+v, want locked on Alice", status)
	}
	if status.Confidence < 0.99 {
		t.Errorf("confidence = %v, want ~1.0 for exact embedding", status.Confidence)
	}
}

func TestReleaseClosesSession(t *testing.T) {
	svc, detector := newTestService(t)
	frame := fakeFrame{cols: 640, rows: 480}

	svc.SelectTarget("Alice")
	detector.out = aliceCandidate()
	svc.processFrame(frame)

	svc.Release()
	if svc.sessionLog != nil {
		t.Error("session history still open after release")
	}
	if got := svc.Status().Mode; got != "searching" {
		t.Errorf("mode after release = %q, want searching", got)
	}
}

// Zielwahl und Freigabe kommen aus HTTP-Goroutinen und teilen sich
// Engine, Historie und Bewegungs-Entprellung mit der Frame-Schleife;
// alles davon muss unter dem Service-Mutex laufen.
func TestConcurrentReleaseDuringFrameLoop(t *testing.T) {
	svc, detector := newTestService(t)
	frame := fakeFrame{cols: 640, rows: 480}

	svc.SelectTarget("Alice")
	detector.out = aliceCandidate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			svc.Release()
			svc.SelectTarget("Alice")
		}
	}()
	for i := 0; i < 200; i++ {
		svc.processFrame(frame)
	}
	<-done

	if got := svc.Status().Mode; got != "locked" && got != "searching" {
		t.Errorf("mode after concurrent control calls = %q", got)
	}
}

func TestAddIdentityJoinsRecognition(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.AddIdentity("Bob", []float32{0, 1, 0}); err != nil {
		t.Fatalf("add identity: %v", err)
	}
	if !svc.SelectTarget("Bob") {
		t.Error("freshly added identity not selectable")
	}
}
