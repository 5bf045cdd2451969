package repository

import (
	"testing"
	"time"

	"face-lock-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Identity{}, &models.SessionEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteRepository(db)
}

func mustIdentity(t *testing.T, repo *SQLiteRepository, name string, vec []float32) {
	t.Helper()
	emb, err := models.EncodeEmbedding(vec)
	if err != nil {
		t.Fatalf("encode embedding: %v", err)
	}
	if err := repo.SaveIdentity(&models.Identity{Name: name, Embedding: emb}); err != nil {
		t.Fatalf("save identity %s: %v", name, err)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	mustIdentity(t, repo, "Alice", []float32{1, 0, 0})

	ident, err := repo.FindIdentityByName("Alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ident == nil {
		t.Fatal("identity not found after save")
	}
	vec, err := ident.EmbeddingVector()
	if err != nil {
		t.Fatalf("decode embedding: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("embedding = %v, want [1 0 0]", vec)
	}

	missing, err := repo.FindIdentityByName("Nobody")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Errorf("unexpected identity for unknown name: %+v", missing)
	}
}

func TestLoadIdentityDatabasePreservesEnrollmentOrder(t *testing.T) {
	repo := newTestRepo(t)
	mustIdentity(t, repo, "Bob", []float32{0, 1, 0})
	mustIdentity(t, repo, "Alice", []float32{1, 0, 0})

	db, err := repo.LoadIdentityDatabase()
	if err != nil {
		t.Fatalf("load identity database: %v", err)
	}

	names := db.Names()
	if len(names) != 2 || names[0] != "Bob" || names[1] != "Alice" {
		t.Errorf("names = %v, want enrollment order [Bob Alice]", names)
	}
}

func TestEventRetention(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	old := &models.SessionEvent{Identity: "Alice", Kind: "blink", OccurredAt: now.Add(-48 * time.Hour)}
	recent := &models.SessionEvent{Identity: "Alice", Kind: "status", Message: "Lock ACQUIRED", OccurredAt: now}
	if err := repo.SaveEvent(old); err != nil {
		t.Fatalf("save old event: %v", err)
	}
	if err := repo.SaveEvent(recent); err != nil {
		t.Fatalf("save recent event: %v", err)
	}

	deleted, err := repo.DeleteEventsBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("delete events: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	events, total, err := repo.GetEvents(10, 0)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if total != 1 || len(events) != 1 || events[0].Kind != "status" {
		t.Errorf("remaining events = %v (total %d), want only the recent one", events, total)
	}
}

func TestStatistics(t *testing.T) {
	repo := newTestRepo(t)
	mustIdentity(t, repo, "Alice", []float32{1, 0, 0})

	now := time.Now()
	for _, e := range []*models.SessionEvent{
		{Identity: "Alice", Kind: "status", Message: "Lock ACQUIRED", OccurredAt: now.Add(-time.Minute)},
		{Identity: "Alice", Kind: "blink", OccurredAt: now},
	} {
		if err := repo.SaveEvent(e); err != nil {
			t.Fatalf("save event: %v", err)
		}
	}

	stats, err := repo.GetStatistics()
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.IdentityCount != 1 {
		t.Errorf("identity count = %d, want 1", stats.IdentityCount)
	}
	if stats.EventCount != 2 {
		t.Errorf("event count = %d, want 2", stats.EventCount)
	}
	if stats.ActionCount != 1 {
		t.Errorf("action count = %d, want 1", stats.ActionCount)
	}
	if stats.LatestEvent.IsZero() {
		t.Error("latest event timestamp missing")
	}
}
