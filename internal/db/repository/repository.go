package repository

import (
	"errors"
	"fmt"
	"time"

	"face-lock-go/internal/core/identity"
	"face-lock-go/internal/core/models"

	"gorm.io/gorm"
)

// Repository definiert die Schnittstelle für die Datenbank-Operationen
type Repository interface {
	// Identity-Methoden
	GetIdentityByID(id uint) (*models.Identity, error)
	GetIdentities() ([]models.Identity, error)
	FindIdentityByName(name string) (*models.Identity, error)
	SaveIdentity(ident *models.Identity) error
	DeleteIdentity(id uint) error

	// Aufbau der In-Memory-Datenbank für die Engine
	LoadIdentityDatabase() (*identity.Database, error)

	// SessionEvent-Methoden
	SaveEvent(event *models.SessionEvent) error
	GetEvents(limit, offset int) ([]models.SessionEvent, int64, error)
	GetEventsByIdentity(name string, limit int) ([]models.SessionEvent, error)
	DeleteEventsBefore(cutoff time.Time) (int64, error)

	// Statistik-Methoden
	GetStatistics() (models.Statistics, error)
}

// SQLiteRepository implementiert die Repository-Schnittstelle für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Identity-Methoden

// GetIdentityByID holt eine Identität anhand ihrer ID
func (r *SQLiteRepository) GetIdentityByID(id uint) (*models.Identity, error) {
	var ident models.Identity
	result := r.db.First(&ident, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ident, nil
}

// GetIdentities holt alle Identitäten in Einlern-Reihenfolge
func (r *SQLiteRepository) GetIdentities() ([]models.Identity, error) {
	var identities []models.Identity
	result := r.db.Order("id ASC").Find(&identities)
	if result.Error != nil {
		return nil, result.Error
	}
	return identities, nil
}

// FindIdentityByName holt eine Identität anhand ihres Namens (exakt)
func (r *SQLiteRepository) FindIdentityByName(name string) (*models.Identity, error) {
	var ident models.Identity
	result := r.db.Where("name = ?", name).First(&ident)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ident, nil
}

// SaveIdentity speichert eine Identität (erstellen oder aktualisieren)
func (r *SQLiteRepository) SaveIdentity(ident *models.Identity) error {
	return r.db.Save(ident).Error
}

// DeleteIdentity löscht eine Identität anhand ihrer ID
func (r *SQLiteRepository) DeleteIdentity(id uint) error {
	return r.db.Delete(&models.Identity{}, id).Error
}

// LoadIdentityDatabase baut die In-Memory-Datenbank der Engine aus den
// gespeicherten Identitäten auf. Die Reihenfolge folgt der Einlern-Reihenfolge
// (ID aufsteigend); damit bleibt der Gleichstand-Entscheid des Abgleichs
// über Neustarts hinweg stabil.
func (r *SQLiteRepository) LoadIdentityDatabase() (*identity.Database, error) {
	identities, err := r.GetIdentities()
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}

	db := identity.NewDatabase()
	for i := range identities {
		vec, err := identities[i].EmbeddingVector()
		if err != nil {
			return nil, err
		}
		if err := db.Add(identities[i].Name, vec); err != nil {
			return nil, fmt.Errorf("failed to add identity %q: %w", identities[i].Name, err)
		}
	}
	return db, nil
}

// SessionEvent-Methoden

// SaveEvent speichert ein Sitzungsereignis
func (r *SQLiteRepository) SaveEvent(event *models.SessionEvent) error {
	return r.db.Save(event).Error
}

// GetEvents holt Sitzungsereignisse mit Pagination, neueste zuerst
func (r *SQLiteRepository) GetEvents(limit, offset int) ([]models.SessionEvent, int64, error) {
	var events []models.SessionEvent
	var total int64

	r.db.Model(&models.SessionEvent{}).Count(&total)
	result := r.db.Order("occurred_at DESC").Limit(limit).Offset(offset).Find(&events)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return events, total, nil
}

// GetEventsByIdentity holt die neuesten Ereignisse einer Identität
func (r *SQLiteRepository) GetEventsByIdentity(name string, limit int) ([]models.SessionEvent, error) {
	var events []models.SessionEvent
	result := r.db.Where("identity = ?", name).
		Order("occurred_at DESC").Limit(limit).Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}
	return events, nil
}

// DeleteEventsBefore löscht Ereignisse, die älter als der Stichtag sind,
// und gibt die Anzahl der gelöschten Zeilen zurück
func (r *SQLiteRepository) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().Where("occurred_at < ?", cutoff).Delete(&models.SessionEvent{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Statistik-Methoden

// GetStatistics ermittelt Kennzahlen über Identitäten und Ereignisse
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.Model(&models.Identity{}).Count(&stats.IdentityCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.SessionEvent{}).Count(&stats.EventCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.SessionEvent{}).
		Where("kind <> ?", "status").Count(&stats.ActionCount).Error; err != nil {
		return stats, err
	}

	var latest models.SessionEvent
	result := r.db.Order("occurred_at DESC").First(&latest)
	if result.Error == nil {
		stats.LatestEvent = latest.OccurredAt
	} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return stats, result.Error
	}

	return stats, nil
}
