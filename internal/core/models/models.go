package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Identity repräsentiert eine eingelernte Person. Das Embedding ist der
// L2-normalisierte ArcFace-Vektor des Einlern-Bildes, als JSON-Array
// abgelegt.
type Identity struct {
	gorm.Model
	Name         string         `gorm:"uniqueIndex;not null"` // Eindeutiger Name der Person
	Embedding    datatypes.JSON `gorm:"type:json;not null"`   // []float32 als JSON-Array
	EnrolledFrom string         // Pfad des Einlern-Bildes (informativ)
}

// EmbeddingVector dekodiert das gespeicherte Embedding
func (i *Identity) EmbeddingVector() ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(i.Embedding, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for identity %q: %w", i.Name, err)
	}
	return vec, nil
}

// EncodeEmbedding kodiert einen Embedding-Vektor für die Speicherung
func EncodeEmbedding(vec []float32) (datatypes.JSON, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return datatypes.JSON(data), nil
}

// SessionEvent repräsentiert ein protokolliertes Ereignis einer
// Lock-Sitzung: Statuswechsel (lock_acquired, lock_lost, ...) und
// erkannte Gesichtsaktionen.
type SessionEvent struct {
	gorm.Model
	Identity   string    `gorm:"index"`          // Zielidentität der Sitzung
	Kind       string    `gorm:"index;not null"` // z.B. 'status', 'blink', 'smile'
	Message    string    // Beschreibung bzw. Statusmeldung
	Confidence float64   // Konfidenz der Aktion (0 bei Statusmeldungen)
	Value      float64   // Messwert der Aktion (0 bei Statusmeldungen)
	OccurredAt time.Time `gorm:"index"` // Zeitpunkt des Ereignisses
}

// Statistics repräsentiert Kennzahlen über Identitäten und Sitzungsereignisse
type Statistics struct {
	IdentityCount int64     // Anzahl der eingelernten Identitäten
	EventCount    int64     // Gesamtzahl der Sitzungsereignisse
	ActionCount   int64     // Anzahl der Aktions-Ereignisse (ohne Status)
	LatestEvent   time.Time // Zeitstempel des neuesten Ereignisses
}
