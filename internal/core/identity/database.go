package identity

import (
	"fmt"
	"strings"
)

// Database ist die Menge der registrierten Identitäten: Name → ein
// L2-normalisierter Embedding-Vektor. Sie wird einmal beim Start geladen
// und ist danach unveränderlich; gleichzeitiges Lesen aus mehreren
// Goroutinen ist damit unbedenklich.
type Database struct {
	names []string             // kanonische Namen in Einfügereihenfolge
	vecs  map[string][]float32 // Schlüssel: strings.ToLower(Name)
}

// NewDatabase erstellt eine leere Identitätsdatenbank
func NewDatabase() *Database {
	return &Database{
		vecs: make(map[string][]float32),
	}
}

// Add fügt eine Identität hinzu. Namen sind case-insensitiv eindeutig.
func (d *Database) Add(name string, embedding []float32) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("identity name must not be empty")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("identity %q has an empty embedding", name)
	}
	key := strings.ToLower(name)
	if _, exists := d.vecs[key]; exists {
		return fmt.Errorf("identity %q already enrolled", name)
	}
	d.names = append(d.names, name)
	d.vecs[key] = embedding
	return nil
}

// Len gibt die Anzahl der registrierten Identitäten zurück
func (d *Database) Len() int {
	return len(d.names)
}

// Names gibt die kanonischen Namen in Einfügereihenfolge zurück
func (d *Database) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Resolve löst einen Namen case-insensitiv auf den kanonischen Namen auf
func (d *Database) Resolve(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := d.vecs[key]; !ok {
		return "", false
	}
	for _, n := range d.names {
		if strings.ToLower(n) == key {
			return n, true
		}
	}
	return "", false
}

// Match vergleicht ein Embedding gegen alle Einträge und gibt den Eintrag
// mit der kleinsten Kosinus-Distanz zurück. Der Name ist nur gesetzt, wenn
// die Distanz den Schwellenwert nicht überschreitet; Distanz und Konfidenz
// beziehen sich in jedem Fall auf den nächsten Eintrag.
//
// Bei exakt gleicher Minimaldistanz gewinnt der zuerst eingefügte Eintrag
// (strikter Kleiner-Vergleich in Einfügereihenfolge). Das ist absichtlich
// deterministisch, nicht zufällig.
//
// Eine leere Datenbank ist ein definierter Nicht-Treffer: ("", 1.0, 0.0).
func (d *Database) Match(embedding []float32, threshold float64) (name string, distance float64, confidence float64) {
	if len(d.names) == 0 {
		return "", 1.0, 0.0
	}

	bestName := ""
	bestDistance := 2.0
	for _, n := range d.names {
		vec := d.vecs[strings.ToLower(n)]
		if dist := CosineDistance(embedding, vec); dist < bestDistance {
			bestDistance = dist
			bestName = n
		}
	}

	confidence = 1.0 - bestDistance
	if confidence < 0 {
		confidence = 0
	}
	if bestDistance > threshold {
		return "", bestDistance, confidence
	}
	return bestName, bestDistance, confidence
}
