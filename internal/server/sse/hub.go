package sse

import (
	"encoding/json"
	"sync"
	"time"

	"face-lock-go/internal/core/actions"
	"face-lock-go/internal/core/facelock"
	"face-lock-go/internal/movement"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan []byte

// Hub verwaltet die Menge der aktiven Clients und sendet Broadcasts an sie
type Hub struct {
	// Registrierte Clients
	clients map[Client]bool

	// Eingehende Nachrichten von der Anwendung
	broadcast chan []byte

	// Registrierungsanfragen von Clients
	register chan Client

	// Abmeldeanfragen von Clients
	unregister chan Client

	// Mutex zum Schutz des simultanen Zugriffs auf die Clients-Map
	mu sync.Mutex
}

// FrameData ist die SSE-Nachricht pro verarbeitetem Frame: Lock-Zustand,
// Boxen und Aktionen für das Live-Dashboard.
type FrameData struct {
	Mode           string                 `json:"mode"`
	TargetIdentity string                 `json:"target_identity,omitempty"`
	Box            *vision.Box            `json:"box,omitempty"`
	Confidence     float64                `json:"confidence"`
	LockedSeconds  float64                `json:"locked_seconds,omitempty"`
	Movement       movement.Command       `json:"movement"`
	Actions        []actions.Action       `json:"actions,omitempty"`
	Faces          []facelock.Observation `json:"faces,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100), // Puffer für 100 Nachrichten
		register:   make(chan Client),
		unregister: make(chan Client),
		clients:    make(map[Client]bool),
	}
}

// Run startet die Verarbeitungsschleife des Hubs
// Dies sollte in einer separaten Goroutine ausgeführt werden
func (h *Hub) Run() {
	log.Info("SSE Hub started and running")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Infof("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				clientCount := len(h.clients)
				log.Infof("SSE client unregistered. Total clients: %d", clientCount)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- message:
					// Nachricht erfolgreich gesendet
				default:
					// Client-Kanal ist voll oder geschlossen
					log.Warn("SSE client channel full or closed, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register registriert einen neuen Client am Hub
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast sendet eine Nachricht an alle registrierten Clients
func (h *Hub) Broadcast(message []byte) {
	// Blockieren vermeiden, wenn der Broadcast-Kanal voll ist
	select {
	case h.broadcast <- message:
		// Nachricht erfolgreich zum Senden in die Queue gestellt
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// BroadcastFrame sendet den Zustand eines verarbeiteten Frames an alle Clients
func (h *Hub) BroadcastFrame(result facelock.Result, cmd movement.Command) {
	data := FrameData{
		Mode:           string(result.Mode),
		TargetIdentity: result.TargetIdentity,
		Box:            result.Box,
		Confidence:     result.LockConfidence,
		Movement:       cmd,
		Actions:        result.Actions,
		Faces:          result.AllFaces,
		Timestamp:      time.Now(),
	}
	if result.LockedFor != nil {
		data.LockedSeconds = result.LockedFor.Seconds()
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Errorf("Failed to marshal frame data for SSE: %v", err)
		return
	}
	h.Broadcast(jsonData)
}
