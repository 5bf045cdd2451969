package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/movement"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Client ist der MQTT-Client für die Kameranachführung. Er publiziert
// ausschließlich: Schwenk-Kommandos auf vision/<team_id>/movement und
// Lock-Statusmeldungen auf vision/<team_id>/status. Abonniert wird nichts.
type Client struct {
	config      config.MQTTConfig
	client      mqtt.Client
	isConnected bool
}

// MovementMessage ist die JSON-Payload auf dem Bewegungs-Topic. Der
// Servo-Controller parst sie als JSON und verwirft alles andere; Felder
// und Zeitstempelformat (Unix-Sekunden) sind Teil des Wire-Formats.
type MovementMessage struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// StatusMessage ist die JSON-Payload auf dem Status-Topic
type StatusMessage struct {
	Mode           string    `json:"mode"`
	TargetIdentity string    `json:"target_identity,omitempty"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{config: cfg}
}

// Start startet den MQTT-Client und verbindet ihn mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	// MQTT-Client-Optionen konfigurieren
	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	// Optionale Authentifizierung
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Connection-Callbacks konfigurieren
	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	// Automatische Wiederverbindung
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop beendet den MQTT-Client
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250) // 250ms Wartezeit
		c.isConnected = false
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// PublishMovement publiziert ein Schwenk-Kommando als JSON-Umschlag
// {status, confidence, timestamp}. QoS 1: der Servo-Controller soll das
// Kommando auch über eine kurze Funkstörung hinweg erhalten.
func (c *Client) PublishMovement(cmd movement.Command, confidence float64) {
	if !c.IsConnected() {
		return
	}
	payload, err := movementPayload(cmd, confidence, time.Now())
	if err != nil {
		log.Errorf("Failed to marshal movement message: %v", err)
		return
	}
	topic := c.config.MovementTopic()
	if token := c.client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to publish movement command to %s: %v", topic, token.Error())
	}
}

// movementPayload baut die Bewegungs-Payload. Die Konfidenz wird auf
// drei Nachkommastellen gerundet, der Zeitstempel auf ganze Sekunden.
func movementPayload(cmd movement.Command, confidence float64, now time.Time) ([]byte, error) {
	return json.Marshal(MovementMessage{
		Status:     string(cmd),
		Confidence: math.Round(confidence*1000) / 1000,
		Timestamp:  now.Unix(),
	})
}

// PublishStatus publiziert den aktuellen Lock-Status als JSON. Die
// Nachricht wird retained, damit spät verbindende Empfänger sofort den
// letzten Zustand sehen.
func (c *Client) PublishStatus(msg StatusMessage) {
	if !c.IsConnected() {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal status message: %v", err)
		return
	}
	topic := c.config.StatusTopic()
	if token := c.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to publish status to %s: %v", topic, token.Error())
	}
}

// onConnectHandler wird aufgerufen, wenn die Verbindung hergestellt wurde
func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	c.isConnected = true
}

// connectionLostHandler wird aufgerufen, wenn die Verbindung verloren geht
func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
	c.isConnected = false
}
