package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"face-lock-go/internal/movement"
)

// Der Servo-Controller parst die Bewegungs-Payload als JSON mit den
// Schlüsseln status, confidence und timestamp und verwirft alles andere.
func TestMovementPayloadWireFormat(t *testing.T) {
	now := time.Unix(1730000000, 500_000_000)

	payload, err := movementPayload(movement.CommandMoveLeft, 0.8765, now)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	if got := decoded["status"]; got != "MOVE_LEFT" {
		t.Errorf("status = %v, want MOVE_LEFT", got)
	}
	if got := decoded["confidence"]; got != 0.877 {
		t.Errorf("confidence = %v, want 0.877 (rounded to 3 decimals)", got)
	}
	if got := decoded["timestamp"]; got != float64(1730000000) {
		t.Errorf("timestamp = %v, want 1730000000 (whole unix seconds)", got)
	}
}

func TestMovementPayloadConfidenceRounding(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1, 1},
		{0.6543219, 0.654},
		{0.99999, 1},
	}
	for _, c := range cases {
		payload, err := movementPayload(movement.CommandCentered, c.in, time.Unix(0, 0))
		if err != nil {
			t.Fatalf("build payload: %v", err)
		}
		var msg MovementMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if msg.Confidence != c.want {
			t.Errorf("confidence %v rounded to %v, want %v", c.in, msg.Confidence, c.want)
		}
	}
}
