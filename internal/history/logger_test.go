package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"face-lock-go/internal/core/actions"
)

func TestSessionFileLifecycle(t *testing.T) {
	dir := t.TempDir()

	l, err := NewSessionLogger(dir, "Alice")
	if err != nil {
		t.Fatalf("NewSessionLogger: %v", err)
	}

	base := l.start
	current := base.Add(2*time.Minute + 3*time.Second + 450*time.Millisecond)
	l.now = func() time.Time { return current }

	l.LogStatus("Lock ACQUIRED for Alice (confidence=0.912)")
	l.LogActions([]actions.Action{
		{
			Kind:        actions.KindBlink,
			Confidence:  0.85,
			Value:       0.45,
			Description: "Eye blink detected (open -> closed -> open)",
		},
		{
			Kind:        actions.KindMoveRight,
			Confidence:  0.92,
			Value:       12.5,
			Description: "Head movement right (12.5px)",
		},
	})

	if got := l.ActionCount(); got != 2 {
		t.Errorf("action count = %d, want 2", got)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read history file: %v", err)
	}
	content := string(data)

	// Dateiname: kleingeschriebener Name plus Sitzungs-Zeitstempel
	if base := filepath.Base(l.Path()); !strings.HasPrefix(base, "alice_history_") || !strings.HasSuffix(base, ".txt") {
		t.Errorf("unexpected filename %q", base)
	}

	for _, want := range []string{
		"Face Locking Session History",
		"Face Name: ALICE",
		// Status-Zeilen polstern den Typ auf 22 Spalten, Aktions-Zeilen auf 15
		"[00:02:03.450] STATUS                | Lock ACQUIRED for Alice (confidence=0.912)",
		"[00:02:03.450] BLINK           |",
		"[00:02:03.450] BLINK",
		"| conf=0.85 | val=0.4500",
		"[00:02:03.450] MOVE_RIGHT",
		"| conf=0.92 | val=12.5000",
		"Total actions recorded: 2",
		"Session ended at",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("history file missing %q\n---\n%s", want, content)
		}
	}
}

func TestLoggingAfterFinalizeIsNoOp(t *testing.T) {
	l, err := NewSessionLogger(t.TempDir(), "Bob")
	if err != nil {
		t.Fatalf("NewSessionLogger: %v", err)
	}
	if err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Darf weder schreiben noch auf der geschlossenen Datei scheitern
	l.LogStatus("after close")
	l.LogActions([]actions.Action{{Kind: actions.KindSmile}})
	if err := l.Finalize(); err != nil {
		t.Errorf("second Finalize: %v", err)
	}
	if got := l.ActionCount(); got != 0 {
		t.Errorf("action count after finalize = %d, want 0", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{123 * time.Millisecond, "00:00:00.123"},
		{90 * time.Second, "00:01:30.000"},
		{2*time.Hour + 5*time.Minute + 7*time.Second, "02:05:07.000"},
		{-time.Second, "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
