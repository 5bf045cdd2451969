package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"face-lock-go/internal/core/actions"
)

// SessionLogger schreibt die Aktions-Historie genau einer Lock-Sitzung in
// eine Textdatei. Pro Sitzung entsteht eine Datei
// <name>_history_<unix-ms>.txt; Zeitstempel in den Zeilen sind relativ
// zum Sitzungsbeginn.
//
// Zeilenformat:
//
//	[HH:MM:SS.mmm] ACTION_TYPE | description | conf=X.XX | val=Y.YYYY
//
// Das Format ist Teil des Vertrags nach außen: nachgelagerte Auswertungen
// parsen diese Dateien zeilenweise.
type SessionLogger struct {
	faceName string
	path     string
	start    time.Time

	mu          sync.Mutex
	file        *os.File
	actionCount int
	finalized   bool

	now func() time.Time
}

// NewSessionLogger beginnt eine neue Sitzungs-Historie für die gegebene
// Identität. Das Verzeichnis wird bei Bedarf angelegt.
func NewSessionLogger(dir, faceName string) (*SessionLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	start := time.Now()
	name := strings.ToLower(faceName)
	path := filepath.Join(dir, fmt.Sprintf("%s_history_%d.txt", name, start.UnixMilli()))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create history file: %w", err)
	}

	l := &SessionLogger{
		faceName: name,
		path:     path,
		start:    start,
		file:     file,
		now:      time.Now,
	}
	if err := l.writeHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

// Path gibt den Pfad der Historien-Datei zurück
func (l *SessionLogger) Path() string {
	return l.path
}

// ActionCount gibt die Anzahl der bisher protokollierten Aktionen zurück
func (l *SessionLogger) ActionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.actionCount
}

// LogActions protokolliert die Aktionen eines Frames
func (l *SessionLogger) LogActions(acts []actions.Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized {
		return
	}
	for _, a := range acts {
		l.actionCount++
		fmt.Fprintf(l.file, "[%s] %-15s | %-50s | conf=%.2f | val=%.4f\n",
			formatElapsed(l.now().Sub(l.start)),
			strings.ToUpper(string(a.Kind)),
			a.Description,
			a.Confidence,
			a.Value,
		)
	}
}

// LogStatus protokolliert eine Statusmeldung, etwa Einrasten oder Verlust des Locks
func (l *SessionLogger) LogStatus(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized {
		return
	}
	// Status-Zeilen sind breiter gepolstert als Aktions-Zeilen (22 statt
	// 15 Spalten); nachgelagerte Parser verlassen sich auf beide Breiten
	fmt.Fprintf(l.file, "[%s] %-22s | %s\n",
		formatElapsed(l.now().Sub(l.start)), "STATUS", message)
}

// Finalize schreibt den Sitzungs-Abschluss und schließt die Datei.
// Weitere Log-Aufrufe danach sind No-Ops.
func (l *SessionLogger) Finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized {
		return nil
	}
	l.finalized = true

	separator := strings.Repeat("=", 80)
	fmt.Fprintf(l.file, "\n%s\n", separator)
	fmt.Fprintf(l.file, "Session ended at %s\n", l.now().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(l.file, "Total actions recorded: %d\n", l.actionCount)
	fmt.Fprintf(l.file, "%s\n", separator)

	return l.file.Close()
}

func (l *SessionLogger) writeHeader() error {
	separator := strings.Repeat("=", 80)
	_, err := fmt.Fprintf(l.file,
		"%s\nFace Locking Session History\n%s\n"+
			"Face Name: %s\n"+
			"Session Start: %s\n"+
			"File: %s\n"+
			"%s\n"+
			"Format: [HH:MM:SS.mmm] ACTION_TYPE | description | confidence | value\n"+
			"%s\n\n",
		separator, separator,
		strings.ToUpper(l.faceName),
		l.start.Format("2006-01-02 15:04:05.000"),
		filepath.Base(l.path),
		separator, separator,
	)
	return err
}

// formatElapsed formatiert eine Dauer als HH:MM:SS.mmm
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := d % time.Minute
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, seconds.Seconds())
}
