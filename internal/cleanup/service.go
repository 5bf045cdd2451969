package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// CleanupService ist verantwortlich für die automatische Bereinigung alter
// Daten: Sitzungsereignisse in der Datenbank und abgelaufene
// Historien-Dateien auf der Festplatte.
type CleanupService struct {
	repo          repository.Repository
	config        config.CleanupConfig
	historyDir    string
	checkInterval time.Duration
}

// NewCleanupService erstellt einen neuen Cleanup-Service
func NewCleanupService(repo repository.Repository, cfg config.CleanupConfig, historyDir string) *CleanupService {
	return &CleanupService{
		repo:          repo,
		config:        cfg,
		historyDir:    historyDir,
		checkInterval: 24 * time.Hour, // Standardmäßig einmal täglich prüfen
	}
}

// Start startet den Bereinigungsdienst im Hintergrund
func (s *CleanupService) Start(ctx context.Context) {
	log.Info("Cleanup service started")

	// Sofort eine erste Bereinigung durchführen
	if err := s.RunCleanup(); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	// Ticker für regelmäßige Bereinigung einrichten
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if err := s.RunCleanup(); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup führt die eigentliche Bereinigung durch
func (s *CleanupService) RunCleanup() error {
	if s.config.RetentionDays <= 0 {
		log.Info("Cleanup disabled (retention days <= 0)")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	log.Infof("Cleaning up data older than %s", cutoff.Format("2006-01-02"))

	// 1. Alte Sitzungsereignisse aus der Datenbank löschen
	deleted, err := s.repo.DeleteEventsBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old session events: %w", err)
	}
	if deleted > 0 {
		log.Infof("Deleted %d old session events", deleted)
	}

	// 2. Abgelaufene Historien-Dateien löschen
	removed, err := s.cleanupHistoryFiles(cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Infof("Deleted %d old history files", removed)
	}

	return nil
}

// cleanupHistoryFiles löscht Historien-Dateien, die vor dem Stichtag
// zuletzt geschrieben wurden
func (s *CleanupService) cleanupHistoryFiles(cutoff time.Time) (int, error) {
	if s.historyDir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.historyDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to delete history file %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
