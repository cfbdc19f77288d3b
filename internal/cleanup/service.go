package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"facegate/config"
	"facegate/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// Service ist verantwortlich für die automatische Bereinigung alter Daten:
// abgelaufene Audit-Einträge und verwaiste Dateien im Upload-Verzeichnis.
type Service struct {
	logs          repository.LogStore
	config        config.CleanupConfig
	uploadDir     string
	checkInterval time.Duration
}

// NewService erstellt einen neuen Bereinigungsdienst
func NewService(logs repository.LogStore, cfg config.CleanupConfig, uploadDir string) *Service {
	return &Service{
		logs:          logs,
		config:        cfg,
		uploadDir:     uploadDir,
		checkInterval: 24 * time.Hour, // Standardmäßig einmal täglich prüfen
	}
}

// Start startet den Bereinigungsdienst im Hintergrund
func (s *Service) Start(ctx context.Context) {
	log.Info("Cleanup service started")

	// Sofort eine erste Bereinigung durchführen
	if err := s.RunCleanup(ctx); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if err := s.RunCleanup(ctx); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup führt die eigentliche Bereinigung durch
func (s *Service) RunCleanup(ctx context.Context) error {
	if s.config.LogRetentionDays <= 0 {
		log.Info("Cleanup disabled (retention days <= 0)")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.LogRetentionDays)
	log.Infof("Cleaning up data older than %s", cutoff.Format("2006-01-02"))

	// 1. Abgelaufene Audit-Einträge löschen
	deleted, err := s.logs.DeleteLogsOlderThan(cutoff)
	if err != nil {
		log.Errorf("Failed to delete old recognition logs: %v", err)
	} else {
		log.Infof("Removed %d recognition log entries", deleted)
	}

	// 2. Verwaiste Probenbilder entfernen. Der Erkennungsablauf löscht
	// Uploads selbst; hier landen nur Reste abgebrochener Anfragen.
	removed := s.removeStaleUploads(cutoff)
	log.Infof("Cleanup completed: removed %d stale upload files", removed)

	return err
}

// removeStaleUploads löscht Dateien im Upload-Verzeichnis, die älter als der
// Stichtag sind
func (s *Service) removeStaleUploads(cutoff time.Time) int {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		log.Warnf("Failed to read upload directory %s: %v", s.uploadDir, err)
		return 0
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to delete stale upload %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
