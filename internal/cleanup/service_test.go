package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"facegate/config"
	"facegate/internal/core/models"
)

type fakeLogStore struct {
	cutoffs []time.Time
	deleted int64
}

func (s *fakeLogStore) Append(*models.RecognitionLog) error { return nil }
func (s *fakeLogStore) ListLogsForUser(uint, int, int) ([]models.RecognitionLogView, int64, error) {
	return nil, 0, nil
}
func (s *fakeLogStore) ListLogs(int, int) ([]models.RecognitionLogView, int64, error) {
	return nil, 0, nil
}
func (s *fakeLogStore) DeleteLogsOlderThan(cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.deleted, nil
}

func TestRunCleanupDisabled(t *testing.T) {
	logs := &fakeLogStore{}
	svc := NewService(logs, config.CleanupConfig{LogRetentionDays: 0}, t.TempDir())

	if err := svc.RunCleanup(context.Background()); err != nil {
		t.Fatalf("RunCleanup error: %v", err)
	}
	if len(logs.cutoffs) != 0 {
		t.Errorf("disabled cleanup must not touch the log store, got %d calls", len(logs.cutoffs))
	}
}

func TestRunCleanupDeletesOldLogs(t *testing.T) {
	logs := &fakeLogStore{deleted: 3}
	svc := NewService(logs, config.CleanupConfig{LogRetentionDays: 30}, t.TempDir())

	if err := svc.RunCleanup(context.Background()); err != nil {
		t.Fatalf("RunCleanup error: %v", err)
	}
	if len(logs.cutoffs) != 1 {
		t.Fatalf("got %d cutoff calls, want 1", len(logs.cutoffs))
	}

	wantCutoff := time.Now().AddDate(0, 0, -30)
	if diff := logs.cutoffs[0].Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", logs.cutoffs[0], wantCutoff)
	}
}

func TestRemoveStaleUploads(t *testing.T) {
	uploadDir := t.TempDir()
	svc := NewService(&fakeLogStore{}, config.CleanupConfig{LogRetentionDays: 30}, uploadDir)

	stale := filepath.Join(uploadDir, "stale.jpg")
	if err := os.WriteFile(stale, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	old := time.Now().AddDate(0, 0, -60)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}

	fresh := filepath.Join(uploadDir, "fresh.jpg")
	if err := os.WriteFile(fresh, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	removed := svc.removeStaleUploads(time.Now().AddDate(0, 0, -30))
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale upload should be deleted")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh upload should survive")
	}
}
