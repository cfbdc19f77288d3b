package repository

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"facegate/internal/core/models"
	"facegate/internal/db"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Eine Verbindung serialisiert parallele Schreibzugriffe in SQLite
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return NewSQLiteRepository(gdb)
}

func seedUser(t *testing.T, repo *SQLiteRepository, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}
	if err := repo.CreateUser(user); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return user
}

func seedKey(t *testing.T, repo *SQLiteRepository, userID uint, token string) *models.ApiKey {
	t.Helper()
	expires := time.Now().Add(24 * time.Hour)
	key := &models.ApiKey{
		Key:       token,
		UserID:    userID,
		Name:      "test key",
		IsActive:  true,
		ExpiresAt: &expires,
	}
	if err := repo.CreateKey(key); err != nil {
		t.Fatalf("CreateKey error: %v", err)
	}
	return key
}

func seedFace(t *testing.T, repo *SQLiteRepository, userID uint, name string, active bool) *models.EnrolledFace {
	t.Helper()
	face := &models.EnrolledFace{
		UserID:   userID,
		Name:     name,
		IsActive: active,
	}
	if err := face.SetEmbedding([]float64{0.1, 0.2}); err != nil {
		t.Fatalf("SetEmbedding error: %v", err)
	}
	if err := repo.CreateFace(face); err != nil {
		t.Fatalf("CreateFace error: %v", err)
	}
	return face
}

func TestUserExists(t *testing.T) {
	repo := testRepo(t)
	seedUser(t, repo, "alice")

	exists, err := repo.UserExists("alice", "other@example.com")
	if err != nil {
		t.Fatalf("UserExists error: %v", err)
	}
	if !exists {
		t.Error("expected existing username to be reported")
	}

	exists, err = repo.UserExists("bob", "alice@example.com")
	if err != nil {
		t.Fatalf("UserExists error: %v", err)
	}
	if !exists {
		t.Error("expected existing email to be reported")
	}

	exists, err = repo.UserExists("bob", "bob@example.com")
	if err != nil {
		t.Fatalf("UserExists error: %v", err)
	}
	if exists {
		t.Error("expected unknown user to be absent")
	}
}

func TestGetKeyByToken(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")
	seedKey(t, repo, user.ID, "token-1")

	key, err := repo.GetKeyByToken("token-1")
	if err != nil {
		t.Fatalf("GetKeyByToken error: %v", err)
	}
	if key == nil || key.UserID != user.ID {
		t.Errorf("key = %+v, want key of user %d", key, user.ID)
	}

	missing, err := repo.GetKeyByToken("unknown")
	if err != nil {
		t.Fatalf("GetKeyByToken error: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown token should yield nil, got %+v", missing)
	}
}

func TestTouchKeyUsageConcurrent(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")
	key := seedKey(t, repo, user.ID, "token-1")

	const n = 20
	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.TouchKeyUsage(key.ID, now); err != nil {
				t.Errorf("TouchKeyUsage error: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := repo.GetKeyForUser(key.ID, user.ID)
	if err != nil {
		t.Fatalf("GetKeyForUser error: %v", err)
	}
	if stored.UsageCount != n {
		t.Errorf("UsageCount = %d, want %d (no lost updates)", stored.UsageCount, n)
	}
	if stored.LastUsedAt == nil {
		t.Error("LastUsedAt should be set after usage")
	}
}

func TestSetKeyActiveTenantScoping(t *testing.T) {
	repo := testRepo(t)
	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	key := seedKey(t, repo, alice.ID, "token-1")

	// Fremder Mandant darf den Schlüssel nicht erreichen
	found, err := repo.SetKeyActive(key.ID, bob.ID, false)
	if err != nil {
		t.Fatalf("SetKeyActive error: %v", err)
	}
	if found {
		t.Error("foreign tenant must not reach the key")
	}

	// Eigentümer darf deaktivieren
	found, err = repo.SetKeyActive(key.ID, alice.ID, false)
	if err != nil {
		t.Fatalf("SetKeyActive error: %v", err)
	}
	if !found {
		t.Error("owner should reach the key")
	}

	// Admin-Pfad (userID == 0) erreicht jeden Schlüssel
	found, err = repo.SetKeyActive(key.ID, 0, true)
	if err != nil {
		t.Fatalf("SetKeyActive error: %v", err)
	}
	if !found {
		t.Error("admin path should reach any key")
	}
}

func TestDeleteKeyCascadesLogs(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")
	key := seedKey(t, repo, user.ID, "token-1")

	keyID := key.ID
	if err := repo.Append(&models.RecognitionLog{
		ApiKeyID: &keyID,
		UserID:   user.ID,
		Status:   models.StatusSuccess,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	found, err := repo.DeleteKey(key.ID, user.ID)
	if err != nil {
		t.Fatalf("DeleteKey error: %v", err)
	}
	if !found {
		t.Fatal("expected key to be deleted")
	}

	logs, total, err := repo.ListLogsForUser(user.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListLogsForUser error: %v", err)
	}
	if total != 0 || len(logs) != 0 {
		t.Errorf("logs = %d entries (total %d), want cascade delete", len(logs), total)
	}
}

func TestDeleteKeyUnknown(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")

	found, err := repo.DeleteKey(999, user.ID)
	if err != nil {
		t.Fatalf("DeleteKey error: %v", err)
	}
	if found {
		t.Error("deleting an unknown key should report not found")
	}
}

func TestListActiveFaces(t *testing.T) {
	repo := testRepo(t)
	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")

	first := seedFace(t, repo, alice.ID, "first", true)
	seedFace(t, repo, alice.ID, "disabled", false)
	second := seedFace(t, repo, alice.ID, "second", true)
	seedFace(t, repo, bob.ID, "foreign", true)

	faces, err := repo.ListActiveFaces(alice.ID)
	if err != nil {
		t.Fatalf("ListActiveFaces error: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("len(faces) = %d, want 2 (active, own tenant only)", len(faces))
	}
	if faces[0].ID != first.ID || faces[1].ID != second.ID {
		t.Errorf("order = [%d, %d], want ascending IDs [%d, %d]",
			faces[0].ID, faces[1].ID, first.ID, second.ID)
	}
}

func TestSetFaceActiveRoundTrip(t *testing.T) {
	repo := testRepo(t)
	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	face := seedFace(t, repo, alice.ID, "alice-face", true)

	// Fremder Mandant erreicht das Gesicht nicht
	found, err := repo.SetFaceActive(face.ID, bob.ID, false)
	if err != nil {
		t.Fatalf("SetFaceActive error: %v", err)
	}
	if found {
		t.Error("foreign tenant must not reach the face")
	}

	// Deaktivieren nimmt das Gesicht aus der Abgleich-Galerie
	found, err = repo.SetFaceActive(face.ID, alice.ID, false)
	if err != nil {
		t.Fatalf("SetFaceActive error: %v", err)
	}
	if !found {
		t.Fatal("owner should reach the face")
	}

	active, err := repo.ListActiveFaces(alice.ID)
	if err != nil {
		t.Fatalf("ListActiveFaces error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active faces = %d, want 0 after deactivation", len(active))
	}

	// Die uneingeschränkte Liste enthält das Gesicht weiterhin
	all, err := repo.ListFacesForUser(alice.ID, false)
	if err != nil {
		t.Fatalf("ListFacesForUser error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all faces = %d, want 1 (deactivation is not deletion)", len(all))
	}

	// Reaktivieren stellt die Galerie-Mitgliedschaft wieder her
	if _, err := repo.SetFaceActive(face.ID, alice.ID, true); err != nil {
		t.Fatalf("SetFaceActive error: %v", err)
	}
	active, err = repo.ListActiveFaces(alice.ID)
	if err != nil {
		t.Fatalf("ListActiveFaces error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active faces = %d, want 1 after reactivation", len(active))
	}
}

func TestListLogsForUserJoinsKeyName(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")
	key := seedKey(t, repo, user.ID, "token-1")

	keyID := key.ID
	if err := repo.Append(&models.RecognitionLog{
		ApiKeyID: &keyID,
		UserID:   user.ID,
		Status:   models.StatusSuccess,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	// Sitzungs-authentifizierter Versuch ohne Schlüssel
	if err := repo.Append(&models.RecognitionLog{
		UserID: user.ID,
		Status: models.StatusFailed,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	logs, total, err := repo.ListLogsForUser(user.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListLogsForUser error: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Fatalf("got %d logs (total %d), want 2", len(logs), total)
	}

	var withKey, withoutKey int
	for _, entry := range logs {
		if entry.ApiKeyName != nil {
			if *entry.ApiKeyName != "test key" {
				t.Errorf("ApiKeyName = %q, want %q", *entry.ApiKeyName, "test key")
			}
			withKey++
		} else {
			withoutKey++
		}
	}
	if withKey != 1 || withoutKey != 1 {
		t.Errorf("withKey = %d, withoutKey = %d, want 1 and 1", withKey, withoutKey)
	}
}

func TestListLogsForUserPagination(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")

	for i := 0; i < 5; i++ {
		if err := repo.Append(&models.RecognitionLog{
			UserID: user.ID,
			Status: models.StatusSuccess,
		}); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	logs, total, err := repo.ListLogsForUser(user.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListLogsForUser error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(logs) != 2 {
		t.Errorf("len(logs) = %d, want 2", len(logs))
	}

	rest, _, err := repo.ListLogsForUser(user.ID, 10, 4)
	if err != nil {
		t.Fatalf("ListLogsForUser error: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("len(rest) = %d, want 1", len(rest))
	}
}

func TestDeleteLogsOlderThan(t *testing.T) {
	repo := testRepo(t)
	user := seedUser(t, repo, "alice")

	if err := repo.Append(&models.RecognitionLog{
		UserID: user.ID,
		Status: models.StatusSuccess,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	// Stichtag in der Zukunft erfasst den frischen Eintrag
	deleted, err := repo.DeleteLogsOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteLogsOlderThan error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	// Stichtag in der Vergangenheit löscht nichts
	deleted, err = repo.DeleteLogsOlderThan(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteLogsOlderThan error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}
