package auth

import (
	"errors"
	"testing"
	"time"

	"facegate/internal/core/models"
)

// fakeStore implements repository.CredentialStore over an in-memory key set.
type fakeStore struct {
	keys      map[string]*models.ApiKey
	touched   []uint
	lookupErr error
	touchErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]*models.ApiKey)}
}

func (f *fakeStore) CreateUser(*models.User) error                    { return nil }
func (f *fakeStore) GetUserByID(uint) (*models.User, error)           { return nil, nil }
func (f *fakeStore) GetUserByUsername(string) (*models.User, error)   { return nil, nil }
func (f *fakeStore) UserExists(string, string) (bool, error)          { return false, nil }
func (f *fakeStore) ListUsers() ([]models.User, error)                { return nil, nil }
func (f *fakeStore) CreateKey(*models.ApiKey) error                   { return nil }
func (f *fakeStore) GetKeyForUser(uint, uint) (*models.ApiKey, error) { return nil, nil }
func (f *fakeStore) ListKeysForUser(uint) ([]models.ApiKey, error)    { return nil, nil }
func (f *fakeStore) ListKeys() ([]models.ApiKey, error)               { return nil, nil }
func (f *fakeStore) SetKeyActive(uint, uint, bool) (bool, error)      { return false, nil }
func (f *fakeStore) DeleteKey(uint, uint) (bool, error)               { return false, nil }

func (f *fakeStore) GetKeyByToken(token string) (*models.ApiKey, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.keys[token], nil
}

func (f *fakeStore) TouchKeyUsage(id uint, now time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

func testGate(store *fakeStore) *Gate {
	return NewGate(store, NewTokenService("test-secret", time.Hour))
}

func activeKey(id, userID uint, token string) *models.ApiKey {
	expires := time.Now().Add(24 * time.Hour)
	key := &models.ApiKey{
		Key:       token,
		UserID:    userID,
		IsActive:  true,
		ExpiresAt: &expires,
	}
	key.ID = id
	return key
}

func TestResolveAPIKey(t *testing.T) {
	store := newFakeStore()
	store.keys["good-token"] = activeKey(7, 42, "good-token")
	gate := testGate(store)

	id, err := gate.ResolveAPIKey("good-token")
	if err != nil {
		t.Fatalf("ResolveAPIKey error: %v", err)
	}
	if id.UserID != 42 {
		t.Errorf("UserID = %d, want 42", id.UserID)
	}
	if id.ApiKeyID == nil || *id.ApiKeyID != 7 {
		t.Errorf("ApiKeyID = %v, want 7", id.ApiKeyID)
	}
	if len(store.touched) != 1 || store.touched[0] != 7 {
		t.Errorf("touched = %v, want one usage for key 7", store.touched)
	}
}

func TestResolveAPIKeyUnknown(t *testing.T) {
	gate := testGate(newFakeStore())

	_, err := gate.ResolveAPIKey("nope")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestResolveAPIKeyInactive(t *testing.T) {
	store := newFakeStore()
	key := activeKey(1, 1, "revoked")
	key.IsActive = false
	store.keys["revoked"] = key
	gate := testGate(store)

	_, err := gate.ResolveAPIKey("revoked")
	if !errors.Is(err, ErrCredentialInactive) {
		t.Errorf("err = %v, want ErrCredentialInactive", err)
	}
	if len(store.touched) != 0 {
		t.Errorf("rejected key must not record usage, touched = %v", store.touched)
	}
}

func TestResolveAPIKeyExpired(t *testing.T) {
	store := newFakeStore()
	key := activeKey(1, 1, "old")
	expired := time.Now().Add(-time.Hour)
	key.ExpiresAt = &expired
	store.keys["old"] = key
	gate := testGate(store)

	_, err := gate.ResolveAPIKey("old")
	if !errors.Is(err, ErrCredentialExpired) {
		t.Errorf("err = %v, want ErrCredentialExpired", err)
	}
}

func TestResolveAPIKeyWithoutExpiry(t *testing.T) {
	store := newFakeStore()
	key := activeKey(1, 1, "forever")
	key.ExpiresAt = nil
	store.keys["forever"] = key
	gate := testGate(store)

	if _, err := gate.ResolveAPIKey("forever"); err != nil {
		t.Errorf("key without expiry should resolve, got %v", err)
	}
}

func TestResolveAPIKeyLookupFailure(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = errors.New("db down")
	gate := testGate(store)

	_, err := gate.ResolveAPIKey("any")
	if err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
	// Ein Infrastrukturfehler ist keine Zugangsdaten-Ablehnung
	if errors.Is(err, ErrInvalidCredential) {
		t.Error("store failure must not masquerade as an invalid credential")
	}
}

func TestResolveAPIKeyTouchFailureRejects(t *testing.T) {
	store := newFakeStore()
	store.keys["good"] = activeKey(1, 1, "good")
	store.touchErr = errors.New("db down")
	gate := testGate(store)

	if _, err := gate.ResolveAPIKey("good"); err == nil {
		t.Error("expected error when usage accounting fails")
	}
}

func TestResolveSession(t *testing.T) {
	gate := testGate(newFakeStore())

	token, err := gate.tokens.IssueToken(9, models.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	id, err := gate.ResolveSession(token)
	if err != nil {
		t.Fatalf("ResolveSession error: %v", err)
	}
	if id.UserID != 9 || id.Role != models.RoleAdmin {
		t.Errorf("identity = %+v, want user 9 with admin role", id)
	}
	if id.ApiKeyID != nil {
		t.Errorf("session identity must not carry an API key ID, got %v", *id.ApiKeyID)
	}
}

func TestResolvePrecedence(t *testing.T) {
	store := newFakeStore()
	store.keys["key-token"] = activeKey(3, 11, "key-token")
	gate := testGate(store)

	session, err := gate.tokens.IssueToken(99, models.RoleUser)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	// API-Schlüssel hat Vorrang vor dem Sitzungs-Token
	id, err := gate.Resolve("key-token", session)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if id.UserID != 11 {
		t.Errorf("UserID = %d, want 11 (API key takes precedence)", id.UserID)
	}

	// Ein ungültiger Schlüssel fällt nicht auf die Sitzung zurück
	if _, err := gate.Resolve("bad-token", session); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential (no session fallback)", err)
	}
}

func TestResolveNoCredential(t *testing.T) {
	gate := testGate(newFakeStore())

	if _, err := gate.Resolve("", ""); !errors.Is(err, ErrNoCredential) {
		t.Errorf("err = %v, want ErrNoCredential", err)
	}
}
