package auth

import (
	"errors"
	"fmt"
	"time"

	"facegate/internal/db/repository"
)

var (
	// ErrNoCredential is returned when neither credential scheme is present.
	ErrNoCredential = errors.New("no credential presented")
	// ErrInvalidCredential is returned for unknown keys and bad session tokens.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrCredentialInactive is returned for revoked API keys.
	ErrCredentialInactive = errors.New("credential inactive")
	// ErrCredentialExpired is returned for API keys past their expiry.
	ErrCredentialExpired = errors.New("credential expired")
)

// Identity is the resolved authorization of a request: the owning tenant,
// the tenant's role when session-authenticated, and the consuming API key
// when key-authenticated.
type Identity struct {
	UserID   uint
	Role     string
	ApiKeyID *uint
}

// Gate resolves request credentials against the credential store and
// enforces the key lifecycle rules (activation, expiry, usage accounting).
type Gate struct {
	store  repository.CredentialStore
	tokens *TokenService
	now    func() time.Time
}

// NewGate creates an access gate over the given credential store.
func NewGate(store repository.CredentialStore, tokens *TokenService) *Gate {
	return &Gate{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// ResolveAPIKey validates raw API key material and records the use.
// The usage counter update is a single atomic UPDATE; see
// repository.TouchKeyUsage.
func (g *Gate) ResolveAPIKey(raw string) (*Identity, error) {
	key, err := g.store.GetKeyByToken(raw)
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}
	if key == nil {
		return nil, ErrInvalidCredential
	}

	if !key.IsActive {
		return nil, ErrCredentialInactive
	}

	now := g.now()
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return nil, ErrCredentialExpired
	}

	if err := g.store.TouchKeyUsage(key.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record key usage: %w", err)
	}

	keyID := key.ID
	return &Identity{UserID: key.UserID, ApiKeyID: &keyID}, nil
}

// ResolveSession verifies a bearer session token.
func (g *Gate) ResolveSession(token string) (*Identity, error) {
	userID, role, err := g.tokens.VerifyToken(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	return &Identity{UserID: userID, Role: role}, nil
}

// Resolve accepts either credential scheme. When both are present the API
// key takes precedence over the session token.
func (g *Gate) Resolve(apiKey, sessionToken string) (*Identity, error) {
	if apiKey != "" {
		return g.ResolveAPIKey(apiKey)
	}
	if sessionToken != "" {
		return g.ResolveSession(sessionToken)
	}
	return nil, ErrNoCredential
}
