package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Rollen eines Benutzers
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Status eines Erkennungsversuchs
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// User repräsentiert einen Mandanten mit eigenen Schlüsseln und Gesichtern
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // bcrypt-Hash, niemals ausgeben
	FullName     string `json:"fullName"`
	Role         string `gorm:"default:user;index" json:"role"`

	ApiKeys       []ApiKey       `gorm:"foreignKey:UserID" json:"-"`
	EnrolledFaces []EnrolledFace `gorm:"foreignKey:UserID" json:"-"`
}

// ApiKey repräsentiert einen langlebigen Zugangsschlüssel eines Mandanten
type ApiKey struct {
	gorm.Model
	Key        string     `gorm:"uniqueIndex;size:64;not null" json:"key,omitempty"`
	UserID     uint       `gorm:"index;not null" json:"userId"`
	Name       string     `gorm:"not null;default:'Default Key'" json:"name"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	UsageCount uint64     `gorm:"default:0" json:"usageCount"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// GenerateKey erzeugt neues Schlüsselmaterial (32 Zufallsbytes, hex-kodiert)
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsUsable meldet, ob der Schlüssel aktuell verwendet werden darf.
// Ein Schlüssel ist verwendbar, wenn er aktiv ist und sein Ablaufdatum
// (falls gesetzt) noch nicht überschritten wurde.
func (k *ApiKey) IsUsable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// EnrolledFace repräsentiert ein registriertes Gesicht eines Mandanten
type EnrolledFace struct {
	gorm.Model
	UserID     uint           `gorm:"index;not null" json:"userId"`
	Name       string         `gorm:"not null" json:"name"`
	Embedding  datatypes.JSON `gorm:"type:json;not null" json:"-"` // Float-Vektor als JSON-Array
	Confidence float64        `json:"confidence"`
	IsActive   bool           `gorm:"default:true" json:"isActive"`
	ImagePath  string         `json:"-"` // Optional behaltenes Quellbild
}

// SetEmbedding serialisiert den Embedding-Vektor in die JSON-Spalte
func (f *EnrolledFace) SetEmbedding(vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	f.Embedding = datatypes.JSON(data)
	return nil
}

// EmbeddingVector deserialisiert den Embedding-Vektor aus der JSON-Spalte
func (f *EnrolledFace) EmbeddingVector() ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal(f.Embedding, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding of face %d: %w", f.ID, err)
	}
	return vec, nil
}

// RecognitionLog repräsentiert einen unveränderlichen Audit-Eintrag
// für jeden Detect-/Verify-Versuch. Einträge werden nie aktualisiert.
type RecognitionLog struct {
	gorm.Model
	ApiKeyID        *uint   `gorm:"index" json:"apiKeyId"` // nil bei Sitzungs-Authentifizierung
	UserID          uint    `gorm:"index;not null" json:"userId"`
	Status          string  `gorm:"index;not null;default:'success'" json:"status"`
	MatchedFaces    int     `json:"matchedFaces"`
	MatchedFaceID   *uint   `json:"matchedFaceId"`
	MatchedFaceName *string `json:"matchedFaceName"`
	Duration        int64   `json:"duration"` // Millisekunden
	ErrorMessage    string  `json:"errorMessage,omitempty"`
}

// RecognitionLogView ist die denormalisierte Lesesicht eines Log-Eintrags.
// Der Schlüsselname wird zur Lesezeit explizit aus api_keys beigezogen.
type RecognitionLogView struct {
	RecognitionLog
	ApiKeyName *string `json:"apiKeyName"`
}
