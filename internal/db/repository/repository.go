package repository

import (
	"errors"
	"time"

	"facegate/internal/core/models"

	"gorm.io/gorm"
)

// CredentialStore definiert die Schnittstelle für Benutzer- und Schlüssel-Operationen
type CredentialStore interface {
	// Benutzer-Methoden
	CreateUser(user *models.User) error
	GetUserByID(id uint) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	UserExists(username, email string) (bool, error)
	ListUsers() ([]models.User, error)

	// Schlüssel-Methoden
	CreateKey(key *models.ApiKey) error
	GetKeyByToken(token string) (*models.ApiKey, error)
	GetKeyForUser(id, userID uint) (*models.ApiKey, error)
	ListKeysForUser(userID uint) ([]models.ApiKey, error)
	ListKeys() ([]models.ApiKey, error)
	SetKeyActive(id, userID uint, active bool) (bool, error)
	DeleteKey(id, userID uint) (bool, error)
	TouchKeyUsage(id uint, now time.Time) error
}

// GalleryStore definiert die Schnittstelle für registrierte Gesichter
type GalleryStore interface {
	CreateFace(face *models.EnrolledFace) error
	GetFaceForUser(id, userID uint) (*models.EnrolledFace, error)
	ListFacesForUser(userID uint, activeOnly bool) ([]models.EnrolledFace, error)
	ListActiveFaces(userID uint) ([]models.EnrolledFace, error)
	ListFaces() ([]models.EnrolledFace, error)
	SaveFace(face *models.EnrolledFace) error
	SetFaceActive(id, userID uint, active bool) (bool, error)
	DeleteFace(id uint) error
}

// LogStore definiert die Schnittstelle für das Audit-Protokoll
type LogStore interface {
	Append(entry *models.RecognitionLog) error
	ListLogsForUser(userID uint, limit, skip int) ([]models.RecognitionLogView, int64, error)
	ListLogs(limit, skip int) ([]models.RecognitionLogView, int64, error)
	DeleteLogsOlderThan(cutoff time.Time) (int64, error)
}

// SQLiteRepository implementiert alle Store-Schnittstellen für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Benutzer-Methoden

// CreateUser legt einen neuen Benutzer an
func (r *SQLiteRepository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

// GetUserByID holt einen Benutzer anhand seiner ID
func (r *SQLiteRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetUserByUsername holt einen Benutzer anhand seines Benutzernamens
func (r *SQLiteRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	result := r.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// UserExists prüft, ob Benutzername oder E-Mail bereits vergeben sind
func (r *SQLiteRepository) UserExists(username, email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// ListUsers holt alle Benutzer, neueste zuerst
func (r *SQLiteRepository) ListUsers() ([]models.User, error) {
	var users []models.User
	result := r.db.Order("created_at DESC").Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// Schlüssel-Methoden

// CreateKey legt einen neuen API-Schlüssel an
func (r *SQLiteRepository) CreateKey(key *models.ApiKey) error {
	return r.db.Create(key).Error
}

// GetKeyByToken sucht einen Schlüssel anhand seines Schlüsselmaterials
func (r *SQLiteRepository) GetKeyByToken(token string) (*models.ApiKey, error) {
	var key models.ApiKey
	result := r.db.Where("key = ?", token).First(&key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &key, nil
}

// GetKeyForUser holt einen Schlüssel, sofern er dem Mandanten gehört
func (r *SQLiteRepository) GetKeyForUser(id, userID uint) (*models.ApiKey, error) {
	var key models.ApiKey
	result := r.db.Where("id = ? AND user_id = ?", id, userID).First(&key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &key, nil
}

// ListKeysForUser holt alle Schlüssel eines Mandanten, neueste zuerst
func (r *SQLiteRepository) ListKeysForUser(userID uint) ([]models.ApiKey, error) {
	var keys []models.ApiKey
	result := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys)
	if result.Error != nil {
		return nil, result.Error
	}
	return keys, nil
}

// ListKeys holt alle Schlüssel aller Mandanten (Admin-Sicht)
func (r *SQLiteRepository) ListKeys() ([]models.ApiKey, error) {
	var keys []models.ApiKey
	result := r.db.Order("created_at DESC").Find(&keys)
	if result.Error != nil {
		return nil, result.Error
	}
	return keys, nil
}

// SetKeyActive setzt das Aktiv-Flag eines Schlüssels. userID == 0 hebt die
// Mandanten-Beschränkung auf (Admin-Pfad). Gibt false zurück, wenn kein
// passender Schlüssel existiert.
func (r *SQLiteRepository) SetKeyActive(id, userID uint, active bool) (bool, error) {
	query := r.db.Model(&models.ApiKey{}).Where("id = ?", id)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	result := query.Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteKey löscht einen Schlüssel mitsamt seiner abhängigen Log-Einträge.
// Beide Löschungen laufen in einer Transaktion, damit keine verwaisten
// Log-Referenzen zurückbleiben. userID == 0 hebt die Mandanten-Beschränkung auf.
func (r *SQLiteRepository) DeleteKey(id, userID uint) (bool, error) {
	found := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		if userID != 0 {
			query = query.Where("user_id = ?", userID)
		}

		var key models.ApiKey
		if err := query.First(&key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		// Abhängige Log-Einträge zuerst entfernen (Kaskade)
		if err := tx.Unscoped().Where("api_key_id = ?", key.ID).
			Delete(&models.RecognitionLog{}).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Delete(&key).Error; err != nil {
			return err
		}

		found = true
		return nil
	})
	return found, err
}

// TouchKeyUsage verbucht eine Schlüsselnutzung als einzelnes atomares UPDATE.
// Ein Read-Modify-Write würde unter parallelen Anfragen Nutzungen verlieren.
func (r *SQLiteRepository) TouchKeyUsage(id uint, now time.Time) error {
	return r.db.Model(&models.ApiKey{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": now,
		}).Error
}

// Gesichts-Methoden

// CreateFace legt ein neues registriertes Gesicht an
func (r *SQLiteRepository) CreateFace(face *models.EnrolledFace) error {
	return r.db.Create(face).Error
}

// GetFaceForUser holt ein Gesicht, sofern es dem Mandanten gehört.
// userID == 0 hebt die Mandanten-Beschränkung auf (Admin-Pfad).
func (r *SQLiteRepository) GetFaceForUser(id, userID uint) (*models.EnrolledFace, error) {
	query := r.db.Where("id = ?", id)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	var face models.EnrolledFace
	result := query.First(&face)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &face, nil
}

// ListFacesForUser holt die Gesichter eines Mandanten
func (r *SQLiteRepository) ListFacesForUser(userID uint, activeOnly bool) ([]models.EnrolledFace, error) {
	var faces []models.EnrolledFace
	query := r.db.Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	result := query.Order("created_at DESC").Find(&faces)
	if result.Error != nil {
		return nil, result.Error
	}
	return faces, nil
}

// ListActiveFaces holt die Abgleich-Galerie eines Mandanten. Die Reihenfolge
// ist stabil aufsteigend nach ID; darauf stützt sich die deterministische
// Gleichstands-Auflösung beim Abgleich.
func (r *SQLiteRepository) ListActiveFaces(userID uint) ([]models.EnrolledFace, error) {
	var faces []models.EnrolledFace
	result := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").Find(&faces)
	if result.Error != nil {
		return nil, result.Error
	}
	return faces, nil
}

// ListFaces holt alle Gesichter aller Mandanten (Admin-Sicht)
func (r *SQLiteRepository) ListFaces() ([]models.EnrolledFace, error) {
	var faces []models.EnrolledFace
	result := r.db.Order("created_at DESC").Find(&faces)
	if result.Error != nil {
		return nil, result.Error
	}
	return faces, nil
}

// SaveFace speichert Änderungen an einem Gesicht
func (r *SQLiteRepository) SaveFace(face *models.EnrolledFace) error {
	return r.db.Save(face).Error
}

// SetFaceActive setzt das Aktiv-Flag eines Gesichts. Deaktivierung ist
// umkehrbar und entfernt das Gesicht nur aus der Abgleich-Galerie.
func (r *SQLiteRepository) SetFaceActive(id, userID uint, active bool) (bool, error) {
	result := r.db.Model(&models.EnrolledFace{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteFace löscht ein Gesicht endgültig
func (r *SQLiteRepository) DeleteFace(id uint) error {
	return r.db.Unscoped().Delete(&models.EnrolledFace{}, id).Error
}

// Log-Methoden

// Append schreibt einen neuen Audit-Eintrag. Einträge werden nie aktualisiert.
func (r *SQLiteRepository) Append(entry *models.RecognitionLog) error {
	return r.db.Create(entry).Error
}

// ListLogsForUser holt die Log-Einträge eines Mandanten mit Paginierung.
// Der Schlüsselname wird per explizitem Join aus api_keys beigezogen.
func (r *SQLiteRepository) ListLogsForUser(userID uint, limit, skip int) ([]models.RecognitionLogView, int64, error) {
	var total int64
	if err := r.db.Model(&models.RecognitionLog{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.RecognitionLogView
	err := r.db.Model(&models.RecognitionLog{}).
		Select("recognition_logs.*, api_keys.name AS api_key_name").
		Joins("LEFT JOIN api_keys ON api_keys.id = recognition_logs.api_key_id").
		Where("recognition_logs.user_id = ?", userID).
		Order("recognition_logs.created_at DESC").
		Limit(limit).Offset(skip).
		Scan(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// ListLogs holt Log-Einträge aller Mandanten (Admin-Sicht)
func (r *SQLiteRepository) ListLogs(limit, skip int) ([]models.RecognitionLogView, int64, error) {
	var total int64
	if err := r.db.Model(&models.RecognitionLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.RecognitionLogView
	err := r.db.Model(&models.RecognitionLog{}).
		Select("recognition_logs.*, api_keys.name AS api_key_name").
		Joins("LEFT JOIN api_keys ON api_keys.id = recognition_logs.api_key_id").
		Order("recognition_logs.created_at DESC").
		Limit(limit).Offset(skip).
		Scan(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// DeleteLogsOlderThan entfernt Log-Einträge vor dem Stichtag endgültig
func (r *SQLiteRepository) DeleteLogsOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.RecognitionLog{})
	return result.RowsAffected, result.Error
}
