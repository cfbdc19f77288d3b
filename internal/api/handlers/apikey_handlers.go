package handlers

import (
	"net/http"
	"time"

	"facegate/internal/core/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type generateKeyRequest struct {
	Name string `json:"name"`
}

// GenerateKey erstellt einen neuen API-Schlüssel für den angemeldeten Mandanten.
// Das Schlüsselmaterial wird nur in dieser Antwort vollständig ausgegeben.
func (h *Handler) GenerateKey(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var req generateKeyRequest
	_ = c.ShouldBindJSON(&req)
	if req.Name == "" {
		req.Name = "Default Key"
	}

	material, err := models.GenerateKey()
	if err != nil {
		log.Errorf("Fehler beim Erzeugen des Schlüsselmaterials: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error generating API key"})
		return
	}

	expiresAt := time.Now().AddDate(0, 0, h.cfg.Recognition.APIKeyTTLDays)
	key := &models.ApiKey{
		Key:       material,
		UserID:    id.UserID,
		Name:      req.Name,
		IsActive:  true,
		ExpiresAt: &expiresAt,
	}
	if err := h.credentials.CreateKey(key); err != nil {
		log.Errorf("Fehler beim Anlegen des API-Schlüssels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error generating API key"})
		return
	}

	log.Infof("API-Schlüssel %d für Benutzer %d erzeugt", key.ID, id.UserID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "API key generated successfully",
		"apiKey":  key,
	})
}

// ListKeys listet die Schlüssel des Mandanten ohne Schlüsselmaterial auf
func (h *Handler) ListKeys(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	keys, err := h.credentials.ListKeysForUser(id.UserID)
	if err != nil {
		log.Errorf("Fehler beim Laden der Schlüssel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	// Schlüsselmaterial nie in Listen ausgeben
	for i := range keys {
		keys[i].Key = ""
	}
	c.JSON(http.StatusOK, gin.H{"apiKeys": keys})
}

// GetKey liefert einen einzelnen Schlüssel inklusive Schlüsselmaterial
func (h *Handler) GetKey(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	keyID, ok := parseUintParam(c, "keyId")
	if !ok {
		return
	}

	key, err := h.credentials.GetKeyForUser(keyID, id.UserID)
	if err != nil {
		log.Errorf("Fehler beim Laden des Schlüssels %d: %v", keyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if key == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"apiKey": key})
}

// RevokeKey deaktiviert einen Schlüssel (umkehrbar)
func (h *Handler) RevokeKey(c *gin.Context) {
	h.setKeyActive(c, false, "API key revoked successfully")
}

// ActivateKey reaktiviert einen zuvor deaktivierten Schlüssel
func (h *Handler) ActivateKey(c *gin.Context) {
	h.setKeyActive(c, true, "API key activated successfully")
}

func (h *Handler) setKeyActive(c *gin.Context, active bool, message string) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	keyID, ok := parseUintParam(c, "keyId")
	if !ok {
		return
	}

	found, err := h.credentials.SetKeyActive(keyID, id.UserID, active)
	if err != nil {
		log.Errorf("Fehler beim Umschalten des Schlüssels %d: %v", keyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// DeleteKey löscht einen Schlüssel endgültig mitsamt seiner Log-Einträge
func (h *Handler) DeleteKey(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	keyID, ok := parseUintParam(c, "keyId")
	if !ok {
		return
	}

	found, err := h.credentials.DeleteKey(keyID, id.UserID)
	if err != nil {
		log.Errorf("Fehler beim Löschen des Schlüssels %d: %v", keyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}

	log.Infof("API-Schlüssel %d von Benutzer %d gelöscht", keyID, id.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "API key deleted successfully"})
}
