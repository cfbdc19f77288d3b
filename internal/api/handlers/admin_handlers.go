package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AdminListUsers listet alle Benutzerkonten auf
func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.credentials.ListUsers()
	if err != nil {
		log.Errorf("Fehler beim Laden der Benutzer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// AdminListKeys listet die Schlüssel aller Mandanten ohne Schlüsselmaterial auf
func (h *Handler) AdminListKeys(c *gin.Context) {
	keys, err := h.credentials.ListKeys()
	if err != nil {
		log.Errorf("Fehler beim Laden der Schlüssel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	for i := range keys {
		keys[i].Key = ""
	}
	c.JSON(http.StatusOK, gin.H{"apiKeys": keys, "total": len(keys)})
}

// AdminRevokeKey deaktiviert einen beliebigen Schlüssel mandantenübergreifend
func (h *Handler) AdminRevokeKey(c *gin.Context) {
	keyID, ok := parseUintParam(c, "keyId")
	if !ok {
		return
	}

	// userID == 0 hebt die Mandanten-Beschränkung auf
	found, err := h.credentials.SetKeyActive(keyID, 0, false)
	if err != nil {
		log.Errorf("Fehler beim Deaktivieren des Schlüssels %d: %v", keyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked successfully"})
}

// AdminDeleteKey löscht einen beliebigen Schlüssel mitsamt Log-Einträgen
func (h *Handler) AdminDeleteKey(c *gin.Context) {
	keyID, ok := parseUintParam(c, "keyId")
	if !ok {
		return
	}

	found, err := h.credentials.DeleteKey(keyID, 0)
	if err != nil {
		log.Errorf("Fehler beim Löschen des Schlüssels %d: %v", keyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted successfully"})
}

// AdminListFaces listet die registrierten Gesichter aller Mandanten auf
func (h *Handler) AdminListFaces(c *gin.Context) {
	faces, err := h.gallery.ListFaces()
	if err != nil {
		log.Errorf("Fehler beim Laden der Gesichter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"faces": faces, "total": len(faces)})
}

// AdminDeleteFace löscht ein beliebiges Gesicht mandantenübergreifend
func (h *Handler) AdminDeleteFace(c *gin.Context) {
	faceID, ok := parseUintParam(c, "faceId")
	if !ok {
		return
	}

	// userID == 0 hebt die Mandanten-Beschränkung auf
	face, err := h.gallery.GetFaceForUser(faceID, 0)
	if err != nil {
		log.Errorf("Fehler beim Laden des Gesichts %d: %v", faceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if face == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Face not found"})
		return
	}

	if err := h.recognizer.RemoveFace(face); err != nil {
		log.Errorf("Fehler beim Löschen des Gesichts %d: %v", faceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Face deleted successfully"})
}

// AdminListLogs liefert das Audit-Protokoll aller Mandanten mit Paginierung
func (h *Handler) AdminListLogs(c *gin.Context) {
	limit, skip := parsePagination(c)
	logs, total, err := h.logs.ListLogs(limit, skip)
	if err != nil {
		log.Errorf("Fehler beim Laden des Protokolls: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"limit": limit,
		"skip":  skip,
	})
}
