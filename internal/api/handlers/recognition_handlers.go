package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"facegate/internal/extractor"
	"facegate/internal/recognition"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Detect gleicht das hochgeladene Probenbild gegen die gesamte aktive
// Galerie des Mandanten ab
func (h *Handler) Detect(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	threshold, err := parseThreshold(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	imagePath, err := h.saveUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	result, err := h.recognizer.Detect(c.Request.Context(), id, imagePath, threshold)
	if err != nil {
		h.recognitionError(c, "detect", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Verify vergleicht das hochgeladene Probenbild mit genau einem
// registrierten Gesicht
func (h *Handler) Verify(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	rawFaceID := c.PostForm("faceId")
	faceID, convErr := strconv.ParseUint(rawFaceID, 10, 32)
	if rawFaceID == "" || convErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "faceId is required"})
		return
	}

	threshold, err := parseThreshold(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	imagePath, err := h.saveUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	result, err := h.recognizer.Verify(c.Request.Context(), id, imagePath, uint(faceID), threshold)
	if err != nil {
		h.recognitionError(c, "verify", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegisterFace registriert ein neues Gesicht aus dem hochgeladenen Bild
func (h *Handler) RegisterFace(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name is required"})
		return
	}

	imagePath, err := h.saveUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	face, err := h.recognizer.Register(c.Request.Context(), id.UserID, imagePath, name)
	if err != nil {
		h.recognitionError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Face registered successfully",
		"face":    face,
	})
}

// ListRegistered listet die registrierten Gesichter des Mandanten auf
func (h *Handler) ListRegistered(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	activeOnly := c.Query("activeOnly") == "true"
	faces, err := h.gallery.ListFacesForUser(id.UserID, activeOnly)
	if err != nil {
		log.Errorf("Fehler beim Laden der Gesichter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"faces": faces})
}

// DeleteRegistered löscht ein registriertes Gesicht des Mandanten endgültig
func (h *Handler) DeleteRegistered(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	faceID, ok := parseUintParam(c, "faceId")
	if !ok {
		return
	}

	face, err := h.gallery.GetFaceForUser(faceID, id.UserID)
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

// GetLogs liefert das Audit-Protokoll des Mandanten mit Paginierung
func (h *Handler) GetLogs(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	limit, skip := parsePagination(c)
	logs, total, err := h.logs.ListLogsForUser(id.UserID, limit, skip)
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

// recognitionError bildet Fehler des Erkennungsdienstes auf HTTP-Status ab
func (h *Handler) recognitionError(c *gin.Context, operation string, err error) {
	var extractionErr *extractor.ExtractionError
	switch {
	case errors.As(err, &extractionErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": extractionErr.Reason})
	case errors.Is(err, recognition.ErrFaceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Face not found"})
	default:
		log.Errorf("Erkennungsfehler (%s): %v", operation, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during recognition"})
	}
}
