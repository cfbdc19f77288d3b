package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type updateFaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListFaces listet alle Gesichter des Mandanten auf (inkl. deaktivierter)
func (h *Handler) ListFaces(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	faces, err := h.gallery.ListFacesForUser(id.UserID, false)
	if err != nil {
		log.Errorf("Fehler beim Laden der Gesichter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"faces": faces})
}

// GetFace liefert ein einzelnes Gesicht des Mandanten
func (h *Handler) GetFace(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{"face": face})
}

// UpdateFace benennt ein Gesicht um
func (h *Handler) UpdateFace(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	faceID, ok := parseUintParam(c, "faceId")
	if !ok {
		return
	}

	var req updateFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name is required"})
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

	face.Name = req.Name
	if err := h.gallery.SaveFace(face); err != nil {
		log.Errorf("Fehler beim Speichern des Gesichts %d: %v", faceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Face updated successfully",
		"face":    face,
	})
}

// DeactivateFace nimmt ein Gesicht umkehrbar aus der Abgleich-Galerie
func (h *Handler) DeactivateFace(c *gin.Context) {
	h.setFaceActive(c, false, "Face deactivated successfully")
}

// ReactivateFace nimmt ein deaktiviertes Gesicht wieder in die Galerie auf
func (h *Handler) ReactivateFace(c *gin.Context) {
	h.setFaceActive(c, true, "Face reactivated successfully")
}

func (h *Handler) setFaceActive(c *gin.Context, active bool, message string) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	faceID, ok := parseUintParam(c, "faceId")
	if !ok {
		return
	}

	found, err := h.gallery.SetFaceActive(faceID, id.UserID, active)
	if err != nil {
		log.Errorf("Fehler beim Umschalten des Gesichts %d: %v", faceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "Face not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// DeleteFace löscht ein Gesicht des Mandanten endgültig
func (h *Handler) DeleteFace(c *gin.Context) {
	h.DeleteRegistered(c)
}
