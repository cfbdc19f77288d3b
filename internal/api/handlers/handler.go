package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"facegate/config"
	"facegate/internal/api/middleware"
	"facegate/internal/auth"
	"facegate/internal/db/repository"
	"facegate/internal/recognition"
	"facegate/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler behandelt alle API-Anfragen
type Handler struct {
	cfg         *config.Config
	credentials repository.CredentialStore
	gallery     repository.GalleryStore
	logs        repository.LogStore
	tokens      *auth.TokenService
	recognizer  *recognition.Service
	pool        utils.ExtractionPool
}

// NewHandler erstellt einen neuen API-Handler
func NewHandler(cfg *config.Config, credentials repository.CredentialStore,
	gallery repository.GalleryStore, logs repository.LogStore,
	tokens *auth.TokenService, recognizer *recognition.Service,
	pool utils.ExtractionPool) *Handler {

	return &Handler{
		cfg:         cfg,
		credentials: credentials,
		gallery:     gallery,
		logs:        logs,
		tokens:      tokens,
		recognizer:  recognizer,
		pool:        pool,
	}
}

// RegisterRoutes registriert alle API-Routen unter /api
func (h *Handler) RegisterRoutes(router *gin.Engine, mw *middleware.AuthMiddleware) {
	api := router.Group("/api")

	api.GET("/health", h.Health)

	// Authentifizierung (Sitzungs-Token-Ausgabe)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.RegisterUser)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/profile", mw.RequireSession(), h.Profile)

	// Schlüsselverwaltung (nur Sitzung)
	keys := api.Group("/apikeys", mw.RequireSession())
	keys.POST("/generate", h.GenerateKey)
	keys.GET("", h.ListKeys)
	keys.GET("/:keyId", h.GetKey)
	keys.PATCH("/:keyId/revoke", h.RevokeKey)
	keys.PATCH("/:keyId/activate", h.ActivateKey)
	keys.DELETE("/:keyId", h.DeleteKey)

	// Erkennungs-Endpunkte
	rec := api.Group("/recognition")
	rec.POST("/detect", mw.RequireAPIKey(), h.Detect)
	rec.POST("/verify", mw.RequireAPIKey(), h.Verify)
	rec.POST("/register", mw.RequireEither(), h.RegisterFace)
	rec.GET("/registered", mw.RequireEither(), h.ListRegistered)
	rec.DELETE("/registered/:faceId", mw.RequireEither(), h.DeleteRegistered)
	rec.GET("/logs", mw.RequireSession(), h.GetLogs)

	// Gesichtsverwaltung (nur Sitzung)
	faces := api.Group("/faces", mw.RequireSession())
	faces.GET("", h.ListFaces)
	faces.GET("/:faceId", h.GetFace)
	faces.PATCH("/:faceId", h.UpdateFace)
	faces.PATCH("/:faceId/deactivate", h.DeactivateFace)
	faces.PATCH("/:faceId/reactivate", h.ReactivateFace)
	faces.DELETE("/:faceId", h.DeleteFace)

	// Admin-Endpunkte (Sitzung + Admin-Rolle)
	admin := api.Group("/admin", mw.RequireSession(), mw.RequireAdmin())
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/apikeys", h.AdminListKeys)
	admin.PATCH("/apikeys/:keyId/revoke", h.AdminRevokeKey)
	admin.DELETE("/apikeys/:keyId", h.AdminDeleteKey)
	admin.GET("/faces", h.AdminListFaces)
	admin.DELETE("/faces/:faceId", h.AdminDeleteFace)
	admin.GET("/logs", h.AdminListLogs)

	// Systemstatus (nur Sitzung)
	api.GET("/system/status", mw.RequireSession(), h.SystemStatus)
}

// Health ist der Lebenszeichen-Endpunkt
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Server is running"})
}

// identity holt die aufgelöste Identität; bricht mit 401 ab, wenn die
// Middleware-Kette sie nicht gesetzt hat
func (h *Handler) identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
	}
	return id, ok
}

// saveUpload speichert das hochgeladene Probenbild unter einem zufälligen
// Namen im Upload-Verzeichnis und gibt den Pfad zurück
func (h *Handler) saveUpload(c *gin.Context) (string, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return "", fmt.Errorf("image file is required")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		// zulässig
	default:
		return "", fmt.Errorf("only image files are allowed (jpg, jpeg, png, gif)")
	}

	path := filepath.Join(h.cfg.Server.UploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		return "", fmt.Errorf("failed to store uploaded file: %w", err)
	}
	return path, nil
}

// parseUintParam liest einen numerischen Pfad-Parameter
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return uint(v), true
}

// parsePagination liest limit/skip aus der Query mit Standardwerten
func parsePagination(c *gin.Context) (limit, skip int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

// parseThreshold liest den optionalen Schwellenwert aus dem Formular
func parseThreshold(c *gin.Context) (float64, error) {
	raw := c.PostForm("threshold")
	if raw == "" {
		return 0, nil
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		return 0, fmt.Errorf("threshold must be a number between 0 and 1")
	}
	return threshold, nil
}
