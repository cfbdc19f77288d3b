package handlers

import (
	"net/http"

	"facegate/internal/core/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterUser legt ein neues Benutzerkonto an
func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username, email and password (min 8 characters) are required"})
		return
	}

	exists, err := h.credentials.UserExists(req.Username, req.Email)
	if err != nil {
		log.Errorf("Fehler bei der Benutzerprüfung: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during registration"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"message": "Username or email already in use"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cfg.Auth.BcryptCost)
	if err != nil {
		log.Errorf("Fehler beim Hashen des Passworts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during registration"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleUser,
	}
	if err := h.credentials.CreateUser(user); err != nil {
		log.Errorf("Fehler beim Anlegen des Benutzers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during registration"})
		return
	}

	log.Infof("Neuer Benutzer registriert: %s (ID %d)", user.Username, user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login prüft die Zugangsdaten und stellt ein Sitzungs-Token aus
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}

	user, err := h.credentials.GetUserByUsername(req.Username)
	if err != nil {
		log.Errorf("Fehler beim Laden des Benutzers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during login"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := h.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		log.Errorf("Fehler beim Ausstellen des Tokens: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Profile liefert das Konto der angemeldeten Sitzung
func (h *Handler) Profile(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	user, err := h.credentials.GetUserByID(id.UserID)
	if err != nil {
		log.Errorf("Fehler beim Laden des Profils: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
