package middleware

import (
	"errors"
	"net/http"
	"strings"

	"facegate/internal/auth"
	"facegate/internal/core/models"
	"facegate/internal/observability"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HeaderAPIKey ist der Header für API-Schlüssel
const HeaderAPIKey = "x-api-key"

const identityKey = "identity"

// AuthMiddleware stellt die Authentifizierungs-Varianten für die Routen bereit.
// Die Routing-Schicht wählt pro Endpunkt die passende Variante; das Gate
// selbst ist pro Aufruf schema-agnostisch.
type AuthMiddleware struct {
	gate *auth.Gate
}

// NewAuthMiddleware erstellt die Authentifizierungs-Middleware über dem Gate
func NewAuthMiddleware(gate *auth.Gate) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

// Identity holt die aufgelöste Identität aus dem Anfrage-Kontext
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// RequireAPIKey verlangt einen gültigen API-Schlüssel (reine Schlüssel-Endpunkte)
func (m *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderAPIKey)
		if raw == "" {
			observability.AuthFailures.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": Localize(c, "auth.key_missing", "API key is required"),
			})
			return
		}

		id, err := m.gate.ResolveAPIKey(raw)
		if err != nil {
			m.reject(c, err)
			return
		}

		c.Set(identityKey, *id)
		c.Next()
	}
}

// RequireSession verlangt ein gültiges Sitzungs-Token (reine Sitzungs-Endpunkte)
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			observability.AuthFailures.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": Localize(c, "auth.session_missing", "Authentication token is required"),
			})
			return
		}

		id, err := m.gate.ResolveSession(token)
		if err != nil {
			m.reject(c, err)
			return
		}

		c.Set(identityKey, *id)
		c.Next()
	}
}

// RequireEither akzeptiert beide Schemata; ein API-Schlüssel hat Vorrang
// vor dem Sitzungs-Token (Registrierungs- und Listen-Endpunkte)
func (m *AuthMiddleware) RequireEither() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		token := bearerToken(c)

		id, err := m.gate.Resolve(apiKey, token)
		if err != nil {
			m.reject(c, err)
			return
		}

		c.Set(identityKey, *id)
		c.Next()
	}
}

// RequireAdmin verlangt eine Sitzung mit Admin-Rolle; muss nach
// RequireSession in der Kette stehen
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok || id.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": Localize(c, "auth.admin_required", "Admin access required"),
			})
			return
		}
		c.Next()
	}
}

// reject übersetzt Gate-Fehler in unterscheidbare 401-Antworten
func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		observability.AuthFailures.WithLabelValues("missing").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": Localize(c, "auth.credential_missing",
				"Provide API key (x-api-key) or session token (Authorization: Bearer ...)"),
		})
	case errors.Is(err, auth.ErrInvalidCredential):
		observability.AuthFailures.WithLabelValues("invalid").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": Localize(c, "auth.credential_invalid", "Invalid credential"),
		})
	case errors.Is(err, auth.ErrCredentialInactive):
		observability.AuthFailures.WithLabelValues("inactive").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": Localize(c, "auth.credential_inactive", "API key is inactive"),
		})
	case errors.Is(err, auth.ErrCredentialExpired):
		observability.AuthFailures.WithLabelValues("expired").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": Localize(c, "auth.credential_expired", "API key has expired"),
		})
	default:
		log.Errorf("Credential resolution failed: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"message": Localize(c, "auth.server_error", "Server error validating credentials"),
		})
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
