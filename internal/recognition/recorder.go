package recognition

import (
	"fmt"

	"facegate/internal/auth"
	"facegate/internal/core/models"
	"facegate/internal/db/repository"
)

// Recorder schreibt für jeden Detect-/Verify-Versuch genau einen
// unveränderlichen Audit-Eintrag. Fehlgeschlagene Schreibvorgänge werden
// nicht wiederholt; der Aufrufer behandelt sie als Serverfehler.
type Recorder struct {
	store repository.LogStore
}

// NewRecorder erstellt einen neuen Recorder über dem Log-Store
func NewRecorder(store repository.LogStore) *Recorder {
	return &Recorder{store: store}
}

// Record hängt einen Audit-Eintrag an. Der konsumierende API-Schlüssel wird
// nur bei Schlüssel-Authentifizierung zugeordnet; bei Sitzungs-Aufrufen
// bleibt das Feld leer.
func (r *Recorder) Record(id auth.Identity, status string, matchedFaces int,
	matchedFaceID *uint, matchedFaceName *string, durationMs int64, errorMessage string) error {

	entry := &models.RecognitionLog{
		ApiKeyID:        id.ApiKeyID,
		UserID:          id.UserID,
		Status:          status,
		MatchedFaces:    matchedFaces,
		MatchedFaceID:   matchedFaceID,
		MatchedFaceName: matchedFaceName,
		Duration:        durationMs,
		ErrorMessage:    errorMessage,
	}

	if err := r.store.Append(entry); err != nil {
		return fmt.Errorf("failed to write recognition log: %w", err)
	}
	return nil
}
