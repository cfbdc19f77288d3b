// Package recognition orchestriert den Erkennungsablauf: Embedding-Extraktion
// über die externe Prozessgrenze, Abgleich gegen die Galerie des aufgelösten
// Mandanten, Audit-Protokollierung und garantierte Bereinigung des
// hochgeladenen Probenbildes auf jedem Ausgangspfad.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"facegate/internal/auth"
	"facegate/internal/core/models"
	"facegate/internal/db/repository"
	"facegate/internal/extractor"
	"facegate/internal/matching"
	"facegate/internal/observability"

	log "github.com/sirupsen/logrus"
)

// ErrFaceNotFound wird gemeldet, wenn das angefragte Gesicht nicht existiert,
// einem anderen Mandanten gehört oder deaktiviert ist.
var ErrFaceNotFound = errors.New("face not found")

// EmbeddingProvider ist die Extraktionsgrenze, wie der Orchestrator sie sieht
type EmbeddingProvider interface {
	Extract(ctx context.Context, imagePath string) (*extractor.Result, error)
}

// Event beschreibt den Ausgang eines Erkennungsversuchs für die optionale
// Ereignis-Publikation.
type Event struct {
	Operation    string  `json:"operation"`
	UserID       uint    `json:"userId"`
	Status       string  `json:"status"`
	MatchedName  string  `json:"matchedName,omitempty"`
	Similarity   float64 `json:"similarity,omitempty"`
	DurationMs   int64   `json:"durationMs"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// Publisher publiziert Erkennungsereignisse an externe Konsumenten
type Publisher interface {
	PublishRecognition(event Event)
}

// Options konfiguriert den Erkennungsdienst
type Options struct {
	DefaultThreshold float64
	RetainImages     bool
	RetainedDir      string
}

// Service führt die Operationen Detect, Verify und Register aus
type Service struct {
	gallery   repository.GalleryStore
	recorder  *Recorder
	extractor EmbeddingProvider
	publisher Publisher // optional, darf nil sein
	opts      Options
}

// NewService erstellt den Erkennungsdienst
func NewService(gallery repository.GalleryStore, recorder *Recorder, provider EmbeddingProvider, publisher Publisher, opts Options) *Service {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = 0.6
	}
	return &Service{
		gallery:   gallery,
		recorder:  recorder,
		extractor: provider,
		publisher: publisher,
		opts:      opts,
	}
}

// BestMatch ist der beste Galerie-Treffer eines Detect-Aufrufs
type BestMatch struct {
	FaceID     uint    `json:"faceId"`
	FaceName   string  `json:"faceName"`
	Similarity float64 `json:"similarity"`
}

// DetectResult ist das Ergebnis eines Detect-Aufrufs
type DetectResult struct {
	Matched      bool       `json:"matched"`
	BestMatch    *BestMatch `json:"bestMatch"`
	TotalMatches int        `json:"totalMatches"`
	Duration     int64      `json:"duration"`
}

// VerifyResult ist das Ergebnis eines Verify-Aufrufs
type VerifyResult struct {
	Verified           bool    `json:"verified"`
	Similarity         float64 `json:"similarity"`
	Threshold          float64 `json:"threshold"`
	RegisteredFaceName string  `json:"registeredFaceName"`
	Duration           int64   `json:"duration"`
}

// Threshold löst den wirksamen Schwellenwert einer Anfrage auf
func (s *Service) Threshold(requested float64) float64 {
	if requested <= 0 {
		return s.opts.DefaultThreshold
	}
	return requested
}

// Detect extrahiert das Embedding des Probenbildes und gleicht es gegen die
// gesamte aktive Galerie des Mandanten ab. Jeder Versuch wird protokolliert;
// das Probenbild wird auf jedem Ausgangspfad gelöscht.
func (s *Service) Detect(ctx context.Context, id auth.Identity, imagePath string, threshold float64) (*DetectResult, error) {
	start := time.Now()
	defer s.removeArtifact(imagePath)

	threshold = s.Threshold(threshold)

	probe, err := s.extract(ctx, imagePath)
	if err != nil {
		return nil, s.recordFailure(id, "detect", start, err)
	}

	gallery, err := s.candidates(id.UserID)
	if err != nil {
		return nil, s.recordFailure(id, "detect", start, err)
	}

	best, total := matching.FindBestMatch(probe.Embedding, gallery, threshold)

	status := models.StatusFailed
	var matchedFaceID *uint
	var matchedFaceName *string
	result := &DetectResult{TotalMatches: total}

	if best != nil {
		status = models.StatusSuccess
		result.Matched = true
		result.BestMatch = &BestMatch{
			FaceID:     best.FaceID,
			FaceName:   best.Name,
			Similarity: matching.Round4(best.Similarity),
		}
		matchedFaceID = &best.FaceID
		matchedFaceName = &best.Name
	}

	duration := time.Since(start).Milliseconds()
	result.Duration = duration

	if err := s.recorder.Record(id, status, total, matchedFaceID, matchedFaceName, duration, ""); err != nil {
		// Fail-closed: ohne Audit-Eintrag wird kein Ergebnis ausgeliefert
		return nil, err
	}

	observability.RecognitionAttempts.WithLabelValues("detect", status).Inc()
	s.publish(Event{
		Operation:   "detect",
		UserID:      id.UserID,
		Status:      status,
		MatchedName: derefString(matchedFaceName),
		Similarity:  bestSimilarity(result.BestMatch),
		DurationMs:  duration,
	})

	return result, nil
}

// Verify extrahiert das Embedding des Probenbildes und vergleicht es mit
// genau einem registrierten Gesicht. Das Gesicht muss dem Mandanten gehören
// und aktiv sein, sonst wird ErrFaceNotFound gemeldet, ohne dass ein
// Log-Eintrag entsteht.
func (s *Service) Verify(ctx context.Context, id auth.Identity, imagePath string, faceID uint, threshold float64) (*VerifyResult, error) {
	start := time.Now()
	defer s.removeArtifact(imagePath)

	threshold = s.Threshold(threshold)

	face, err := s.gallery.GetFaceForUser(faceID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve face %d: %w", faceID, err)
	}
	if face == nil || !face.IsActive {
		return nil, ErrFaceNotFound
	}

	probe, err := s.extract(ctx, imagePath)
	if err != nil {
		return nil, s.recordFailure(id, "verify", start, err)
	}

	enrolled, err := face.EmbeddingVector()
	if err != nil {
		return nil, s.recordFailure(id, "verify", start, err)
	}

	similarity := matching.Round4(matching.Cosine(probe.Embedding, enrolled))
	verified := similarity >= threshold

	status := models.StatusFailed
	matchedFaces := 0
	var matchedFaceID *uint
	var matchedFaceName *string
	if verified {
		status = models.StatusSuccess
		matchedFaces = 1
		matchedFaceID = &face.ID
		matchedFaceName = &face.Name
	}

	duration := time.Since(start).Milliseconds()
	if err := s.recorder.Record(id, status, matchedFaces, matchedFaceID, matchedFaceName, duration, ""); err != nil {
		return nil, err
	}

	observability.RecognitionAttempts.WithLabelValues("verify", status).Inc()
	s.publish(Event{
		Operation:   "verify",
		UserID:      id.UserID,
		Status:      status,
		MatchedName: face.Name,
		Similarity:  similarity,
		DurationMs:  duration,
	})

	return &VerifyResult{
		Verified:           verified,
		Similarity:         similarity,
		Threshold:          threshold,
		RegisteredFaceName: face.Name,
		Duration:           duration,
	}, nil
}

// Register extrahiert das Embedding und legt ein neues registriertes Gesicht
// an. Registrierungen werden nicht protokolliert; bei Extraktionsfehlern
// entsteht kein Datensatz und das Probenbild wird trotzdem bereinigt.
func (s *Service) Register(ctx context.Context, userID uint, imagePath, name string) (*models.EnrolledFace, error) {
	defer s.removeArtifact(imagePath)

	probe, err := s.extract(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	face := &models.EnrolledFace{
		UserID:     userID,
		Name:       name,
		Confidence: probe.Confidence,
		IsActive:   true,
	}
	if err := face.SetEmbedding(probe.Embedding); err != nil {
		return nil, err
	}

	if s.opts.RetainImages {
		retained, err := s.retainImage(imagePath)
		if err != nil {
			log.Warnf("Failed to retain registration image for '%s': %v", name, err)
		} else {
			face.ImagePath = retained
		}
	}

	if err := s.gallery.CreateFace(face); err != nil {
		return nil, fmt.Errorf("failed to persist enrolled face: %w", err)
	}

	log.Infof("Registered face '%s' (ID %d) for user %d with confidence %.4f",
		face.Name, face.ID, userID, face.Confidence)
	return face, nil
}

// RemoveFace löscht ein registriertes Gesicht endgültig, einschließlich des
// behaltenen Quellbildes, sofern vorhanden.
func (s *Service) RemoveFace(face *models.EnrolledFace) error {
	if face.ImagePath != "" {
		if err := os.Remove(face.ImagePath); err != nil && !os.IsNotExist(err) {
			log.Warnf("Failed to delete retained image '%s': %v", face.ImagePath, err)
		}
	}
	return s.gallery.DeleteFace(face.ID)
}

// extract ruft die Extraktionsgrenze auf und misst die Dauer
func (s *Service) extract(ctx context.Context, imagePath string) (*extractor.Result, error) {
	observability.ExtractionsInFlight.Inc()
	defer observability.ExtractionsInFlight.Dec()

	start := time.Now()
	result, err := s.extractor.Extract(ctx, imagePath)
	observability.ExtractionDuration.Observe(time.Since(start).Seconds())
	return result, err
}

// candidates lädt die aktive Galerie des Mandanten in Abgleich-Reihenfolge
func (s *Service) candidates(userID uint) ([]matching.Candidate, error) {
	faces, err := s.gallery.ListActiveFaces(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}

	candidates := make([]matching.Candidate, 0, len(faces))
	for i := range faces {
		vec, err := faces[i].EmbeddingVector()
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, matching.Candidate{
			FaceID:    faces[i].ID,
			Name:      faces[i].Name,
			Embedding: vec,
		})
	}
	return candidates, nil
}

// recordFailure protokolliert einen fehlgeschlagenen Versuch und reicht den
// ursprünglichen Fehler weiter. Schlägt auch das Protokollieren fehl, hat
// dieser Fehler Vorrang (fail-closed).
func (s *Service) recordFailure(id auth.Identity, operation string, start time.Time, cause error) error {
	duration := time.Since(start).Milliseconds()

	if recErr := s.recorder.Record(id, models.StatusError, 0, nil, nil, duration, cause.Error()); recErr != nil {
		log.Errorf("Failed to record %s failure: %v (original error: %v)", operation, recErr, cause)
		return recErr
	}

	observability.RecognitionAttempts.WithLabelValues(operation, models.StatusError).Inc()
	s.publish(Event{
		Operation:    operation,
		UserID:       id.UserID,
		Status:       models.StatusError,
		DurationMs:   duration,
		ErrorMessage: cause.Error(),
	})

	return cause
}

// removeArtifact löscht das hochgeladene Probenbild. Löschfehler werden
// protokolliert, lassen die Anfrage aber nie scheitern.
func (s *Service) removeArtifact(imagePath string) {
	if imagePath == "" {
		return
	}
	if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to delete uploaded artifact '%s': %v", imagePath, err)
	}
}

// retainImage kopiert das Probenbild in das Verzeichnis behaltener Bilder
func (s *Service) retainImage(imagePath string) (string, error) {
	src, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	target := filepath.Join(s.opts.RetainedDir, filepath.Base(imagePath))
	dst, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return target, nil
}

func (s *Service) publish(event Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishRecognition(event)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func bestSimilarity(b *BestMatch) float64 {
	if b == nil {
		return 0
	}
	return b.Similarity
}
