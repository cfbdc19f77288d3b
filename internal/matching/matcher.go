// Package matching implements the pure similarity scoring used to compare a
// probe embedding against a tenant's gallery. It performs no I/O.
package matching

import (
	"fmt"
	"math"
)

// Candidate is one gallery entry offered to the matcher.
type Candidate struct {
	FaceID    uint
	Name      string
	Embedding []float64
}

// Match is a gallery entry that crossed the threshold.
type Match struct {
	FaceID     uint
	Name       string
	Similarity float64
}

// Cosine returns the cosine similarity of two equal-length vectors,
// in the range [-1, 1]. A length mismatch is a caller bug and panics;
// a zero vector yields similarity 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("matching: embedding length mismatch (%d vs %d)", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindBestMatch scores the probe against every gallery candidate. An entry
// matches when its similarity is at or above the threshold. The best match is
// the matching entry with the strictly greatest similarity; on equal
// similarity the earlier entry in gallery order wins. Gallery order is the
// caller's slice order, which the stores keep stable (ascending face ID).
func FindBestMatch(probe []float64, gallery []Candidate, threshold float64) (best *Match, totalMatches int) {
	for _, cand := range gallery {
		sim := Cosine(probe, cand.Embedding)
		if sim < threshold {
			continue
		}

		totalMatches++
		if best == nil || sim > best.Similarity {
			best = &Match{
				FaceID:     cand.FaceID,
				Name:       cand.Name,
				Similarity: sim,
			}
		}
	}
	return best, totalMatches
}

// Round4 rounds a similarity to the 4 decimal digits reported externally.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
