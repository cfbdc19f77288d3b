package matching

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"scaled", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosinePanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()
	Cosine([]float64{1, 2}, []float64{1, 2, 3})
}

func TestFindBestMatch(t *testing.T) {
	gallery := []Candidate{
		{FaceID: 1, Name: "alice", Embedding: []float64{1, 0, 0}},
		{FaceID: 2, Name: "bob", Embedding: []float64{0, 1, 0}},
		{FaceID: 3, Name: "carol", Embedding: []float64{0.9, 0.1, 0}},
	}

	probe := []float64{1, 0, 0}
	best, total := FindBestMatch(probe, gallery, 0.6)
	if best == nil {
		t.Fatal("expected a best match")
	}
	if best.FaceID != 1 || best.Name != "alice" {
		t.Errorf("best = %+v, want alice (ID 1)", best)
	}
	if total != 2 {
		t.Errorf("totalMatches = %d, want 2 (alice and carol)", total)
	}
}

func TestFindBestMatchNoMatch(t *testing.T) {
	gallery := []Candidate{
		{FaceID: 1, Name: "alice", Embedding: []float64{0, 1, 0}},
	}

	best, total := FindBestMatch([]float64{1, 0, 0}, gallery, 0.6)
	if best != nil {
		t.Errorf("best = %+v, want nil", best)
	}
	if total != 0 {
		t.Errorf("totalMatches = %d, want 0", total)
	}
}

func TestFindBestMatchEmptyGallery(t *testing.T) {
	best, total := FindBestMatch([]float64{1, 0}, nil, 0.6)
	if best != nil || total != 0 {
		t.Errorf("empty gallery: best = %v, total = %d, want nil, 0", best, total)
	}
}

func TestFindBestMatchTieKeepsEarlierEntry(t *testing.T) {
	// Beide Kandidaten sind exakt gleich ähnlich; der frühere Eintrag
	// in Galerie-Reihenfolge gewinnt.
	gallery := []Candidate{
		{FaceID: 5, Name: "first", Embedding: []float64{1, 0}},
		{FaceID: 9, Name: "second", Embedding: []float64{1, 0}},
	}

	best, total := FindBestMatch([]float64{1, 0}, gallery, 0.6)
	if best == nil {
		t.Fatal("expected a best match")
	}
	if best.FaceID != 5 {
		t.Errorf("best.FaceID = %d, want 5 (earlier entry wins ties)", best.FaceID)
	}
	if total != 2 {
		t.Errorf("totalMatches = %d, want 2", total)
	}
}

func TestFindBestMatchThresholdInclusive(t *testing.T) {
	gallery := []Candidate{
		{FaceID: 1, Name: "exact", Embedding: []float64{1, 0}},
	}

	// Ähnlichkeit exakt auf dem Schwellenwert zählt als Treffer
	best, total := FindBestMatch([]float64{1, 0}, gallery, 1.0)
	if best == nil || total != 1 {
		t.Errorf("similarity == threshold should match: best = %v, total = %d", best, total)
	}
}

func TestRound4(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.123456, 0.1235},
		{0.99999, 1},
		{-0.123449, -0.1234},
		{0, 0},
	}

	for _, tt := range tests {
		if got := Round4(tt.in); got != tt.want {
			t.Errorf("Round4(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
