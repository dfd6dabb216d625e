package embedding

import (
	"math"
	"testing"
)

func TestNormalizeUnitNorm(t *testing.T) {
	vec := Normalize([]float32{3, 4})

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("squared norm = %f, want 1.0", norm)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", vec)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := Normalize([]float32{0, 0, 0})
	for _, x := range vec {
		if x != 0 {
			t.Fatalf("zero vector changed: %v", vec)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamped to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"mismatched lengths", []float32{1, 0}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityUnnormalizedInputs(t *testing.T) {
	// Scale must not change the similarity.
	got := CosineSimilarity([]float32{2, 0}, []float32{5, 0})
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("got %f, want 1.0 regardless of magnitude", got)
	}
}
