package search

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch reports two vectors of different lengths. It marks a
// caller or data-integrity bug and is never retried or coerced.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity scores the directional similarity of a and b in [0, 1].
// Negative cosine clamps to 0 and a zero-magnitude vector on either side
// scores 0 without error. Deterministic, no shared state, safe for
// concurrent use.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Accumulated float error can push the ratio slightly past 1.
	if cos > 1 {
		cos = 1
	}
	if cos < 0 {
		cos = 0
	}
	return cos, nil
}
