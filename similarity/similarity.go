// Package similarity decides whether two voice-identity embeddings belong to
// the same speaker. The computation is pure and deterministic: cosine
// similarity against a configured threshold.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/skillsenselab/voiceid/embedding"
)

// ErrDimensionMismatch indicates the two vectors cannot be compared. Vectors
// are never truncated or padded to force a comparison.
var ErrDimensionMismatch = errors.New("similarity: embedding dimensions differ")

// ErrZeroVector indicates a malformed embedding with no magnitude. Cosine
// similarity is undefined for it; failing beats silently reporting 0 or NaN.
var ErrZeroVector = errors.New("similarity: zero-magnitude embedding")

// Verdict is the outcome of comparing two embeddings.
type Verdict struct {
	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64 `json:"similarity"`
	// IsMatch is true when Similarity exceeds Threshold.
	IsMatch bool `json:"isMatch"`
	// Threshold is the threshold that was actually applied.
	Threshold float64 `json:"threshold"`
}

// Decide computes the cosine similarity of a and b and applies threshold.
// The decision rule is strictly exclusive: similarity must exceed the
// threshold, equality is not a match.
func Decide(a, b embedding.Vector, threshold float64) (*Verdict, error) {
	if a.Dim() != b.Dim() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Dim(), b.Dim())
	}
	if a.Dim() == 0 {
		return nil, fmt.Errorf("%w: empty vectors", ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return nil, ErrZeroVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Floating-point rounding can push the ratio slightly outside [-1, 1].
	sim = math.Max(-1, math.Min(1, sim))

	return &Verdict{
		Similarity: sim,
		IsMatch:    sim > threshold,
		Threshold:  threshold,
	}, nil
}
