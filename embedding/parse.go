package embedding

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParseVector parses a caller-supplied textual embedding into a Vector. Only a
// flat JSON array of finite numbers is accepted; anything else is rejected.
// The input is never evaluated — this replaces the unrestricted expression
// evaluation an earlier revision of the service used for stored embeddings.
func ParseVector(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty vector")
	}
	if !strings.HasPrefix(s, "[") {
		return nil, fmt.Errorf("expected a JSON array of numbers")
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw []json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array of numbers: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after vector")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty vector")
	}

	vec := make(Vector, len(raw))
	for i, n := range raw {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("element %d is not a number: %w", i, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("element %d is not finite", i)
		}
		vec[i] = f
	}
	return vec, nil
}
