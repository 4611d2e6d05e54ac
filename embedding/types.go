package embedding

// Vector is a fixed-length voice-identity embedding for one utterance.
type Vector []float64

// Dim returns the vector's dimensionality.
func (v Vector) Dim() int { return len(v) }

// EmbedRequest holds parameters for an embedding call.
type EmbedRequest struct {
	// AudioPath is the path to a canonical mono 16 kHz 16-bit PCM WAV file.
	AudioPath string `json:"audio_path"`
}

// EmbedResponse holds the result of an embedding call.
type EmbedResponse struct {
	// Embedding is the extracted voice-identity vector.
	Embedding Vector `json:"embedding"`
}
