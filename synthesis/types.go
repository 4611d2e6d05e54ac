package synthesis

// SynthesisRequest holds parameters for a synthesis call.
type SynthesisRequest struct {
	// Text is the text to render as speech.
	Text string `json:"text"`
	// Voice selects the backend voice, if the backend supports several.
	Voice string `json:"voice,omitempty"`
	// Language is the language of the text (e.g. "en").
	Language string `json:"language,omitempty"`
}

// SynthesisResponse holds the result of a synthesis call.
type SynthesisResponse struct {
	// Audio is the rendered speech as a WAV byte stream.
	Audio []byte `json:"-"`
	// ContentType is the MIME type of Audio (normally "audio/wav").
	ContentType string `json:"content_type"`
}
