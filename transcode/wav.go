package transcode

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// VerifyCanonical checks that the WAV file at path satisfies the canonical
// waveform invariant (mono, 16 kHz, 16-bit PCM). A file that fails the check
// must be treated as a transcode failure, not handed to the extractor.
func VerifyCanonical(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return fmt.Errorf("read wav header: %w", err)
	}
	if !d.IsValidFile() {
		return fmt.Errorf("output is not a valid wav file")
	}
	if int(d.NumChans) != CanonicalChannels {
		return fmt.Errorf("expected %d channel(s), got %d", CanonicalChannels, d.NumChans)
	}
	if int(d.SampleRate) != CanonicalSampleRate {
		return fmt.Errorf("expected %d Hz, got %d", CanonicalSampleRate, d.SampleRate)
	}
	if int(d.BitDepth) != CanonicalBitDepth {
		return fmt.Errorf("expected %d-bit samples, got %d", CanonicalBitDepth, d.BitDepth)
	}
	return nil
}
