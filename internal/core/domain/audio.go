package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// TargetSampleRate is the canonical rate every waveform is resampled to.
const TargetSampleRate = 22050

// FeatureLength is the number of cepstral bands in a FeatureVector.
const FeatureLength = 50

var (
	ErrEmptyWaveform     = errors.New("domain: waveform has no samples")
	ErrInvalidSampleRate = errors.New("domain: sample rate must be positive")
	ErrFeatureLength     = errors.New("domain: feature vector has wrong length")
)

// Format is the container tag declared for (or sniffed from) an upload.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatWebM    Format = "webm"
	FormatUnknown Format = "unknown"
)

// FormatFromName guesses the declared format from a filename or MIME type.
func FormatFromName(filename, contentType string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "wav", "wave":
		return FormatWAV
	case "mp3":
		return FormatMP3
	case "ogg", "oga":
		return FormatOGG
	case "webm", "weba":
		return FormatWebM
	}

	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return FormatWAV
	case "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "audio/ogg", "application/ogg":
		return FormatOGG
	case "audio/webm", "video/webm":
		return FormatWebM
	}
	return FormatUnknown
}

// AudioClip is an uploaded payload as received from the client.
type AudioClip struct {
	Filename string
	Format   Format
	Data     []byte
}

// Waveform is decoded mono audio.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Validate checks the waveform invariants.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if len(w.Samples) == 0 {
		return ErrEmptyWaveform
	}
	return nil
}

// Duration returns the clip length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// FeatureVector holds one time-averaged value per cepstral band.
type FeatureVector []float64

// Validate checks that the vector has exactly FeatureLength entries.
func (v FeatureVector) Validate() error {
	if len(v) != FeatureLength {
		return ErrFeatureLength
	}
	return nil
}

// ClassificationResult is the terminal artifact of a pipeline run.
type ClassificationResult struct {
	Label      string
	ClassIndex int
	Confidence float64
	Scores     map[string]float64 // optional per-class probabilities
}
