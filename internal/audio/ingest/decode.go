package ingest

import (
	"fmt"
	"os"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/go-audio/wav"
)

// readCanonical decodes the canonical WAV into mono float samples in [-1, 1]
// by averaging channels.
func readCanonical(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open canonical wav: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("canonical wav is not readable: %v: %w", d.Err(), domain.ErrDecodeFailure)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read canonical wav: %v: %w", err, domain.ErrDecodeFailure)
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, fmt.Errorf("canonical wav has no frames: %w", domain.ErrDecodeFailure)
	}

	scale := 1.0 / float64(int(1)<<(buf.SourceBitDepth-1))
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) * scale
	}
	return mono, buf.Format.SampleRate, nil
}
