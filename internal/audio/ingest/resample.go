package ingest

import (
	"fmt"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	resampling "github.com/tphakala/go-audio-resampling"
)

// resample converts mono samples from one rate to another. A fresh
// resampler is built per call because it carries filter state. The output
// holds round(len(samples)*to/from) samples.
func resample(samples []float64, from, to int) ([]float64, error) {
	if from == to {
		return samples, nil
	}
	want := resampledLen(len(samples), from, to)
	if want == 0 {
		return nil, fmt.Errorf("resample %d->%d Hz: %d samples is too short: %w", from, to, len(samples), domain.ErrDecodeFailure)
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler %d->%d Hz: %w", from, to, err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d Hz: %v: %w", from, to, err, domain.ErrDecodeFailure)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler %d->%d Hz: %v: %w", from, to, err, domain.ErrDecodeFailure)
	}
	out = append(out, tail...)

	if len(out) >= want {
		return out[:want], nil
	}
	return append(out, make([]float64, want-len(out))...), nil
}

// resampledLen is the sample count of n samples converted from one rate to
// another, rounded to nearest.
func resampledLen(n, from, to int) int {
	return int((int64(n)*int64(to) + int64(from)/2) / int64(from))
}
