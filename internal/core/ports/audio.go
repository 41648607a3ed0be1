package ports

import (
	"context"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
)

// Ingestor turns an uploaded clip into a canonical mono waveform.
type Ingestor interface {
	Ingest(ctx context.Context, clip domain.AudioClip) (domain.Waveform, error)
}

// FeatureExtractor reduces a waveform to a fixed-length feature vector.
// Waveforms that cannot be characterized yield an error wrapping
// domain.ErrExtractionFailed and a nil vector.
type FeatureExtractor interface {
	Extract(w domain.Waveform) (domain.FeatureVector, error)
}

// Classifier maps a feature vector to a probability per class index.
type Classifier interface {
	Predict(v domain.FeatureVector) ([]float64, error)
	OutputSize() int
}

// LabelDecoder maps a class index back to the label used at training time.
type LabelDecoder interface {
	Decode(index int) (string, error)
	Classes() []string
}
