// Package mfcc computes the clip-level cepstral feature vector the classifier
// was trained on: mel-frequency cepstral coefficients per frame, averaged over
// time. Defaults follow librosa (centered 2048-point frames, 512 hop, 128
// Slaney mel bands, 80 dB dynamic range, orthonormal DCT-II).
package mfcc

import (
	"fmt"
	"math"
	"sync"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrExtractionFailed is returned, wrapped with a reason, for waveforms that
// cannot be characterized. No partial vector accompanies it.
var ErrExtractionFailed = fmt.Errorf("mfcc: %w", domain.ErrExtractionFailed)

// SilenceFloor is the peak amplitude below which a waveform counts as
// digital silence.
const SilenceFloor = 1e-5

const amin = 1e-10

type Config struct {
	FFTSize      int
	HopLength    int
	NumMels      int
	NumCoeffs    int
	TopDB        float64
	SilenceFloor float64
}

func DefaultConfig() Config {
	return Config{
		FFTSize:      2048,
		HopLength:    512,
		NumMels:      128,
		NumCoeffs:    domain.FeatureLength,
		TopDB:        80,
		SilenceFloor: SilenceFloor,
	}
}

// Extractor is safe for concurrent use. Mel filter banks are built lazily
// per sample rate and never modified afterwards.
type Extractor struct {
	cfg    Config
	window []float64
	dct    *mat.Dense
	banks  sync.Map // sample rate -> *mat.Dense
}

func New(cfg Config) (*Extractor, error) {
	switch {
	case cfg.FFTSize < 2 || cfg.FFTSize%2 != 0:
		return nil, fmt.Errorf("mfcc: fft size must be even and positive, got %d", cfg.FFTSize)
	case cfg.HopLength < 1:
		return nil, fmt.Errorf("mfcc: hop length must be positive, got %d", cfg.HopLength)
	case cfg.NumMels < 1 || cfg.NumCoeffs < 1 || cfg.NumCoeffs > cfg.NumMels:
		return nil, fmt.Errorf("mfcc: need 0 < coefficients (%d) <= mel bands (%d)", cfg.NumCoeffs, cfg.NumMels)
	case cfg.TopDB < 0:
		return nil, fmt.Errorf("mfcc: top dB must not be negative")
	}
	return &Extractor{
		cfg:    cfg,
		window: hannWindow(cfg.FFTSize),
		dct:    dctMatrix(cfg.NumCoeffs, cfg.NumMels),
	}, nil
}

// NewDefault returns an Extractor with DefaultConfig.
func NewDefault() *Extractor {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Extract returns one mean coefficient per cepstral band.
func (e *Extractor) Extract(w domain.Waveform) (domain.FeatureVector, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	peak := 0.0
	for i, s := range w.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at %d", ErrExtractionFailed, i)
		}
		peak = math.Max(peak, math.Abs(s))
	}
	if peak < e.cfg.SilenceFloor {
		return nil, fmt.Errorf("%w: signal is silent (peak %.3g)", ErrExtractionFailed, peak)
	}

	bank := e.bank(w.SampleRate)
	frames := frameCount(len(w.Samples), e.cfg.HopLength)

	// Log-mel spectrogram, one row per frame.
	spec := mat.NewDense(frames, e.cfg.NumMels, nil)
	powerFrames(w.Samples, e.window, e.cfg.HopLength, func(t int, power []float64) {
		row := mat.NewVecDense(e.cfg.NumMels, spec.RawRowView(t))
		row.MulVec(bank, mat.NewVecDense(len(power), power))
	})

	raw := spec.RawMatrix().Data
	for i, v := range raw {
		raw[i] = 10 * math.Log10(math.Max(amin, v))
	}
	floor := floats.Max(raw) - e.cfg.TopDB
	for i, v := range raw {
		if v < floor {
			raw[i] = floor
		}
	}

	// The DCT is linear, so transforming the time-averaged spectrum equals
	// averaging the per-frame coefficients.
	mean := make([]float64, e.cfg.NumMels)
	for t := 0; t < frames; t++ {
		floats.Add(mean, spec.RawRowView(t))
	}
	floats.Scale(1/float64(frames), mean)

	out := make([]float64, e.cfg.NumCoeffs)
	mat.NewVecDense(e.cfg.NumCoeffs, out).MulVec(e.dct, mat.NewVecDense(e.cfg.NumMels, mean))

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrExtractionFailed, i)
		}
	}
	return domain.FeatureVector(out), nil
}

func (e *Extractor) bank(sampleRate int) *mat.Dense {
	if b, ok := e.banks.Load(sampleRate); ok {
		return b.(*mat.Dense)
	}
	b, _ := e.banks.LoadOrStore(sampleRate, melFilterBank(e.cfg.NumMels, e.cfg.FFTSize, sampleRate))
	return b.(*mat.Dense)
}
