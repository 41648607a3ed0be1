// Package ingest turns uploaded audio into the canonical waveform used for
// feature extraction: mono, float samples, resampled to a fixed rate.
//
// Every run works inside its own temporary directory. The upload is written
// there, re-encoded into a canonical 16-bit PCM WAV file and decoded back.
// The directory is removed before Ingest returns, whatever the outcome.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/sirupsen/logrus"
)

const canonicalName = "canonical.wav"

type Config struct {
	// TempDir is where per-run workspaces are created. Empty means os.TempDir.
	TempDir string
	// FFmpegBin enables the ffmpeg fallback for containers without a native
	// decoder (WebM, Ogg Opus, float WAV). Empty disables it.
	FFmpegBin string
	// TargetRate is the output sample rate. Zero means domain.TargetSampleRate.
	TargetRate int
}

// Ingestor is safe for concurrent use.
type Ingestor struct {
	cfg Config
}

func New(cfg Config) *Ingestor {
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = domain.TargetSampleRate
	}
	return &Ingestor{cfg: cfg}
}

// Ingest decodes clip into a mono waveform at the target rate. Failures wrap
// domain.ErrUnsupportedFormat or domain.ErrDecodeFailure.
func (i *Ingestor) Ingest(ctx context.Context, clip domain.AudioClip) (domain.Waveform, error) {
	if len(clip.Data) == 0 {
		return domain.Waveform{}, fmt.Errorf("ingest: empty upload: %w", domain.ErrUnsupportedFormat)
	}
	format := Sniff(clip.Data)
	if format == domain.FormatUnknown {
		return domain.Waveform{}, fmt.Errorf("ingest: unrecognized container (declared %q): %w", clip.Format, domain.ErrUnsupportedFormat)
	}

	ws, err := newWorkspace(i.cfg.TempDir)
	if err != nil {
		return domain.Waveform{}, err
	}
	log := logging.With(logging.CategoryIngest, logrus.Fields{
		"workspace": ws.id,
		"format":    format,
		"declared":  clip.Format,
		"bytes":     len(clip.Data),
	})
	defer func() {
		if err := ws.remove(); err != nil {
			log.WithError(err).Warn("workspace cleanup failed")
		}
	}()

	upload := ws.path("upload" + extension(format))
	if err := os.WriteFile(upload, clip.Data, 0o600); err != nil {
		return domain.Waveform{}, fmt.Errorf("ingest: write upload: %w", err)
	}

	canonical := ws.path(canonicalName)
	if err := i.transcode(ctx, format, clip.Data, upload, canonical); err != nil {
		return domain.Waveform{}, fmt.Errorf("ingest: %w", err)
	}

	mono, rate, err := readCanonical(canonical)
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("ingest: %w", err)
	}
	samples, err := resample(mono, rate, i.cfg.TargetRate)
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("ingest: %w", err)
	}

	w := domain.Waveform{Samples: samples, SampleRate: i.cfg.TargetRate}
	log.WithFields(logrus.Fields{"source_rate": rate, "seconds": w.Duration()}).Debug("clip decoded")
	return w, nil
}

// transcode writes the canonical WAV for an upload, using a native decoder
// where one exists and ffmpeg otherwise.
func (i *Ingestor) transcode(ctx context.Context, format domain.Format, data []byte, src, dst string) error {
	var (
		p   pcm16
		err error
	)
	switch format {
	case domain.FormatWAV:
		p, err = decodeWAV(data)
	case domain.FormatMP3:
		p, err = decodeMP3(data)
	case domain.FormatOGG:
		p, err = decodeOGG(data)
	default:
		err = fmt.Errorf("%s: %w", format, errNeedsTranscoder)
	}

	if errors.Is(err, errNeedsTranscoder) {
		if i.cfg.FFmpegBin == "" {
			return fmt.Errorf("%v and none is configured: %w", err, domain.ErrUnsupportedFormat)
		}
		if err := ffmpegToWAV(ctx, i.cfg.FFmpegBin, src, dst, i.cfg.TargetRate); err != nil {
			return fmt.Errorf("%v: %w", err, domain.ErrDecodeFailure)
		}
		return nil
	}
	if err != nil {
		return err
	}
	return writeCanonical(dst, p)
}
