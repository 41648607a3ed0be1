package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	canonicalBitDepth   = 16
)

// errNeedsTranscoder marks containers that parsed but carry a codec with no
// native decoder here.
var errNeedsTranscoder = errors.New("codec needs an external transcoder")

// pcm16 is interleaved 16-bit audio.
type pcm16 struct {
	data       []int
	channels   int
	sampleRate int
}

func decodeWAV(data []byte) (pcm16, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return pcm16{}, fmt.Errorf("read wav header: %v: %w", err, domain.ErrUnsupportedFormat)
	}
	switch {
	case d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible:
		return pcm16{}, fmt.Errorf("wav audio format %d: %w", d.WavAudioFormat, errNeedsTranscoder)
	case d.NumChans < 1 || d.SampleRate == 0:
		return pcm16{}, fmt.Errorf("wav header has %d channels at %d Hz: %w", d.NumChans, d.SampleRate, domain.ErrDecodeFailure)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return pcm16{}, fmt.Errorf("read wav samples: %v: %w", err, domain.ErrDecodeFailure)
	}
	out := pcm16{
		data:       make([]int, len(buf.Data)),
		channels:   int(d.NumChans),
		sampleRate: int(d.SampleRate),
	}
	for i, v := range buf.Data {
		out.data[i] = to16(v, buf.SourceBitDepth)
	}
	return out, nil
}

// to16 rescales a go-audio sample of the given depth to signed 16-bit.
// 8-bit WAV samples are unsigned.
func to16(v, depth int) int {
	switch depth {
	case 8:
		return (v - 128) << 8
	case 24:
		return v >> 8
	case 32:
		return v >> 16
	default:
		return v
	}
}

func decodeMP3(data []byte) (pcm16, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return pcm16{}, fmt.Errorf("open mp3: %v: %w", err, domain.ErrDecodeFailure)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return pcm16{}, fmt.Errorf("read mp3: %v: %w", err, domain.ErrDecodeFailure)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	out := pcm16{data: make([]int, len(raw)/2), channels: 2, sampleRate: d.SampleRate()}
	for i := range out.data {
		out.data[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return out, nil
}

func decodeOGG(data []byte) (pcm16, error) {
	if isOpus(data) {
		return pcm16{}, fmt.Errorf("ogg/opus: %w", errNeedsTranscoder)
	}
	r, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return pcm16{}, fmt.Errorf("open ogg vorbis: %v: %w", err, domain.ErrDecodeFailure)
	}

	out := pcm16{channels: r.Channels(), sampleRate: r.SampleRate()}
	chunk := make([]float32, 16384)
	for {
		n, err := r.Read(chunk)
		for _, s := range chunk[:n] {
			out.data = append(out.data, floatTo16(float64(s)))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return pcm16{}, fmt.Errorf("read ogg vorbis: %v: %w", err, domain.ErrDecodeFailure)
		}
	}
	return out, nil
}

func floatTo16(s float64) int {
	v := math.Round(s * 32767)
	return int(math.Max(-32768, math.Min(32767, v)))
}

// writeCanonical encodes p as a 16-bit PCM WAV file at path.
func writeCanonical(path string, p pcm16) error {
	if len(p.data) < p.channels || p.channels < 1 {
		return fmt.Errorf("no audio frames: %w", domain.ErrDecodeFailure)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create canonical wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, p.sampleRate, canonicalBitDepth, p.channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: p.channels, SampleRate: p.sampleRate},
		Data:           p.data,
		SourceBitDepth: canonicalBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode canonical wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize canonical wav: %w", err)
	}
	return nil
}
