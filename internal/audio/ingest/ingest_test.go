package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// synthWAV encodes a sine tone with go-audio/wav and returns the file bytes.
func synthWAV(t *testing.T, rate, depth, channels int, freq, amp, seconds float64) []byte {
	t.Helper()
	frames := int(float64(rate) * seconds)
	full := float64(int(1) << (depth - 1))
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		s := int(math.Round(v * (full - 1)))
		if depth == 8 {
			s += 128
		}
		for c := 0; c < channels; c++ {
			data[i*channels+c] = s
		}
	}
	return encodeWAV(t, rate, depth, channels, data)
}

func encodeWAV(t *testing.T, rate, depth, channels int, data []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, rate, depth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: depth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return out
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read temp root: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("workspace left behind: %v", names)
	}
}

func peak(samples []float64) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(s))
	}
	return p
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want domain.Format
	}{
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), domain.FormatWAV},
		{"riff but not wave", []byte("RIFF\x24\x00\x00\x00AVI LIST"), domain.FormatUnknown},
		{"ogg", []byte("OggS\x00\x02"), domain.FormatOGG},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F}, domain.FormatWebM},
		{"mp3 id3", []byte("ID3\x03\x00"), domain.FormatMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, domain.FormatMP3},
		{"text", []byte("hello world"), domain.FormatUnknown},
		{"empty", nil, domain.FormatUnknown},
	}
	for _, tc := range tests {
		if got := Sniff(tc.data); got != tc.want {
			t.Errorf("%s: Sniff = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTo16(t *testing.T) {
	tests := []struct {
		v, depth, want int
	}{
		{128, 8, 0},
		{255, 8, 127 << 8},
		{0, 8, -32768},
		{-32768, 16, -32768},
		{8388607, 24, 32767},
		{-2147483648, 32, -32768},
	}
	for _, tc := range tests {
		if got := to16(tc.v, tc.depth); got != tc.want {
			t.Errorf("to16(%d, %d) = %d, want %d", tc.v, tc.depth, got, tc.want)
		}
	}
}

func TestIngest_WAVIsResampledAndDownmixed(t *testing.T) {
	root := t.TempDir()
	ing := New(Config{TempDir: root})

	clip := domain.AudioClip{
		Filename: "stereo.wav",
		Format:   domain.FormatWAV,
		Data:     synthWAV(t, 44100, 16, 2, 440, 0.5, 1),
	}
	w, err := ing.Ingest(context.Background(), clip)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if w.SampleRate != domain.TargetSampleRate {
		t.Fatalf("sample rate: got %d", w.SampleRate)
	}
	if d := w.Duration(); d < 0.9 || d > 1.05 {
		t.Fatalf("duration: got %.3fs, want about 1s", d)
	}
	if p := peak(w.Samples); math.Abs(p-0.5) > 0.05 {
		t.Fatalf("peak: got %.3f, want about 0.5", p)
	}
	assertNoWorkspaces(t, root)
}

func TestIngest_ResampledLengthMatchesDuration(t *testing.T) {
	tests := []struct {
		rate    int
		seconds float64
	}{
		{44100, 1},
		{16000, 0.5},
		{48000, 0.02},
		{8000, 0.01},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%dHz_%gs", tc.rate, tc.seconds), func(t *testing.T) {
			root := t.TempDir()
			ing := New(Config{TempDir: root})
			clip := domain.AudioClip{
				Filename: "tone.wav",
				Format:   domain.FormatWAV,
				Data:     synthWAV(t, tc.rate, 16, 1, 440, 0.5, tc.seconds),
			}
			w, err := ing.Ingest(context.Background(), clip)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			frames := int(float64(tc.rate) * tc.seconds)
			want := resampledLen(frames, tc.rate, domain.TargetSampleRate)
			if len(w.Samples) != want {
				t.Fatalf("samples: got %d, want %d", len(w.Samples), want)
			}
			assertNoWorkspaces(t, root)
		})
	}
}

func TestResample(t *testing.T) {
	tone := make([]float64, 4410)
	for i := range tone {
		tone[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}

	out, err := resample(tone, 44100, 22050)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out) != 2205 {
		t.Fatalf("samples: got %d, want 2205", len(out))
	}
	if p := peak(out[len(out)/2:]); p < 0.3 {
		t.Fatalf("second half peak: got %.3f, want about 0.5", p)
	}

	same, err := resample(tone, 22050, 22050)
	if err != nil || len(same) != len(tone) {
		t.Fatalf("identity resample: got %d samples, err %v", len(same), err)
	}

	if _, err := resample([]float64{0.1}, 48000, 8000); !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure for a too-short input, got %v", err)
	}
}

func TestIngest_WAVBitDepths(t *testing.T) {
	for _, depth := range []int{8, 16, 24, 32} {
		t.Run(fmt.Sprintf("%dbit", depth), func(t *testing.T) {
			root := t.TempDir()
			ing := New(Config{TempDir: root})
			data := synthWAV(t, domain.TargetSampleRate, depth, 1, 1000, 0.25, 0.5)

			w, err := ing.Ingest(context.Background(), domain.AudioClip{Format: domain.FormatWAV, Data: data})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if len(w.Samples) != domain.TargetSampleRate/2 {
				t.Fatalf("no resampling expected at the target rate: got %d samples", len(w.Samples))
			}
			if p := peak(w.Samples); math.Abs(p-0.25) > 0.01 {
				t.Fatalf("peak: got %.4f, want about 0.25", p)
			}
			assertNoWorkspaces(t, root)
		})
	}
}

func TestIngest_SniffedFormatWinsOverDeclared(t *testing.T) {
	root := t.TempDir()
	ing := New(Config{TempDir: root})
	data := synthWAV(t, domain.TargetSampleRate, 16, 1, 300, 0.3, 0.25)

	if _, err := ing.Ingest(context.Background(), domain.AudioClip{Format: domain.FormatWebM, Data: data}); err != nil {
		t.Fatalf("a WAV payload declared as webm should still decode: %v", err)
	}
	assertNoWorkspaces(t, root)
}

func TestIngest_Failures(t *testing.T) {
	header := synthWAV(t, domain.TargetSampleRate, 16, 1, 300, 0.3, 0.25)[:44]

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, domain.ErrUnsupportedFormat},
		{"text", []byte("definitely not audio"), domain.ErrUnsupportedFormat},
		{"webm without ffmpeg", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x02, 0x03}, domain.ErrUnsupportedFormat},
		{"opus without ffmpeg", append([]byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00"), []byte("OpusHead\x01\x02")...), domain.ErrUnsupportedFormat},
		{"wav without frames", header, domain.ErrDecodeFailure},
		{"corrupt ogg", []byte("OggS\x00\x02garbage-garbage-garbage"), domain.ErrDecodeFailure},
		{"corrupt mp3", append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...), domain.ErrDecodeFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			ing := New(Config{TempDir: root})
			w, err := ing.Ingest(context.Background(), domain.AudioClip{Data: tc.data})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(w.Samples) != 0 {
				t.Fatalf("failure returned %d samples", len(w.Samples))
			}
			assertNoWorkspaces(t, root)
		})
	}
}

func TestIngest_FFmpegFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffmpeg")
	}
	dir := t.TempDir()
	fixture := filepath.Join(dir, "converted.wav")
	if err := os.WriteFile(fixture, synthWAV(t, domain.TargetSampleRate, 16, 1, 500, 0.4, 0.5), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	script := filepath.Join(dir, "ffmpeg")
	body := "#!/bin/sh\nfor last; do :; done\ncp \"$SOUNDWATCH_FFMPEG_FIXTURE\" \"$last\"\n"
	if err := os.WriteFile(script, []byte(body), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv("SOUNDWATCH_FFMPEG_FIXTURE", fixture)

	root := t.TempDir()
	ing := New(Config{TempDir: root, FFmpegBin: script})
	webm := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x02, 0x03}

	w, err := ing.Ingest(context.Background(), domain.AudioClip{Filename: "blob.webm", Data: webm})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(w.Samples) != domain.TargetSampleRate/2 {
		t.Fatalf("samples: got %d", len(w.Samples))
	}
	assertNoWorkspaces(t, root)

	broken := New(Config{TempDir: root, FFmpegBin: filepath.Join(dir, "missing-ffmpeg")})
	if _, err := broken.Ingest(context.Background(), domain.AudioClip{Data: webm}); !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("missing binary: expected ErrDecodeFailure, got %v", err)
	}
	assertNoWorkspaces(t, root)
}

func TestIngest_ConcurrentRunsAreIsolated(t *testing.T) {
	root := t.TempDir()
	ing := New(Config{TempDir: root})
	amps := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}

	var wg sync.WaitGroup
	errs := make(chan error, len(amps))
	for _, amp := range amps {
		data := synthWAV(t, domain.TargetSampleRate, 16, 1, 440, amp, 0.5)
		wg.Add(1)
		go func(amp float64, data []byte) {
			defer wg.Done()
			w, err := ing.Ingest(context.Background(), domain.AudioClip{Format: domain.FormatWAV, Data: data})
			if err != nil {
				errs <- err
				return
			}
			if p := peak(w.Samples); math.Abs(p-amp) > 0.01 {
				errs <- fmt.Errorf("clip with amplitude %.1f came back with peak %.3f", amp, p)
			}
		}(amp, data)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assertNoWorkspaces(t, root)
}
