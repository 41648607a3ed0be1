package mfcc

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"gonum.org/v1/gonum/mat"
)

func tone(freq, amp, seconds float64, rate int) domain.Waveform {
	n := int(seconds * float64(rate))
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return domain.Waveform{Samples: s, SampleRate: rate}
}

func TestMelScale(t *testing.T) {
	if got := hzToMel(1000); math.Abs(got-15) > 1e-12 {
		t.Fatalf("hzToMel(1000) = %f, want 15", got)
	}
	for _, hz := range []float64{0, 200, 999, 1000, 4000, 11025} {
		if back := melToHz(hzToMel(hz)); math.Abs(back-hz) > 1e-9 {
			t.Errorf("round trip %f -> %f", hz, back)
		}
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(128, 2048, domain.TargetSampleRate)
	r, c := bank.Dims()
	if r != 128 || c != 1025 {
		t.Fatalf("dims: got %dx%d", r, c)
	}
	for m := 0; m < r; m++ {
		row := bank.RawRowView(m)
		nonZero := false
		for _, v := range row {
			if v < 0 {
				t.Fatalf("filter %d has a negative weight", m)
			}
			if v > 0 {
				nonZero = true
			}
		}
		if !nonZero {
			t.Errorf("filter %d is all zeros", m)
		}
	}
}

func TestDCTMatrixIsOrthonormal(t *testing.T) {
	d := dctMatrix(8, 8)
	var prod mat.Dense
	prod.Mul(d, d.T())
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(prod.At(i, j)-want) > 1e-12 {
				t.Fatalf("D*D^T[%d][%d] = %f, want %f", i, j, prod.At(i, j), want)
			}
		}
	}
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(2048)
	if w[0] != 0 {
		t.Fatalf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[1024]-1) > 1e-12 {
		t.Fatalf("w[1024] = %f, want 1", w[1024])
	}
}

func TestExtract_LengthIsConstant(t *testing.T) {
	e := NewDefault()
	for _, seconds := range []float64{0.001, 0.1, 1, 3.7} {
		v, err := e.Extract(tone(440, 0.5, seconds, domain.TargetSampleRate))
		if err != nil {
			t.Fatalf("%.3fs: %v", seconds, err)
		}
		if err := v.Validate(); err != nil {
			t.Fatalf("%.3fs: %v (len %d)", seconds, err, len(v))
		}
		for i, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("%.3fs: coefficient %d not finite", seconds, i)
			}
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewDefault()
	w := tone(1200, 0.3, 1, domain.TargetSampleRate)
	first, err := e.Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := NewDefault().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("coefficient %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestExtract_DistinguishesSignals(t *testing.T) {
	e := NewDefault()
	low, err := e.Extract(tone(200, 0.5, 1, domain.TargetSampleRate))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	high, err := e.Extract(tone(5000, 0.5, 1, domain.TargetSampleRate))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	same := true
	for i := range low {
		if math.Abs(low[i]-high[i]) > 1e-6 {
			same = false
			break
		}
	}
	if same {
		t.Fatal("200 Hz and 5 kHz tones produced the same features")
	}
}

func TestExtract_GainOnlyMovesFirstCoefficient(t *testing.T) {
	e := NewDefault()
	quiet, err := e.Extract(tone(440, 0.25, 1, domain.TargetSampleRate))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	loud, err := e.Extract(tone(440, 0.5, 1, domain.TargetSampleRate))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Doubling amplitude adds 10*log10(4) dB to every mel band; only the DC
	// term of the orthonormal DCT sees a uniform shift.
	wantShift := 10 * math.Log10(4) * math.Sqrt(128)
	if got := loud[0] - quiet[0]; math.Abs(got-wantShift) > 1e-6 {
		t.Fatalf("c0 shift: got %f, want %f", got, wantShift)
	}
	for i := 1; i < len(loud); i++ {
		if math.Abs(loud[i]-quiet[i]) > 1e-6 {
			t.Fatalf("c%d changed with gain: %f vs %f", i, loud[i], quiet[i])
		}
	}
}

func TestExtract_Degenerate(t *testing.T) {
	e := NewDefault()
	tests := []struct {
		name string
		w    domain.Waveform
	}{
		{"empty", domain.Waveform{SampleRate: domain.TargetSampleRate}},
		{"zero rate", domain.Waveform{Samples: []float64{0.1, 0.2}}},
		{"silence", domain.Waveform{Samples: make([]float64, domain.TargetSampleRate), SampleRate: domain.TargetSampleRate}},
		{"below floor", tone(440, SilenceFloor/2, 1, domain.TargetSampleRate)},
		{"nan", domain.Waveform{Samples: []float64{0.1, math.NaN(), 0.2}, SampleRate: domain.TargetSampleRate}},
		{"inf", domain.Waveform{Samples: []float64{math.Inf(1)}, SampleRate: domain.TargetSampleRate}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := e.Extract(tc.w)
			if !errors.Is(err, ErrExtractionFailed) || !errors.Is(err, domain.ErrExtractionFailed) {
				t.Fatalf("expected ErrExtractionFailed, got %v", err)
			}
			if v != nil {
				t.Fatalf("expected no partial vector, got %d values", len(v))
			}
		})
	}
}

func TestExtract_ConcurrentSampleRates(t *testing.T) {
	e := NewDefault()
	rates := []int{8000, 16000, 22050, 44100}
	want := make([]domain.FeatureVector, len(rates))
	for i, r := range rates {
		v, err := NewDefault().Extract(tone(440, 0.5, 0.5, r))
		if err != nil {
			t.Fatalf("Extract at %d Hz: %v", r, err)
		}
		want[i] = v
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(rates)*4)
	for round := 0; round < 4; round++ {
		for i, r := range rates {
			wg.Add(1)
			go func(i, r int) {
				defer wg.Done()
				got, err := e.Extract(tone(440, 0.5, 0.5, r))
				if err != nil {
					errs <- err
					return
				}
				for j := range got {
					if got[j] != want[i][j] {
						errs <- errors.New("concurrent extraction diverged")
						return
					}
				}
			}(i, r)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []func(c *Config){
		func(c *Config) { c.FFTSize = 1023 },
		func(c *Config) { c.HopLength = 0 },
		func(c *Config) { c.NumCoeffs = 200 },
		func(c *Config) { c.TopDB = -1 },
	}
	for i, mutate := range tests {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
