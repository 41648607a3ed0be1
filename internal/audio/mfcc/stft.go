package mfcc

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow is the periodic Hann window used for spectral analysis.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// frameCount is the number of centered frames for a signal of the given
// length.
func frameCount(samples, hop int) int {
	return 1 + samples/hop
}

// powerFrames calls fn with the power spectrum of each centered frame. The
// signal is zero-padded by nfft/2 on both sides. The slice passed to fn is
// reused between calls.
func powerFrames(samples, window []float64, hop int, fn func(t int, power []float64)) {
	nfft := len(window)
	half := nfft / 2
	fft := fourier.NewFFT(nfft)

	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([]float64, nfft/2+1)

	frames := frameCount(len(samples), hop)
	for t := 0; t < frames; t++ {
		start := t*hop - half
		for i := range frame {
			pos := start + i
			if pos < 0 || pos >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = samples[pos] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			a := cmplx.Abs(c)
			power[k] = a * a
		}
		fn(t, power)
	}
}
