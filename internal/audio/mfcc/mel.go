package mfcc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melBreakHz    = 1000.0
	melBreak      = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreak + math.Log(hz/melBreakHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melBreak {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreak))
}

// melFilterBank builds a (numMels, nfft/2+1) matrix of triangular filters
// spanning 0 Hz to Nyquist, each scaled to unit area.
func melFilterBank(numMels, nfft, sampleRate int) *mat.Dense {
	bins := nfft/2 + 1
	nyquist := float64(sampleRate) / 2

	lo, hi := hzToMel(0), hzToMel(nyquist)
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(numMels+1))
	}

	bank := mat.NewDense(numMels, bins, nil)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (right - left)
		for k := 0; k < bins; k++ {
			f := float64(k) * float64(sampleRate) / float64(nfft)
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			w := math.Min(rising, falling)
			if w > 0 {
				bank.Set(m, k, w*norm)
			}
		}
	}
	return bank
}
