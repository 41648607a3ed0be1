package mfcc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// dctMatrix returns the first numCoeffs rows of the orthonormal DCT-II basis
// of size n, so that basis * x transforms a length-n column x.
func dctMatrix(numCoeffs, n int) *mat.Dense {
	basis := mat.NewDense(numCoeffs, n, nil)
	first := math.Sqrt(1 / float64(n))
	rest := math.Sqrt(2 / float64(n))
	for k := 0; k < numCoeffs; k++ {
		scale := rest
		if k == 0 {
			scale = first
		}
		for i := 0; i < n; i++ {
			basis.Set(k, i, scale*math.Cos(math.Pi*float64(k)*float64(2*i+1)/float64(2*n)))
		}
	}
	return basis
}
