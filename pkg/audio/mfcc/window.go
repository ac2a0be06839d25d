package mfcc

import "math"

// hannWindow generates a periodic Hann window of length n, the variant used
// for spectral analysis (the sample that would close the period is omitted).
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// dctMatrix returns the orthonormal DCT-II basis truncated to the first
// numCoeffs rows: [numCoeffs][n].
func dctMatrix(numCoeffs, n int) [][]float64 {
	basis := make([][]float64, numCoeffs)
	scale0 := math.Sqrt(1.0 / float64(n))
	scale := math.Sqrt(2.0 / float64(n))
	for k := range basis {
		row := make([]float64, n)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := range row {
			row[i] = s * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		basis[k] = row
	}
	return basis
}
