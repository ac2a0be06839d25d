package mfcc

import "math"

// Slaney mel scale constants: linear below 1 kHz, logarithmic above.
const (
	slaneyFSp       = 200.0 / 3
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSp
)

var slaneyLogStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64, htk bool) float64 {
	if htk {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	if hz >= slaneyMinLogHz {
		return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
	}
	return hz / slaneyFSp
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64, htk bool) float64 {
	if htk {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}
	if mel >= slaneyMinLogMel {
		return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
	}
	return slaneyFSp * mel
}

// melFilterBank creates the area-normalized triangular mel filterbank.
// Returns [numMels][fftSize/2+1].
//
// Filter edges are placed at exact frequencies rather than rounded FFT bins,
// and each filter is scaled by 2/(right-left) so all filters have equal area.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64, htk bool) [][]float64 {
	halfFFT := fftSize/2 + 1

	fftFreqs := make([]float64, halfFFT)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	// numMels + 2 equally spaced mel points, back in Hz
	lowMel := hzToMel(lowFreq, htk)
	highMel := hzToMel(highFreq, htk)
	edges := make([]float64, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range edges {
		edges[i] = melToHz(lowMel+float64(i)*step, htk)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (right - left)

		filter := make([]float64, halfFFT)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Min(lower, upper)
			if w > 0 {
				filter[k] = w * enorm
			}
		}
		bank[m] = filter
	}
	return bank
}
