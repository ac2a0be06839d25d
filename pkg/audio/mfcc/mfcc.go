// Package mfcc computes Mel-Frequency Cepstral Coefficients from mono audio.
//
// The pipeline per analysis frame is:
//
//	(optional pre-emphasis) → Hann window → |FFT|² → mel filterbank
//	→ power-to-dB (top_db clipping) → orthonormal DCT-II → first N coefficients
//
// Default parameters reproduce the common librosa defaults, so models trained
// on librosa MFCCs can consume the output directly:
//
//	SampleRate:  22050
//	FFTSize:     2048 (~93 ms)
//	HopSize:     512  (~23 ms)
//	NumMels:     128
//	NumCoeffs:   40
//	LowFreq:     0
//	HighFreq:    SampleRate/2
//	TopDB:       80
//	Center:      true (frames are centered; the signal is zero-padded by FFTSize/2)
//
// With Center enabled, a signal of n samples produces 1 + n/HopSize frames.
// The output is time-major: [T][NumCoeffs].
package mfcc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls MFCC extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 22050)
	FFTSize     int     // FFT and window length in samples, power of two (default 2048)
	HopSize     int     // hop length in samples (default 512)
	NumMels     int     // number of mel bands (default 128)
	NumCoeffs   int     // number of cepstral coefficients kept (default 40)
	LowFreq     float64 // lowest mel frequency (default 0)
	HighFreq    float64 // highest mel frequency; 0 means SampleRate/2
	PreEmphasis float64 // pre-emphasis coefficient; 0 disables (default 0)
	TopDB       float64 // dynamic range below the peak kept in dB; 0 disables (default 80)
	Center      bool    // center frames by zero-padding FFTSize/2 on both sides (default true)
	HTK         bool    // use the HTK mel formula instead of Slaney (default false)
}

// DefaultConfig returns the librosa-compatible configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		FFTSize:    2048,
		HopSize:    512,
		NumMels:    128,
		NumCoeffs:  40,
		TopDB:      80,
		Center:     true,
	}
}

const (
	// amin is the power floor applied before taking the logarithm.
	amin = 1e-10
)

// Extractor computes MFCC features from PCM samples.
//
// An Extractor only holds read-only tables and is safe for concurrent use;
// every Extract call allocates its own working buffers.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	dct     [][]float64
}

// New creates a new MFCC Extractor with the given config.
func New(cfg Config) (*Extractor, error) {
	if cfg.HighFreq == 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq, cfg.HTK),
		dct:     dctMatrix(cfg.NumCoeffs, cfg.NumMels),
	}, nil
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("mfcc: invalid sample rate %d", c.SampleRate)
	case c.FFTSize <= 0 || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("mfcc: FFT size %d is not a power of two", c.FFTSize)
	case c.HopSize <= 0:
		return fmt.Errorf("mfcc: invalid hop size %d", c.HopSize)
	case c.NumMels <= 0:
		return fmt.Errorf("mfcc: invalid mel band count %d", c.NumMels)
	case c.NumCoeffs <= 0 || c.NumCoeffs > c.NumMels:
		return fmt.Errorf("mfcc: coefficient count %d must be in [1, %d]", c.NumCoeffs, c.NumMels)
	case c.LowFreq < 0 || c.HighFreq <= c.LowFreq:
		return fmt.Errorf("mfcc: invalid frequency range [%g, %g]", c.LowFreq, c.HighFreq)
	}
	return nil
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// ErrTooShort is returned when the signal cannot fill a single frame.
var ErrTooShort = errors.New("mfcc: signal too short for one frame")

// NumFrames returns the number of frames Extract produces for n samples.
func (e *Extractor) NumFrames(n int) int {
	if e.cfg.Center {
		return 1 + n/e.cfg.HopSize
	}
	if n < e.cfg.FFTSize {
		return 0
	}
	return (n-e.cfg.FFTSize)/e.cfg.HopSize + 1
}

// Extract computes MFCCs from PCM float32 samples.
// Input: pcm is normalized mono audio (range [-1, 1]) at cfg.SampleRate.
// Output: [T][NumCoeffs] float32 matrix, T = NumFrames(len(pcm)).
func (e *Extractor) Extract(pcm []float32) ([][]float32, error) {
	if len(pcm) == 0 {
		return nil, ErrTooShort
	}
	logMel, err := e.LogMel(pcm)
	if err != nil {
		return nil, err
	}

	features := make([][]float32, len(logMel))
	for t, bands := range logMel {
		coeffs := make([]float32, e.cfg.NumCoeffs)
		for k, basis := range e.dct {
			sum := 0.0
			for m, b := range basis {
				sum += b * bands[m]
			}
			coeffs[k] = float32(sum)
		}
		features[t] = coeffs
	}
	return features, nil
}

// LogMel computes the dB-scaled mel power spectrogram: [T][NumMels].
func (e *Extractor) LogMel(pcm []float32) ([][]float64, error) {
	cfg := e.cfg
	signal := e.prepare(pcm)

	numFrames := 0
	if len(signal) >= cfg.FFTSize {
		numFrames = (len(signal)-cfg.FFTSize)/cfg.HopSize + 1
	}
	if numFrames == 0 {
		return nil, ErrTooShort
	}

	nfft := cfg.FFTSize
	halfFFT := nfft/2 + 1
	fft := fourier.NewFFT(nfft)

	// Working buffers
	frame := make([]float64, nfft)
	coeffs := make([]complex128, halfFFT)
	power := make([]float64, halfFFT)

	melSpec := make([][]float64, numFrames)
	peak := math.Inf(-1)
	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize
		for i := 0; i < nfft; i++ {
			frame[i] = signal[start+i] * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		bands := make([]float64, cfg.NumMels)
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += w * power[k]
				}
			}
			db := 10 * math.Log10(math.Max(sum, amin))
			bands[m] = db
			if db > peak {
				peak = db
			}
		}
		melSpec[t] = bands
	}

	if cfg.TopDB > 0 {
		floor := peak - cfg.TopDB
		for _, bands := range melSpec {
			for m, v := range bands {
				if v < floor {
					bands[m] = floor
				}
			}
		}
	}
	return melSpec, nil
}

// prepare converts pcm to float64, applies pre-emphasis, and pads for
// centered framing.
func (e *Extractor) prepare(pcm []float32) []float64 {
	pad := 0
	if e.cfg.Center {
		pad = e.cfg.FFTSize / 2
	}
	signal := make([]float64, len(pcm)+2*pad)
	for i, s := range pcm {
		v := float64(s)
		if e.cfg.PreEmphasis != 0 && i > 0 {
			v -= e.cfg.PreEmphasis * float64(pcm[i-1])
		}
		signal[pad+i] = v
	}
	return signal
}
