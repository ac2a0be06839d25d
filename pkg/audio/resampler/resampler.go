package resampler

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float audio from one sample rate to another.
// Process may be called repeatedly with consecutive blocks of one signal.
// A Resampler is not meant to be shared between signals; create one per
// conversion.
type Resampler struct {
	srcRate int
	dstRate int

	mu        sync.Mutex
	resampler resampling.Resampler
}

// New creates a Resampler from srcRate to dstRate. When the rates are equal
// the Resampler passes samples through unchanged.
func New(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return r, nil
	}

	config := &resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	var err error
	r.resampler, err = resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	return r, nil
}

// Ratio returns dstRate / srcRate.
func (r *Resampler) Ratio() float64 {
	return float64(r.dstRate) / float64(r.srcRate)
}

// Process resamples one block of samples. The returned slice may be shorter
// than len(in)*Ratio() while the filter is still filling.
func (r *Resampler) Process(in []float64) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resampler == nil {
		out := make([]float64, len(in))
		copy(out, in)
		return out, nil
	}
	out, err := r.resampler.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return out, nil
}

// OutputLen returns the number of samples a one-shot conversion of n input
// samples yields.
func (r *Resampler) OutputLen(n int) int {
	if r.srcRate == r.dstRate {
		return n
	}
	return int(math.Ceil(float64(n) * r.Ratio()))
}

// Resample converts a whole mono signal from srcRate to dstRate. The result
// has exactly ceil(len(samples)*dstRate/srcRate) samples; the filter tail is
// drained with silence and output is clamped to [-1, 1].
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	r, err := New(srcRate, dstRate)
	if err != nil {
		return nil, err
	}
	if srcRate == dstRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	want := r.OutputLen(len(samples))
	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := r.Process(input)
	if err != nil {
		return nil, err
	}

	// Push silence through until the filter delay is flushed.
	drain := make([]float64, max(r.srcRate/10, 64))
	for tries := 0; len(output) < want && tries < 16; tries++ {
		tail, err := r.Process(drain)
		if err != nil {
			return nil, err
		}
		output = append(output, tail...)
	}

	out := make([]float32, want)
	for i := 0; i < want && i < len(output); i++ {
		s := output[i]
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = float32(s)
	}
	return out, nil
}
