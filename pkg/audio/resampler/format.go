package resampler

import "time"

// Format describes a PCM layout: sample rate and interleaved channel count.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 22050, 44100).
	SampleRate int

	// Channels is the number of interleaved channels (1 mono, 2 stereo).
	Channels int
}

// Frames returns the number of frames held by n interleaved samples.
func (f Format) Frames(n int) int {
	if f.Channels <= 1 {
		return n
	}
	return n / f.Channels
}

// FramesIn returns the number of whole frames in d.
func (f Format) FramesIn(d time.Duration) int {
	if d <= 0 || f.SampleRate <= 0 {
		return 0
	}
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// SamplesIn returns the number of interleaved samples in d.
func (f Format) SamplesIn(d time.Duration) int {
	return f.FramesIn(d) * max(f.Channels, 1)
}

// Downmix averages interleaved frames into a mono signal. A trailing partial
// frame is dropped. channels <= 1 returns a copy of samples.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	numFrames := len(samples) / channels
	out := make([]float32, numFrames)
	for i := range numFrames {
		sum := float32(0)
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
