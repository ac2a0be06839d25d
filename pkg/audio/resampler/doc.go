// Package resampler converts mono float audio between sample rates using a
// pure Go polyphase resampler (no CGO dependencies).
//
// It supports:
//   - Sample rate conversion (e.g., 44100Hz to 22050Hz)
//   - Channel downmixing of interleaved frames to mono
//   - One-shot conversion of whole buffers and incremental Process calls
//
// Samples are float values normalized to [-1, 1]. The output length of a
// one-shot conversion is ceil(n * dstRate / srcRate).
//
// Example usage:
//
//	mono := resampler.Downmix(interleaved, 2)
//	out, err := resampler.Resample(mono, 44100, 22050)
//	if err != nil {
//	    log.Fatal(err)
//	}
package resampler
