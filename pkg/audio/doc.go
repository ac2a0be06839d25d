// Package audio is the umbrella for the audio front end of the detector.
//
//   - audiofile: decode WAV and MP3 files to mono float samples
//   - resampler: sample rate conversion and channel downmixing
//   - mfcc: log-mel spectrogram and MFCC feature extraction
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/deepscan/pkg/audio/audiofile"
//	    "github.com/haivivi/deepscan/pkg/audio/mfcc"
//	)
//
//	wave, err := audiofile.Load("clip.wav", audiofile.Options{SampleRate: 22050})
//	if err != nil {
//	    return err
//	}
//	ext, _ := mfcc.New(mfcc.DefaultConfig())
//	frames, err := ext.Extract(wave.Samples)
package audio
