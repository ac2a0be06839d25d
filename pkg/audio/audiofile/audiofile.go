// Package audiofile decodes audio files into mono float waveforms at a
// requested sample rate.
//
// Supported containers are WAV (PCM 8/16/24/32-bit, IEEE float 32/64-bit,
// plain or WAVE_FORMAT_EXTENSIBLE) and MP3. The format is
// sniffed from the file header, falling back to the file extension.
// Multi-channel audio is downmixed to mono by averaging channels, optionally
// cut to a leading duration, then resampled.
//
// Every failure to produce at least one sample is reported as a
// [*DecodeError]; callers can match it with errors.As.
package audiofile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haivivi/deepscan/pkg/audio/resampler"
)

// Format identifies an audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Sentinel causes wrapped by DecodeError.
var (
	ErrEmpty       = errors.New("audiofile: no audio samples")
	ErrUnsupported = errors.New("audiofile: unsupported audio format")
)

// DecodeError reports that an audio source could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("audiofile: decode: %v", e.Err)
	}
	return fmt.Sprintf("audiofile: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Waveform is a mono signal with its sample rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the signal length.
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Options controls decoding.
type Options struct {
	// SampleRate is the output sample rate. Zero keeps the native rate.
	SampleRate int

	// MaxDuration limits decoding to the leading portion of the file.
	// Zero decodes everything.
	MaxDuration time.Duration
}

// Load decodes the audio file at path.
func Load(path string, opts Options) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	w, err := Decode(f, filepath.Ext(path), opts)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return w, nil
}

// Decode decodes audio from r. ext is an optional filename extension
// (".wav", ".mp3") consulted when the header is not recognized.
func Decode(r io.ReadSeeker, ext string, opts Options) (*Waveform, error) {
	format, err := sniff(r, ext)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var raw *pcm
	switch format {
	case FormatWAV:
		raw, err = decodeWAV(r, opts.MaxDuration)
	case FormatMP3:
		raw, err = decodeMP3(r, opts.MaxDuration)
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	if raw.format.Frames(len(raw.samples)) == 0 {
		return nil, &DecodeError{Err: ErrEmpty}
	}
	mono := resampler.Downmix(raw.samples, raw.format.Channels)
	if opts.MaxDuration > 0 {
		if n := raw.format.FramesIn(opts.MaxDuration); n < len(mono) {
			mono = mono[:n]
		}
	}
	if len(mono) == 0 {
		return nil, &DecodeError{Err: ErrEmpty}
	}

	rate := raw.format.SampleRate
	w := &Waveform{Samples: mono, SampleRate: rate}
	if opts.SampleRate > 0 && opts.SampleRate != rate {
		out, err := resampler.Resample(mono, rate, opts.SampleRate)
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		w = &Waveform{Samples: out, SampleRate: opts.SampleRate}
	}
	return w, nil
}

// pcm is interleaved, normalized decoder output.
type pcm struct {
	samples []float32
	format  resampler.Format
}

// sniff inspects the first bytes of r, then rewinds it.
func sniff(r io.ReadSeeker, ext string) (Format, error) {
	head := make([]byte, 12)
	n, err := io.ReadFull(r, head)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return FormatUnknown, serr
	}
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return FormatUnknown, ErrEmpty
		}
		return FormatUnknown, err
	}
	head = head[:n]

	switch {
	case n >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(head, []byte("ID3")):
		return FormatMP3, nil
	case n >= 2 && isMPEGAudioSync(head[0], head[1]):
		return FormatMP3, nil
	case n >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0:
		// ADTS AAC shares the frame sync but carries layer 0.
		return FormatUnknown, fmt.Errorf("%w: aac", ErrUnsupported)
	}

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav", "wave":
		return FormatWAV, nil
	case "mp3":
		return FormatMP3, nil
	}
	return FormatUnknown, ErrUnsupported
}

// isMPEGAudioSync reports whether b0 b1 start an MPEG audio frame header:
// 11 sync bits, a defined version and a non-reserved layer.
func isMPEGAudioSync(b0, b1 byte) bool {
	if b0 != 0xFF || b1&0xE0 != 0xE0 {
		return false
	}
	version := (b1 >> 3) & 0x03
	layer := (b1 >> 1) & 0x03
	return version != 0x01 && layer != 0x00
}
