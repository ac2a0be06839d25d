package audiofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/haivivi/deepscan/pkg/audio/resampler"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

// wavGUIDTail is the suffix shared by every KSDATAFORMAT_SUBTYPE GUID whose
// first two bytes carry a plain format code.
var wavGUIDTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// wavReadFrames is the number of frames decoded per read.
const wavReadFrames = 4096

func decodeWAV(r io.ReadSeeker, maxDuration time.Duration) (*pcm, error) {
	encoding, err := wavEncoding(r)
	if err != nil {
		return nil, err
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("wav: invalid file header")
	}
	format := resampler.Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid format (%d channels, %d Hz)", format.Channels, format.SampleRate)
	}

	limit := -1
	if maxDuration > 0 {
		limit = format.SamplesIn(maxDuration)
	}

	depth := int(d.BitDepth)
	var samples []float32
	switch encoding {
	case wavFormatPCM:
		if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
			return nil, fmt.Errorf("%w: %d-bit pcm wav", ErrUnsupported, depth)
		}
		samples, err = readWAVInts(d, format, depth, limit)
	case wavFormatFloat:
		if depth != 32 && depth != 64 {
			return nil, fmt.Errorf("%w: %d-bit float wav", ErrUnsupported, depth)
		}
		samples, err = readWAVFloats(d, format, depth, limit)
	default:
		return nil, fmt.Errorf("%w: wav encoding 0x%04x", ErrUnsupported, encoding)
	}
	if err != nil {
		return nil, err
	}
	return &pcm{samples: samples, format: format}, nil
}

// wavEncoding returns the sample encoding named by the fmt chunk, resolving
// WAVE_FORMAT_EXTENSIBLE through its SubFormat GUID, then rewinds r.
func wavEncoding(r io.ReadSeeker) (uint16, error) {
	fmtChunk, err := readFmtChunk(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return 0, serr
	}
	if err != nil {
		return 0, err
	}
	if len(fmtChunk) < 16 {
		return 0, fmt.Errorf("wav: fmt chunk is %d bytes", len(fmtChunk))
	}

	code := binary.LittleEndian.Uint16(fmtChunk[0:2])
	if code != wavFormatExtensible {
		return code, nil
	}
	// cbSize, valid bits and channel mask precede the 16-byte SubFormat.
	if len(fmtChunk) < 40 {
		return 0, fmt.Errorf("%w: extensible wav without SubFormat", ErrUnsupported)
	}
	guid := fmtChunk[24:40]
	if !bytes.Equal(guid[2:], wavGUIDTail) {
		return 0, fmt.Errorf("%w: wav SubFormat %x", ErrUnsupported, guid)
	}
	return binary.LittleEndian.Uint16(guid[0:2]), nil
}

// readFmtChunk returns the raw body of the first "fmt " chunk.
func readFmtChunk(r io.Reader) ([]byte, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, errors.New("wav: invalid file header")
	}
	if p.Format != riff.WavFormatID {
		return nil, errors.New("wav: invalid file header")
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.New("wav: no fmt chunk")
			}
			return nil, fmt.Errorf("wav: %w", err)
		}
		if ch.ID == riff.FmtID {
			body := make([]byte, ch.Size)
			if _, err := io.ReadFull(ch, body); err != nil {
				return nil, fmt.Errorf("wav: fmt chunk: %w", err)
			}
			return body, nil
		}
		ch.Drain()
	}
}

func readWAVInts(d *wav.Decoder, format resampler.Format, depth, limit int) ([]float32, error) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:   make([]int, wavReadFrames*format.Channels),
	}
	var ints []int
	for limit < 0 || len(ints) < limit {
		n, err := d.PCMBuffer(buf)
		if n > 0 {
			ints = append(ints, buf.Data[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("wav: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if limit >= 0 && len(ints) > limit {
		ints = ints[:limit]
	}

	samples := make([]float32, len(ints))
	if depth == 8 {
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i, v := range ints {
			samples[i] = float32(v-128) / 128
		}
		return samples, nil
	}
	scale := float32(int64(1) << (depth - 1))
	for i, v := range ints {
		samples[i] = float32(v) / scale
	}
	return samples, nil
}

// readWAVFloats reads little-endian IEEE float samples straight from the
// data chunk. The decoder only understands integer PCM.
func readWAVFloats(d *wav.Decoder, format resampler.Format, depth, limit int) ([]float32, error) {
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if d.PCMChunk == nil {
		return nil, fmt.Errorf("wav: %w", wav.ErrPCMChunkNotFound)
	}

	width := depth / 8
	buf := make([]byte, wavReadFrames*format.Channels*width)
	var samples []float32
	for limit < 0 || len(samples) < limit {
		n, err := io.ReadFull(d.PCMChunk.R, buf)
		for i := 0; i+width <= n; i += width {
			if width == 4 {
				samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
			} else {
				samples = append(samples, float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("wav: %w", err)
		}
	}
	if limit >= 0 && len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}
