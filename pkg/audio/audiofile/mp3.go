package audiofile

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/haivivi/deepscan/pkg/audio/resampler"
)

// go-mp3 always emits 16-bit little-endian stereo frames.
const (
	mp3Channels   = 2
	mp3FrameBytes = 4
)

func decodeMP3(r io.Reader, maxDuration time.Duration) (*pcm, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	rate := d.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("mp3: invalid sample rate %d", rate)
	}

	format := resampler.Format{SampleRate: rate, Channels: mp3Channels}
	limit := -1
	if maxDuration > 0 {
		limit = format.FramesIn(maxDuration) * mp3FrameBytes
	}

	var data []byte
	tmp := make([]byte, 8192)
	for limit < 0 || len(data) < limit {
		n, err := d.Read(tmp)
		if n > 0 {
			data = append(data, tmp[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3: %w", err)
		}
	}
	if limit >= 0 && len(data) > limit {
		data = data[:limit]
	}
	data = data[:len(data)/mp3FrameBytes*mp3FrameBytes]

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return &pcm{samples: samples, format: format}, nil
}
