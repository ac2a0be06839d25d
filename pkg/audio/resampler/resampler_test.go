package resampler

import (
	"math"
	"testing"
)

func TestNewInvalidRates(t *testing.T) {
	if _, err := New(0, 22050); err == nil {
		t.Fatal("expected error for zero source rate")
	}
	if _, err := New(44100, -1); err == nil {
		t.Fatal("expected error for negative target rate")
	}
}

func TestResamplePassthrough(t *testing.T) {
	in := []float32{0.1, 0.2, -0.3, 0.4}
	out, err := Resample(in, 22050, 22050)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	tests := []struct {
		src, dst int
		n        int
		want     int
	}{
		{44100, 22050, 44100, 22050},
		{16000, 22050, 16000, 22050},
		{48000, 22050, 1000, 460}, // ceil(459.375)
		{8000, 22050, 8000, 22050},
	}
	for _, tt := range tests {
		in := make([]float32, tt.n)
		for i := range in {
			in[i] = float32(0.5 * math.Sin(2*math.Pi*220*float64(i)/float64(tt.src)))
		}
		out, err := Resample(in, tt.src, tt.dst)
		if err != nil {
			t.Fatalf("%d->%d: %v", tt.src, tt.dst, err)
		}
		if len(out) != tt.want {
			t.Errorf("%d->%d: len = %d, want %d", tt.src, tt.dst, len(out), tt.want)
		}
		for i, v := range out {
			if v > 1 || v < -1 || math.IsNaN(float64(v)) {
				t.Fatalf("%d->%d: out[%d] = %v out of range", tt.src, tt.dst, i, v)
			}
		}
	}
}

func TestResamplePreservesSilence(t *testing.T) {
	out, err := Resample(make([]float32, 44100), 44100, 22050)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if math.Abs(float64(v)) > 1e-6 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestOutputLen(t *testing.T) {
	r, err := New(44100, 22050)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.OutputLen(3); got != 2 {
		t.Errorf("OutputLen(3) = %d, want 2", got)
	}
	if got := r.Ratio(); got != 0.5 {
		t.Errorf("Ratio() = %v, want 0.5", got)
	}
}
