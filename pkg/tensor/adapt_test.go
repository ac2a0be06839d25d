package tensor

import (
	"testing"
)

// rowOf returns a view of row i of a [1, T, F] or [T, F] tensor.
func rowOf(x *Tensor, i int) []float32 {
	cols := x.Shape[len(x.Shape)-1]
	return x.Data[i*cols : (i+1)*cols]
}

// seqMatrix builds a [frames, coeffs] matrix where element (t, c) = t*100 + c + 1.
func seqMatrix(frames, coeffs int) *FeatureMatrix {
	rows := make([][]float32, frames)
	for t := range rows {
		row := make([]float32, coeffs)
		for c := range row {
			row[c] = float32(t*100 + c + 1)
		}
		rows[t] = row
	}
	return NewFeatureMatrix(rows, coeffs)
}

func TestAdaptShapeInvariant(t *testing.T) {
	expectations := []Shape{
		nil,
		{},
		{40},
		{1},
		{5200},
		{130, 40},
		{1, 1},
		{200, 13},
		{10, 60},
		{2, 3, 4},
	}
	inputs := []struct{ frames, coeffs int }{
		{0, 40},
		{1, 40},
		{130, 40},
		{500, 40},
		{50, 13},
		{50, 80},
	}

	for _, exp := range expectations {
		for _, in := range inputs {
			m := seqMatrix(in.frames, in.coeffs)
			got := Adapt(m, exp)

			var want Shape
			switch len(exp) {
			case 1, 2:
				want = append(Shape{1}, exp...)
			default:
				want = Shape{1, in.coeffs}
			}
			if !got.Shape.Equal(want) {
				t.Errorf("Adapt(%dx%d, %v) shape = %v, want %v", in.frames, in.coeffs, exp, got.Shape, want)
			}
			if len(got.Data) != want.Size() {
				t.Errorf("Adapt(%dx%d, %v) len = %d, want %d", in.frames, in.coeffs, exp, len(got.Data), want.Size())
			}
		}
	}
}

func TestAdaptSequenceIdentity(t *testing.T) {
	m := seqMatrix(130, 40)
	got := Adapt(m, Shape{130, 40})

	if !got.Shape.Equal(Shape{1, 130, 40}) {
		t.Fatalf("shape = %v", got.Shape)
	}
	for ti, row := range m.Frames {
		for c, v := range row {
			if g := got.Data[ti*40+c]; g != v {
				t.Fatalf("[%d,%d] = %v, want %v", ti, c, g, v)
			}
		}
	}
}

func TestAdaptFlatIdentity(t *testing.T) {
	m := seqMatrix(3, 4)
	got := Adapt(m, Shape{12})
	for i, v := range got.Data {
		want := m.Frames[i/4][i%4]
		if v != want {
			t.Fatalf("[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestAdaptSequenceTruncatesTime(t *testing.T) {
	m := seqMatrix(300, 40)
	got := Adapt(m, Shape{130, 40})

	for ti := 0; ti < 130; ti++ {
		row := rowOf(got, ti)
		for c := range row {
			if row[c] != m.Frames[ti][c] {
				t.Fatalf("[%d,%d] = %v, want %v", ti, c, row[c], m.Frames[ti][c])
			}
		}
	}
	// Frame 130 starts with 13001; nothing from it or later may appear.
	for i, v := range got.Data {
		if v >= 13001 {
			t.Fatalf("data[%d] = %v comes from a truncated frame", i, v)
		}
	}
}

func TestAdaptSequencePadsTime(t *testing.T) {
	m := seqMatrix(20, 40)
	got := Adapt(m, Shape{130, 40})

	for ti := 0; ti < 130; ti++ {
		row := rowOf(got, ti)
		for c, v := range row {
			if ti < 20 {
				if v != m.Frames[ti][c] {
					t.Fatalf("[%d,%d] = %v, want %v", ti, c, v, m.Frames[ti][c])
				}
			} else if v != 0 {
				t.Fatalf("padded [%d,%d] = %v, want 0", ti, c, v)
			}
		}
	}
}

func TestAdaptSequenceColumns(t *testing.T) {
	tests := []struct {
		name     string
		coeffs   int
		features int
	}{
		{"pad columns", 13, 40},
		{"truncate columns", 80, 40},
		{"same columns", 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seqMatrix(10, tt.coeffs)
			got := Adapt(m, Shape{12, tt.features})

			for ti := 0; ti < 12; ti++ {
				row := rowOf(got, ti)
				for c, v := range row {
					var want float32
					if ti < 10 && c < tt.coeffs {
						want = m.Frames[ti][c]
					}
					if v != want {
						t.Fatalf("[%d,%d] = %v, want %v", ti, c, v, want)
					}
				}
			}
		})
	}
}

func TestAdaptFlatPadAndTruncate(t *testing.T) {
	m := seqMatrix(2, 3) // 1 2 3 / 101 102 103

	short := Adapt(m, Shape{4})
	want := []float32{1, 2, 3, 101}
	for i, v := range want {
		if short.Data[i] != v {
			t.Fatalf("truncate [%d] = %v, want %v", i, short.Data[i], v)
		}
	}

	long := Adapt(m, Shape{9})
	want = []float32{1, 2, 3, 101, 102, 103, 0, 0, 0}
	for i, v := range want {
		if long.Data[i] != v {
			t.Fatalf("pad [%d] = %v, want %v", i, long.Data[i], v)
		}
	}
}

func TestAdaptMeanFallback(t *testing.T) {
	m := NewFeatureMatrix([][]float32{{1, 10}, {3, 20}}, 2)

	for _, exp := range []Shape{nil, {}, {2, 3, 4}} {
		got := Adapt(m, exp)
		if !got.Shape.Equal(Shape{1, 2}) {
			t.Fatalf("Adapt(%v) shape = %v, want (1, 2)", exp, got.Shape)
		}
		if got.Data[0] != 2 || got.Data[1] != 15 {
			t.Fatalf("Adapt(%v) = %v, want [2 15]", exp, got.Data)
		}
	}
}

func TestAdaptEmptyMatrix(t *testing.T) {
	m := NewFeatureMatrix(nil, 40)

	got := Adapt(m, Shape{130, 40})
	for i, v := range got.Data {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0", i, v)
		}
	}

	mean := Adapt(m, nil)
	if !mean.Shape.Equal(Shape{1, 40}) {
		t.Fatalf("mean shape = %v", mean.Shape)
	}
	for i, v := range mean.Data {
		if v != 0 {
			t.Fatalf("mean[%d] = %v, want 0", i, v)
		}
	}
}

func TestAdaptDoesNotAlias(t *testing.T) {
	m := seqMatrix(2, 2)
	got := Adapt(m, Shape{2, 2})
	got.Data[0] = -1
	if m.Frames[0][0] != 1 {
		t.Fatal("Adapt output aliases the input matrix")
	}
}
