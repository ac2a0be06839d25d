package tensor

import "testing"

func TestShapeSize(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{2}, 2},
		{Shape{1, 130, 40}, 5200},
		{Shape{3, 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.shape.Size(); got != tt.want {
			t.Errorf("%v.Size() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeString(t *testing.T) {
	if got := Shape(nil).String(); got != "unknown" {
		t.Errorf("nil shape = %q", got)
	}
	if got := (Shape{130, 40}).String(); got != "(130, 40)" {
		t.Errorf("shape = %q", got)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Shape{2, 3}, make([]float32, 6)); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Shape{2, 3}, make([]float32, 5)); err == nil {
		t.Fatal("expected error for short data")
	}
	s := Scalar(5)
	if s.Rank() != 0 || s.Size() != 1 {
		t.Fatalf("scalar rank=%d size=%d", s.Rank(), s.Size())
	}
}

func TestNewFeatureMatrix(t *testing.T) {
	m := NewFeatureMatrix([][]float32{{1, 2, 3}}, 40)
	if m.Coeffs != 3 {
		t.Fatalf("Coeffs = %d, want 3", m.Coeffs)
	}
	empty := NewFeatureMatrix(nil, 40)
	if empty.Coeffs != 40 || empty.Len() != 0 {
		t.Fatalf("empty = %+v", empty)
	}
}
