package classify

import (
	"testing"

	"github.com/haivivi/deepscan/pkg/tensor"
)

func mustTensor(t *testing.T, shape tensor.Shape, data ...float32) *tensor.Tensor {
	t.Helper()
	out, err := tensor.New(shape, data)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		name string
		raw  *tensor.Tensor
		want float32
	}{
		{"scalar", tensor.Scalar(5.0), 5.0},
		{"length-1 vector", mustTensor(t, tensor.Shape{1}, 0.3), 0.3},
		{"batch of one", mustTensor(t, tensor.Shape{1, 1}, 0.9), 0.9},
		{"last axis 1 beats size 2", mustTensor(t, tensor.Shape{2, 1}, 0.1, 0.8), 0.1},
		{"two-class softmax", mustTensor(t, tensor.Shape{2}, 0.3, 0.7), 0.7},
		{"batched two-class", mustTensor(t, tensor.Shape{1, 2}, 0.25, 0.75), 0.75},
		{"other takes last", mustTensor(t, tensor.Shape{1, 3}, 0.1, 0.2, 0.6), 0.6},
		{"negative logit", tensor.Scalar(-2.5), -2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Normalize(tt.raw, DefaultThreshold)
			if err != nil {
				t.Fatal(err)
			}
			if v.Probability != float64(tt.want) {
				t.Fatalf("Probability = %v, want %v", v.Probability, float64(tt.want))
			}
			if v.Raw != tt.raw {
				t.Error("Raw not carried through")
			}
		})
	}
}

func TestNormalizeThreshold(t *testing.T) {
	tests := []struct {
		p         float32
		threshold float64
		want      Label
	}{
		{0.5, 0.5, LabelFake},
		{0.49, 0.5, LabelReal},
		{0.75, 0.75, LabelFake},
		{0.2, 0.5, LabelReal},
		{5.0, 0.5, LabelFake},
		{0, 0, LabelFake},
	}
	for _, tt := range tests {
		v, err := Normalize(tensor.Scalar(tt.p), tt.threshold)
		if err != nil {
			t.Fatal(err)
		}
		if v.Label != tt.want {
			t.Errorf("Normalize(%v, %v) = %q, want %q", tt.p, tt.threshold, v.Label, tt.want)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if _, err := Normalize(nil, 0.5); err == nil {
		t.Error("expected error for nil output")
	}
	if _, err := Normalize(&tensor.Tensor{Shape: tensor.Shape{0}}, 0.5); err == nil {
		t.Error("expected error for empty output")
	}
}

func TestVerdictString(t *testing.T) {
	v := &Verdict{Label: LabelFake, Probability: 0.91234}
	if got := v.String(); got != "Label: fake, Probability(fake)=0.9123" {
		t.Fatalf("String() = %q", got)
	}
	if !v.IsFake() {
		t.Error("IsFake() = false")
	}
}
