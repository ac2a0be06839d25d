package classify

import (
	"errors"
	"fmt"

	"github.com/haivivi/deepscan/pkg/tensor"
)

// Label is the binary classification outcome.
type Label string

const (
	LabelFake Label = "fake"
	LabelReal Label = "real"
)

// DefaultThreshold is the probability at or above which a sample is fake.
const DefaultThreshold = 0.5

// Verdict is the result of classifying one sample.
type Verdict struct {
	Label Label `json:"label" yaml:"label" msgpack:"label"`
	// Probability is the model's probability that the sample is fake. It is
	// not clamped to [0, 1]; a model emitting logits yields logits here.
	Probability float64 `json:"probability" yaml:"probability" msgpack:"probability"`
	// Raw is the unprocessed model output.
	Raw *tensor.Tensor `json:"raw,omitempty" yaml:"raw,omitempty" msgpack:"raw,omitempty"`
}

// IsFake reports whether the verdict label is fake.
func (v *Verdict) IsFake() bool { return v.Label == LabelFake }

func (v *Verdict) String() string {
	return fmt.Sprintf("Label: %s, Probability(fake)=%.4f", v.Label, v.Probability)
}

// errEmptyOutput is wrapped in an InferenceError when the model returns no
// values at all.
var errEmptyOutput = errors.New("classify: model returned an empty output")

// Normalize collapses a raw model output into a Verdict.
//
// The fake probability is picked by output shape, first match wins:
//
//  1. rank 0 (scalar): the value itself
//  2. last dimension of length 1: the single value, e.g. (1, 1) or (1,)
//  3. exactly two elements: the element at index 1, assuming a two-class
//     softmax ordered [real, fake]
//  4. anything else: the last element
//
// Rule 3 depends on the class order the model was trained with. A model
// ordered [fake, real] needs its output reversed before it reaches Normalize.
//
// The label is fake when probability >= threshold.
func Normalize(raw *tensor.Tensor, threshold float64) (*Verdict, error) {
	if raw == nil || len(raw.Data) == 0 {
		return nil, errEmptyOutput
	}

	var p float32
	switch {
	case raw.Rank() == 0:
		p = raw.Data[0]
	case raw.Shape[raw.Rank()-1] == 1:
		p = raw.Data[0]
	case len(raw.Data) == 2:
		p = raw.Data[1]
	default:
		p = raw.Data[len(raw.Data)-1]
	}

	prob := float64(p)
	label := LabelReal
	if prob >= threshold {
		label = LabelFake
	}
	return &Verdict{Label: label, Probability: prob, Raw: raw}, nil
}
