// Package tensor holds the numeric containers passed between the stages of
// the detection pipeline and the shape adapter that forces a variable-length
// feature matrix into the fixed input shape a model expects.
//
// # Data flow
//
//	FeatureMatrix [T, C]  →  Adapt(expected)  →  Tensor [1, ...expected]
//
// T (time frames) depends on recording length and is unbounded; C (cepstral
// coefficients) is a configuration constant. Adapt neutralizes both by
// zero-padding or truncating, never by failing.
package tensor

import (
	"fmt"
	"strings"
)

// FeatureMatrix is a time-major feature matrix: Frames[t][c].
//
// Coeffs is carried separately so an empty matrix (zero frames) still knows
// its coefficient count.
type FeatureMatrix struct {
	Frames [][]float32
	Coeffs int
}

// NewFeatureMatrix wraps frames as a FeatureMatrix. The coefficient count is
// taken from the first frame, or from coeffs when frames is empty.
func NewFeatureMatrix(frames [][]float32, coeffs int) *FeatureMatrix {
	if len(frames) > 0 {
		coeffs = len(frames[0])
	}
	return &FeatureMatrix{Frames: frames, Coeffs: coeffs}
}

// Len returns the number of time frames.
func (m *FeatureMatrix) Len() int {
	return len(m.Frames)
}

// Shape is a list of dimensions. A nil Shape means the dimensions are unknown.
type Shape []int

// Size returns the number of elements described by the shape. The empty
// (rank 0) shape describes a scalar and has size 1.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether s and o have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	if s == nil {
		return "unknown"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	Shape Shape     `json:"shape" yaml:"shape" msgpack:"shape"`
	Data  []float32 `json:"data" yaml:"data" msgpack:"data"`
}

// New creates a tensor with the given shape, validating that data holds
// exactly shape.Size() elements.
func New(shape Shape, data []float32) (*Tensor, error) {
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("tensor: shape %v needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// Scalar returns a rank-0 tensor holding v.
func Scalar(v float32) *Tensor {
	return &Tensor{Shape: Shape{}, Data: []float32{v}}
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return len(t.Data)
}
