package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/onnx"
	"github.com/haivivi/deepscan/pkg/tensor"
)

// VerdictReport is the result of classifying one file.
type VerdictReport struct {
	File        string         `json:"file" yaml:"file"`
	SizeBytes   int64          `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Label       classify.Label `json:"label" yaml:"label"`
	Probability float64        `json:"probability" yaml:"probability"`
	Threshold   float64        `json:"threshold" yaml:"threshold"`
	ElapsedMS   int64          `json:"elapsed_ms" yaml:"elapsed_ms"`
	Raw         *tensor.Tensor `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// NewVerdictReport builds a report for v.
func NewVerdictReport(file string, v *classify.Verdict, threshold float64, elapsed time.Duration) *VerdictReport {
	return &VerdictReport{
		File:        file,
		Label:       v.Label,
		Probability: v.Probability,
		Threshold:   threshold,
		ElapsedMS:   elapsed.Milliseconds(),
		Raw:         v.Raw,
	}
}

// Text renders "Label: fake, Probability(fake)=0.9123" and a detail line.
func (r *VerdictReport) Text(s Styles) string {
	label := s.Real.Render(string(r.Label))
	if r.Label == classify.LabelFake {
		label = s.Fake.Render(string(r.Label))
	}
	head := fmt.Sprintf("Label: %s, Probability(fake)=%.4f", label, r.Probability)
	file := r.File
	if r.SizeBytes > 0 {
		file += " (" + Size(r.SizeBytes) + ")"
	}
	detail := s.Dim.Render(fmt.Sprintf("%s  threshold %.2f  %s",
		file, r.Threshold, Elapsed(time.Duration(r.ElapsedMS)*time.Millisecond)))
	return head + "\n" + detail
}

// ModelReport describes a loaded model.
type ModelReport struct {
	Path       string        `json:"path" yaml:"path"`
	Inputs     []onnx.IOInfo `json:"inputs" yaml:"inputs"`
	Outputs    []onnx.IOInfo `json:"outputs" yaml:"outputs"`
	InputShape string        `json:"input_shape" yaml:"input_shape"`
	Adapter    string        `json:"adapter" yaml:"adapter"`
}

// NewModelReport describes session.
func NewModelReport(s *onnx.Session) *ModelReport {
	shape := s.InputShape()
	return &ModelReport{
		Path:       s.Path(),
		Inputs:     s.Inputs(),
		Outputs:    s.Outputs(),
		InputShape: shape.String(),
		Adapter:    AdapterMode(shape),
	}
}

// AdapterMode names how features are adapted to shape.
func AdapterMode(shape tensor.Shape) string {
	switch len(shape) {
	case 1:
		return "flatten"
	case 2:
		return "sequence"
	default:
		return "mean"
	}
}

func (r *ModelReport) Text(s Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(r.Path))
	b.WriteByte('\n')
	writeIO := func(kind string, infos []onnx.IOInfo) {
		for _, info := range infos {
			fmt.Fprintf(&b, "  %s %s %v %s\n", s.Label.Render(kind), info.Name, info.Dims, s.Dim.Render(info.Type))
		}
	}
	writeIO("input ", r.Inputs)
	writeIO("output", r.Outputs)
	fmt.Fprintf(&b, "  %s %s (%s)", s.Label.Render("expects"), r.InputShape, r.Adapter)
	return b.String()
}

// FeatureReport summarizes the features extracted from one file.
type FeatureReport struct {
	File       string `json:"file" yaml:"file"`
	SizeBytes  int64  `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Frames     int    `json:"frames" yaml:"frames"`
	Coeffs     int    `json:"coeffs" yaml:"coeffs"`
	Expected   string `json:"expected" yaml:"expected"`
	Adapter    string `json:"adapter" yaml:"adapter"`
	InputShape string `json:"input_shape" yaml:"input_shape"`
}

func (r *FeatureReport) Text(s Styles) string {
	title := s.Title.Render(r.File)
	if r.SizeBytes > 0 {
		title += " " + s.Dim.Render(Size(r.SizeBytes))
	}
	return fmt.Sprintf("%s\n  %s %d x %d\n  %s %s (%s) -> %s",
		title,
		s.Label.Render("mfcc   "), r.Frames, r.Coeffs,
		s.Label.Render("adapted"), r.Expected, r.Adapter, r.InputShape)
}
