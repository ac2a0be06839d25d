package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/onnx"
	"github.com/haivivi/deepscan/pkg/tensor"
)

func sampleReport() *VerdictReport {
	return NewVerdictReport("clip.wav",
		&classify.Verdict{Label: classify.LabelFake, Probability: 0.91234},
		0.5, 1500*time.Millisecond)
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sampleReport(), OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["label"] != "fake" {
		t.Errorf("label = %v, want fake", result["label"])
	}
	if result["elapsed_ms"] != float64(1500) {
		t.Errorf("elapsed_ms = %v", result["elapsed_ms"])
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sampleReport(), OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"file: clip.wav", "label: fake", "threshold: 0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]string{"key": "value"}, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "key: value") {
		t.Errorf("Default format should be YAML, got: %s", buf.String())
	}
}

func TestOutput_Text(t *testing.T) {
	var buf bytes.Buffer
	plain := PlainStyles()
	if err := Output(sampleReport(), OutputOptions{Format: FormatText, Writer: &buf, Styles: &plain}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Label: fake, Probability(fake)=0.9123" {
		t.Errorf("first line = %q", lines[0])
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "clip.wav") || !strings.Contains(lines[1], "1.5s") {
		t.Errorf("detail line = %q", lines)
	}
}

func TestVerdictReportSize(t *testing.T) {
	r := sampleReport()
	r.SizeBytes = 3 << 20
	plain := PlainStyles()
	text := r.Text(plain)
	if !strings.Contains(text, "clip.wav (3.0 MiB)") {
		t.Errorf("text = %q, want file size", text)
	}

	var buf bytes.Buffer
	if err := Output(r, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"size_bytes": 3145728`) {
		t.Errorf("json = %s", buf.String())
	}
}

func TestOutput_TextFallsBackToYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]int{"n": 1}, OutputOptions{Format: FormatText, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "n: 1") {
		t.Errorf("got %q", buf.String())
	}
}

func TestOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(sampleReport(), OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"label": "fake"`) {
		t.Errorf("file content = %s", data)
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("x", OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "json": FormatJSON, "text": FormatText, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("table"); err == nil {
		t.Error("expected error for table")
	}
}

func TestModelReportText(t *testing.T) {
	r := &ModelReport{
		Path:       "model.onnx",
		Inputs:     []onnx.IOInfo{{Name: "mfcc", Dims: []int64{-1, 130, 40}, Type: "float32"}},
		Outputs:    []onnx.IOInfo{{Name: "prob", Dims: []int64{-1, 1}, Type: "float32"}},
		InputShape: tensor.Shape{130, 40}.String(),
		Adapter:    AdapterMode(tensor.Shape{130, 40}),
	}
	text := r.Text(PlainStyles())
	for _, want := range []string{"model.onnx", "mfcc [-1 130 40]", "prob [-1 1]", "(130, 40) (sequence)"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestAdapterMode(t *testing.T) {
	tests := []struct {
		shape tensor.Shape
		want  string
	}{
		{nil, "mean"},
		{tensor.Shape{}, "mean"},
		{tensor.Shape{5200}, "flatten"},
		{tensor.Shape{130, 40}, "sequence"},
		{tensor.Shape{1, 2, 3}, "mean"},
	}
	for _, tt := range tests {
		if got := AdapterMode(tt.shape); got != tt.want {
			t.Errorf("AdapterMode(%v) = %q, want %q", tt.shape, got, tt.want)
		}
	}
}
