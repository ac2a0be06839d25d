package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/deepscan/pkg/cli"
	"github.com/haivivi/deepscan/pkg/tensor"
)

var (
	inspectOpts   detectorFlags
	inspectAudio  string
	inspectFormat string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show model inputs, outputs and feature adaptation",
	Long: `Show the model's declared inputs and outputs and the input shape features
are adapted to. With --audio, also extract features from a file and show
how they are adapted.

Examples:
  deepscan inspect --model voicemodel.onnx
  deepscan inspect --model voicemodel.onnx --audio clip.wav --sr 16000`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectOpts.registerModel(inspectCmd.Flags())
	inspectOpts.registerFeatures(inspectCmd.Flags())
	inspectCmd.Flags().StringVar(&inspectAudio, "audio", "", "audio file to extract features from")
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(inspectCmd)
}

// inspectResult is the output of inspect.
type inspectResult struct {
	Model    *cli.ModelReport   `json:"model" yaml:"model"`
	Features *cli.FeatureReport `json:"features,omitempty" yaml:"features,omitempty"`
}

func (r *inspectResult) Text(s cli.Styles) string {
	text := r.Model.Text(s)
	if r.Features != nil {
		text += "\n" + r.Features.Text(s)
	}
	return text
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(inspectFormat)
	if err != nil {
		return err
	}
	svc, err := loadServices()
	if err != nil {
		return err
	}
	d := &svc.Detector
	inspectOpts.apply(cmd.Flags(), d)
	if err := d.Validate(); err != nil {
		return err
	}

	c, m, err := newClassifier(d)
	if err != nil {
		return err
	}
	defer m.Close()

	result := &inspectResult{Model: m.Describe()}
	if inspectAudio != "" {
		opts := d.Options()
		features, err := c.Extract(inspectAudio, opts)
		if err != nil {
			return err
		}
		adapted := tensor.Adapt(features, c.InputShape())
		result.Features = &cli.FeatureReport{
			File:       inspectAudio,
			SizeBytes:  fileSize(inspectAudio),
			Frames:     features.Len(),
			Coeffs:     features.Coeffs,
			Expected:   c.InputShape().String(),
			Adapter:    cli.AdapterMode(c.InputShape()),
			InputShape: adapted.Shape.String(),
		}
	}
	return cli.Output(result, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
}
