package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/config"
	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/cli"
)

// detectorFlags override detector.yaml values when set on the command line.
type detectorFlags struct {
	model      string
	ortLib     string
	inputShape []int
	sampleRate int
	duration   float64
	numCoeffs  int
	threshold  float64
}

// registerModel adds the flags every model-loading command shares.
func (f *detectorFlags) registerModel(fs *pflag.FlagSet) {
	fs.StringVar(&f.model, "model", "", "ONNX model path (default: detector.model)")
	fs.StringVar(&f.ortLib, "ort-lib", "", "ONNX Runtime shared library (default: detector.ort_library)")
	fs.IntSliceVar(&f.inputShape, "input-shape", nil, "model input shape without batch, e.g. 130,40")
}

// registerFeatures adds the feature extraction and threshold flags.
func (f *detectorFlags) registerFeatures(fs *pflag.FlagSet) {
	fs.IntVar(&f.sampleRate, "sr", classify.DefaultSampleRate, "resample rate in Hz")
	fs.Float64Var(&f.duration, "duration", 0, "decode only the first N seconds (0: whole file)")
	fs.IntVar(&f.numCoeffs, "n-mfcc", classify.DefaultNumCoeffs, "MFCC coefficients per frame")
	fs.Float64Var(&f.threshold, "threshold", classify.DefaultThreshold, "fake probability threshold")
}

// apply copies every flag the user set onto d.
func (f *detectorFlags) apply(fs *pflag.FlagSet, d *config.DetectorConfig) {
	if fs.Changed("model") {
		d.Model = f.model
	}
	if fs.Changed("ort-lib") {
		d.ORTLibrary = f.ortLib
	}
	if fs.Changed("input-shape") {
		d.InputShape = f.inputShape
	}
	if fs.Changed("sr") {
		d.SampleRate = f.sampleRate
	}
	if fs.Changed("duration") {
		d.MaxDuration = f.duration
	}
	if fs.Changed("n-mfcc") {
		d.NumCoeffs = f.numCoeffs
	}
	if fs.Changed("threshold") {
		d.Threshold = f.threshold
	}
}

var (
	detectOpts   detectorFlags
	detectFormat string
	detectOutput string
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Classify an audio file as real or fake",
	Long: `Classify an audio file as real or synthetic speech.

Supported formats are WAV and MP3. The file is resampled, reduced to MFCC
features, adapted to the model input shape and scored.

Examples:
  deepscan detect --model voicemodel.onnx clip.wav
  deepscan detect --threshold 0.7 --duration 5 clip.mp3
  deepscan detect --format json clip.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	detectOpts.registerModel(detectCmd.Flags())
	detectOpts.registerFeatures(detectCmd.Flags())
	detectCmd.Flags().StringVar(&detectFormat, "format", "text", "output format: text, json, yaml")
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(detectFormat)
	if err != nil {
		return err
	}
	svc, err := loadServices()
	if err != nil {
		return err
	}
	d := &svc.Detector
	detectOpts.apply(cmd.Flags(), d)
	if err := d.Validate(); err != nil {
		return err
	}

	c, m, err := newClassifier(d)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts := d.Options()
	start := time.Now()
	v, err := c.ClassifyFile(ctx, args[0], opts)
	if err != nil {
		return err
	}
	report := cli.NewVerdictReport(args[0], v, opts.FakeThreshold(), time.Since(start))
	report.SizeBytes = fileSize(args[0])
	return cli.Output(report, cli.OutputOptions{
		Format: format,
		File:   detectOutput,
		Writer: writerFor(cmd, detectOutput),
	})
}

// fileSize returns the size of path, or 0 when it cannot be read.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
