// Package classify runs the audio deepfake detection pipeline:
//
//	file → waveform → MFCC matrix → adapted tensor → model → Verdict
//
// A [Classifier] wraps one loaded [Model] and is constructed once at
// startup, then shared by every caller. Each call allocates its own
// intermediate buffers, so a Classifier is safe for concurrent use as long
// as the Model is.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/deepscan/pkg/audio/audiofile"
	"github.com/haivivi/deepscan/pkg/audio/mfcc"
	"github.com/haivivi/deepscan/pkg/tensor"
)

// Model is a loaded binary classifier.
//
// InputShape returns the per-sample input shape (no batch dimension), or nil
// when it is unknown. Predict runs one forward pass on a tensor whose first
// dimension is the batch of 1.
type Model interface {
	InputShape() tensor.Shape
	Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error)
}

// ModelFunc adapts a plain function and a fixed input shape to Model.
type ModelFunc struct {
	Shape tensor.Shape
	Func  func(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error)
}

// InputShape implements Model.
func (m ModelFunc) InputShape() tensor.Shape { return m.Shape }

// Predict implements Model.
func (m ModelFunc) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	return m.Func(ctx, in)
}

// ErrNoModel is returned by New when model is nil.
var ErrNoModel = errors.New("classify: no model")

// InferenceError reports that the model forward pass failed or produced
// nothing usable.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("classify: inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Defaults applied to zero Options fields.
const (
	DefaultSampleRate = 22050
	DefaultNumCoeffs  = 40
)

// Options configures one classification call. Zero fields take defaults.
type Options struct {
	SampleRate  int           // resample target in Hz (default 22050)
	MaxDuration time.Duration // decode only the leading part; 0 decodes all
	NumCoeffs   int           // MFCC coefficients per frame (default 40)

	// Threshold is the score at or above which a sample is fake. Nil means
	// DefaultThreshold; any other value, zero and negatives included, is
	// used as given so logit outputs can be thresholded.
	Threshold *float64
}

// Threshold returns a pointer to v for Options.Threshold.
func Threshold(v float64) *float64 { return &v }

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{
		SampleRate: DefaultSampleRate,
		NumCoeffs:  DefaultNumCoeffs,
		Threshold:  Threshold(DefaultThreshold),
	}
}

// FakeThreshold returns the effective threshold.
func (o Options) FakeThreshold() float64 {
	if o.Threshold == nil {
		return DefaultThreshold
	}
	return *o.Threshold
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.NumCoeffs <= 0 {
		o.NumCoeffs = DefaultNumCoeffs
	}
	if o.Threshold == nil {
		o.Threshold = Threshold(DefaultThreshold)
	}
	if o.MaxDuration < 0 {
		o.MaxDuration = 0
	}
	return o
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger for pipeline debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// Classifier runs the detection pipeline against one model.
type Classifier struct {
	model Model
	shape tensor.Shape
	log   *slog.Logger

	extractors sync.Map // extractorKey → *mfcc.Extractor
}

type extractorKey struct {
	sampleRate int
	numCoeffs  int
}

// New creates a Classifier for model. The model's input shape is read once
// here and used for every call.
func New(model Model, opts ...Option) (*Classifier, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	c := &Classifier{
		model: model,
		shape: model.InputShape(),
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// InputShape returns the model input shape the classifier adapts features
// to, or nil when the model does not declare one.
func (c *Classifier) InputShape() tensor.Shape { return c.shape }

// ClassifyFile classifies the audio file at path.
func (c *Classifier) ClassifyFile(ctx context.Context, path string, opts Options) (*Verdict, error) {
	opts = opts.withDefaults()
	in, err := c.Preprocess(path, opts)
	if err != nil {
		return nil, err
	}
	raw, err := c.Infer(ctx, in)
	if err != nil {
		return nil, err
	}
	v, err := Normalize(raw, opts.FakeThreshold())
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	c.log.Debug("classified",
		"path", path,
		"label", v.Label,
		"probability", v.Probability,
		"raw_shape", raw.Shape.String())
	return v, nil
}

// Preprocess decodes the file at path and returns the model-ready input
// tensor, including the batch dimension.
func (c *Classifier) Preprocess(path string, opts Options) (*tensor.Tensor, error) {
	opts = opts.withDefaults()
	feats, err := c.Extract(path, opts)
	if err != nil {
		return nil, err
	}
	in := tensor.Adapt(feats, c.shape)
	c.log.Debug("adapted features",
		"path", path,
		"frames", feats.Len(),
		"expected", c.shape.String(),
		"input_shape", in.Shape.String())
	return in, nil
}

// Extract decodes the file at path, resamples it and computes its MFCC
// matrix, time-major. Decoding failures are returned as
// *audiofile.DecodeError.
func (c *Classifier) Extract(path string, opts Options) (*tensor.FeatureMatrix, error) {
	opts = opts.withDefaults()
	ext, err := c.extractor(opts.SampleRate, opts.NumCoeffs)
	if err != nil {
		return nil, err
	}

	wave, err := audiofile.Load(path, audiofile.Options{
		SampleRate:  opts.SampleRate,
		MaxDuration: opts.MaxDuration,
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("decoded audio",
		"path", path,
		"samples", len(wave.Samples),
		"sample_rate", wave.SampleRate,
		"duration", wave.Duration())

	frames, err := ext.Extract(wave.Samples)
	if err != nil {
		return nil, &audiofile.DecodeError{Path: path, Err: err}
	}
	return tensor.NewFeatureMatrix(frames, opts.NumCoeffs), nil
}

// Infer runs the model on an adapted tensor. Every failure is returned as
// *InferenceError.
func (c *Classifier) Infer(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	raw, err := c.model.Predict(ctx, in)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if raw == nil || len(raw.Data) == 0 {
		return nil, &InferenceError{Err: errEmptyOutput}
	}
	return raw, nil
}

func (c *Classifier) extractor(sampleRate, numCoeffs int) (*mfcc.Extractor, error) {
	key := extractorKey{sampleRate, numCoeffs}
	if e, ok := c.extractors.Load(key); ok {
		return e.(*mfcc.Extractor), nil
	}
	cfg := mfcc.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.NumCoeffs = numCoeffs
	e, err := mfcc.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	actual, _ := c.extractors.LoadOrStore(key, e)
	return actual.(*mfcc.Extractor), nil
}
