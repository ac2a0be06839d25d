package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/config"
	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/cli"
	"github.com/haivivi/deepscan/pkg/onnx"
)

// detectorModel is a loaded classifier model.
type detectorModel interface {
	classify.Model
	Describe() *cli.ModelReport
	Close() error
}

// loadModel opens the model named by d. Tests replace it.
var loadModel = openONNX

type onnxModel struct {
	*onnx.Session
	env *onnx.Env
}

func openONNX(d *config.DetectorConfig) (detectorModel, error) {
	if d.Model == "" {
		return nil, errors.New("no model configured; pass --model or set detector.model")
	}
	env, err := onnx.NewEnv(d.ORTLibrary)
	if err != nil {
		return nil, err
	}
	var opts []onnx.SessionOption
	if shape := d.Shape(); shape != nil {
		opts = append(opts, onnx.WithInputShape(shape))
	}
	if d.Threads > 0 {
		opts = append(opts, onnx.WithIntraOpThreads(d.Threads))
	}
	s, err := env.NewSession(d.Model, opts...)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("load model %s: %w", d.Model, err)
	}
	slog.Debug("model loaded", "path", d.Model, "input_shape", s.InputShape().String())
	return &onnxModel{Session: s, env: env}, nil
}

func (m *onnxModel) Describe() *cli.ModelReport {
	return cli.NewModelReport(m.Session)
}

func (m *onnxModel) Close() error {
	return errors.Join(m.Session.Close(), m.env.Close())
}

// newClassifier loads the model and wraps it in a Classifier.
func newClassifier(d *config.DetectorConfig) (*classify.Classifier, detectorModel, error) {
	m, err := loadModel(d)
	if err != nil {
		return nil, nil, err
	}
	c, err := classify.New(m, classify.WithLogger(slog.Default()))
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return c, m, nil
}
