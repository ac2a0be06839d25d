// Package onnx runs ONNX models through ONNX Runtime.
//
// The runtime is loaded dynamically from a shared library (libonnxruntime.so,
// .dylib or .dll) whose path is given to [NewEnv]. The package exposes two
// types:
//
//   - [Env]: the process-wide runtime environment
//   - [Session]: a loaded model with its input/output signature
//
// Usage flow:
//
//	env, _ := onnx.NewEnv("/usr/lib/libonnxruntime.so")
//	defer env.Close()
//
//	session, _ := env.NewSession("model.onnx")
//	defer session.Close()
//
//	out, _ := session.Predict(ctx, input) // input is a *tensor.Tensor
//
// # Thread Safety
//
// Env is safe for concurrent use. Session.Predict may be called from
// multiple goroutines; ONNX Runtime serializes internally.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/haivivi/deepscan/pkg/tensor"
)

// ErrClosed is returned when using a closed Env or Session.
var ErrClosed = errors.New("onnx: closed")

// --------------------------------------------------------------------------
// Env
// --------------------------------------------------------------------------

// The ONNX Runtime environment is global to the process; Envs share it and
// the last Close tears it down.
var (
	envMu   sync.Mutex
	envRefs int
	envLib  string
)

// Env is a handle on the ONNX Runtime environment.
type Env struct {
	once sync.Once
}

// NewEnv initializes ONNX Runtime from the shared library at libPath. An
// empty libPath lets the runtime binding pick its platform default.
//
// Only one library can be loaded per process: a second NewEnv with a
// different non-empty path fails while the first Env is open.
func NewEnv(libPath string) (*Env, error) {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs > 0 {
		if libPath != "" && envLib != "" && libPath != envLib {
			return nil, fmt.Errorf("onnx: runtime already loaded from %s", envLib)
		}
		envRefs++
		return &Env{}, nil
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}
	envRefs = 1
	envLib = libPath
	return &Env{}, nil
}

// Close releases this handle. The runtime is destroyed when the last Env is
// closed. Close is idempotent.
func (e *Env) Close() error {
	var err error
	e.once.Do(func() {
		envMu.Lock()
		defer envMu.Unlock()
		envRefs--
		if envRefs == 0 {
			envLib = ""
			if derr := ort.DestroyEnvironment(); derr != nil {
				err = fmt.Errorf("onnx: destroy runtime: %w", derr)
			}
		}
	})
	return err
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// IOInfo describes one model input or output.
type IOInfo struct {
	Name string `json:"name" yaml:"name"`
	// Dims are the declared dimensions, batch included. Dynamic dimensions
	// are reported as -1.
	Dims []int64 `json:"dims" yaml:"dims"`
	Type string  `json:"type" yaml:"type"`
}

// SessionOption configures [Env.NewSession].
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	inputShape tensor.Shape
	threads    int
}

// WithInputShape overrides the expected input shape (batch dimension
// excluded) reported by [Session.InputShape]. Use it for models whose
// inputs are declared with dynamic dimensions.
func WithInputShape(shape tensor.Shape) SessionOption {
	return func(c *sessionConfig) { c.inputShape = shape }
}

// WithIntraOpThreads limits the threads ONNX Runtime uses inside one
// operator. Zero keeps the runtime default.
func WithIntraOpThreads(n int) SessionOption {
	return func(c *sessionConfig) { c.threads = n }
}

// Session holds a loaded ONNX model. Only the first input and first output
// of the model are used.
type Session struct {
	path       string
	inputs     []IOInfo
	outputs    []IOInfo
	inputShape tensor.Shape

	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
}

// NewSession loads the model file at path.
func (e *Env) NewSession(path string, opts ...SessionOption) (*Session, error) {
	var cfg sessionConfig
	for _, o := range opts {
		o(&cfg)
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model %s: %w", path, err)
	}
	if len(inInfo) == 0 || len(outInfo) == 0 {
		return nil, fmt.Errorf("onnx: model %s has %d inputs and %d outputs", path, len(inInfo), len(outInfo))
	}

	var so *ort.SessionOptions
	if cfg.threads > 0 {
		so, err = ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("onnx: session options: %w", err)
		}
		defer so.Destroy()
		if err := so.SetIntraOpNumThreads(cfg.threads); err != nil {
			return nil, fmt.Errorf("onnx: session options: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(path,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name}, so)
	if err != nil {
		return nil, fmt.Errorf("onnx: load model %s: %w", path, err)
	}

	s := &Session{
		path:    path,
		inputs:  convertInfo(inInfo),
		outputs: convertInfo(outInfo),
		session: sess,
	}
	if cfg.inputShape != nil {
		s.inputShape = cfg.inputShape
	} else {
		s.inputShape = batchless(s.inputs[0].Dims)
	}
	return s, nil
}

// Path returns the model file path.
func (s *Session) Path() string { return s.path }

// Inputs returns the model's declared inputs.
func (s *Session) Inputs() []IOInfo { return s.inputs }

// Outputs returns the model's declared outputs.
func (s *Session) Outputs() []IOInfo { return s.outputs }

// InputShape returns the per-sample shape of the first input: its declared
// dimensions without the leading batch dimension. It returns nil when the
// shape is unknown because a non-batch dimension is dynamic.
func (s *Session) InputShape() tensor.Shape { return s.inputShape }

// Predict runs the model on a single input tensor and returns the first
// output. The input shape is passed to the runtime as is.
func (s *Session) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in == nil || len(in.Data) == 0 {
		return nil, errors.New("onnx: empty input tensor")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, ErrClosed
	}

	dims := make([]int64, len(in.Shape))
	for i, d := range in.Shape {
		dims[i] = int64(d)
	}
	input, err := ort.NewTensor(ort.NewShape(dims...), in.Data)
	if err != nil {
		return nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	defer outputs[0].Destroy()

	return fromValue(outputs[0])
}

// Close releases the session. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// fromValue copies a runtime output into a tensor.Tensor.
func fromValue(v ort.Value) (*tensor.Tensor, error) {
	shape := toShape(v.GetShape())
	var data []float32
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		data = append([]float32(nil), t.GetData()...)
	case *ort.Tensor[float64]:
		src := t.GetData()
		data = make([]float32, len(src))
		for i, x := range src {
			data[i] = float32(x)
		}
	default:
		return nil, fmt.Errorf("onnx: unsupported output type %T", v)
	}
	return tensor.New(shape, data)
}

func toShape(dims ort.Shape) tensor.Shape {
	s := make(tensor.Shape, len(dims))
	for i, d := range dims {
		s[i] = int(d)
	}
	return s
}

// batchless drops the batch dimension from declared input dims. Any
// remaining dynamic dimension makes the shape unknown (nil).
func batchless(dims []int64) tensor.Shape {
	if len(dims) == 0 {
		return tensor.Shape{}
	}
	s := make(tensor.Shape, 0, len(dims)-1)
	for _, d := range dims[1:] {
		if d <= 0 {
			return nil
		}
		s = append(s, int(d))
	}
	return s
}

func convertInfo(infos []ort.InputOutputInfo) []IOInfo {
	out := make([]IOInfo, len(infos))
	for i, info := range infos {
		out[i] = IOInfo{
			Name: info.Name,
			Dims: append([]int64(nil), info.Dimensions...),
			Type: fmt.Sprint(info.DataType),
		}
	}
	return out
}
