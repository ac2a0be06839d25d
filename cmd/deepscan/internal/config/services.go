package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/haivivi/deepscan/pkg/api"
	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/tensor"
)

// Service file names within a context.
const (
	DetectorService = "detector"
	ServerService   = "server"
	StorageService  = "storage"
	ScanlogService  = "scanlog"
)

// DetectorConfig is detector.yaml.
type DetectorConfig struct {
	Model      string `yaml:"model"`
	ORTLibrary string `yaml:"ort_library,omitempty"`
	// InputShape documents the model input (batch excluded) when the model
	// declares dynamic dimensions.
	InputShape  []int   `yaml:"input_shape,omitempty"`
	SampleRate  int     `yaml:"sample_rate"`
	MaxDuration float64 `yaml:"max_duration"` // seconds; 0 decodes the whole file
	NumCoeffs   int     `yaml:"n_mfcc"`
	Threshold   float64 `yaml:"threshold"`
	Threads     int     `yaml:"intra_op_threads,omitempty"`
}

// Options converts the detector settings to classify.Options.
func (d *DetectorConfig) Options() classify.Options {
	return classify.Options{
		SampleRate:  d.SampleRate,
		MaxDuration: time.Duration(d.MaxDuration * float64(time.Second)),
		NumCoeffs:   d.NumCoeffs,
		Threshold:   classify.Threshold(d.Threshold),
	}
}

// Shape returns InputShape as a tensor.Shape, or nil when unset.
func (d *DetectorConfig) Shape() tensor.Shape {
	if len(d.InputShape) == 0 {
		return nil
	}
	return tensor.Shape(d.InputShape)
}

// Validate checks the detector settings.
func (d *DetectorConfig) Validate() error {
	if math.IsNaN(d.Threshold) {
		return errors.New("detector: threshold is NaN")
	}
	if d.MaxDuration < 0 {
		return fmt.Errorf("detector: max_duration %v is negative", d.MaxDuration)
	}
	for _, n := range d.InputShape {
		if n <= 0 {
			return fmt.Errorf("detector: input_shape %v has a non-positive dimension", d.InputShape)
		}
	}
	return nil
}

// ServerConfig is server.yaml.
type ServerConfig struct {
	Listen         string `yaml:"listen"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	FetchTimeout   int    `yaml:"fetch_timeout"` // seconds
}

// Options converts the server settings to api.Options.
func (s *ServerConfig) Options() api.Options {
	return api.Options{
		MaxUploadBytes: s.MaxUploadBytes,
		FetchTimeout:   time.Duration(s.FetchTimeout) * time.Second,
	}
}

// Storage kinds.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// StorageConfig is storage.yaml.
type StorageConfig struct {
	Kind            string `yaml:"kind"`
	Dir             string `yaml:"dir,omitempty"`
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
}

func (s *StorageConfig) validate() error {
	switch s.Kind {
	case StorageLocal:
		if s.Dir == "" {
			return errors.New("storage: dir is required for local storage")
		}
	case StorageS3:
		if s.Bucket == "" {
			return errors.New("storage: bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("storage: unknown kind %q (want local or s3)", s.Kind)
	}
	return nil
}

// ScanlogConfig is scanlog.yaml.
type ScanlogConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
}

// Services is the resolved configuration of one context.
type Services struct {
	Detector DetectorConfig `yaml:"detector"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Scanlog  ScanlogConfig  `yaml:"scanlog"`
}

// DefaultServices returns the settings used when no file overrides them.
// Data directories live under dataDir.
func DefaultServices(dataDir string) *Services {
	return &Services{
		Detector: DetectorConfig{
			Model:      "voicemodel.onnx",
			SampleRate: classify.DefaultSampleRate,
			NumCoeffs:  classify.DefaultNumCoeffs,
			Threshold:  classify.DefaultThreshold,
		},
		Server: ServerConfig{
			Listen:         ":8080",
			MaxUploadBytes: 50 << 20,
			FetchTimeout:   15,
		},
		Storage: StorageConfig{
			Kind: StorageLocal,
			Dir:  filepath.Join(dataDir, "media"),
		},
		Scanlog: ScanlogConfig{
			Dir: filepath.Join(dataDir, "scans"),
		},
	}
}

// LoadServices reads every service file in contextDir over the defaults.
// Missing files keep their defaults. An empty contextDir returns the
// defaults for dataDir ".".
func LoadServices(contextDir string) (*Services, error) {
	dataDir := contextDir
	if dataDir == "" {
		dataDir = "."
	}
	s := DefaultServices(dataDir)
	if contextDir == "" {
		return s, nil
	}
	for _, f := range []struct {
		name string
		v    any
	}{
		{DetectorService, &s.Detector},
		{ServerService, &s.Server},
		{StorageService, &s.Storage},
		{ScanlogService, &s.Scanlog},
	} {
		if err := loadInto(contextDir, f.name, f.v); err != nil && !errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
	}
	if err := s.Detector.Validate(); err != nil {
		return nil, err
	}
	if err := s.Storage.validate(); err != nil {
		return nil, err
	}
	return s, nil
}
