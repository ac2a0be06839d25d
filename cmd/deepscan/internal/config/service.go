package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ErrServiceNotFound is returned by LoadService when the service file does
// not exist in the context.
var ErrServiceNotFound = errors.New("service config not found")

// ValidateServiceName checks that a service name is non-empty and safe for
// use as a filename.
func ValidateServiceName(service string) error {
	if service == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(service, `/\`) {
		return fmt.Errorf("service name %q must not contain path separators", service)
	}
	if strings.HasPrefix(service, ".") {
		return fmt.Errorf("service name %q must not start with '.'", service)
	}
	return nil
}

// ServicePath returns the YAML file path for a service within a context.
// For example, ServicePath("dev", "detector") → ".../contexts/dev/detector.yaml".
func (c *Config) ServicePath(context, service string) string {
	return filepath.Join(c.ContextDir(context), service+".yaml")
}

// LoadService loads a service configuration from the given context directory.
// The service name maps to a YAML file: "{contextDir}/{service}.yaml".
func LoadService[T any](contextDir, service string) (*T, error) {
	var v T
	if err := loadInto(contextDir, service, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// loadInto decodes the service file over v, keeping fields the file omits.
func loadInto(contextDir, service string, v any) error {
	path := filepath.Join(contextDir, service+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q (expected: %s)", ErrServiceNotFound, service, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// SaveService writes a service configuration to the given context directory.
func SaveService[T any](contextDir, service string, v *T) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	path := filepath.Join(contextDir, service+".yaml")

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", service, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SetValue sets key in a service file, creating the file if needed. The
// value is parsed as a YAML scalar or flow sequence, so "0.7" is stored as
// a number and "[130, 40]" as a list.
func SetValue(contextDir, service, key, value string) error {
	if err := ValidateServiceName(service); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	m := map[string]any{}
	if err := loadInto(contextDir, service, &m); err != nil && !errors.Is(err, ErrServiceNotFound) {
		return fmt.Errorf("cannot read existing %s config: %w", service, err)
	}
	// An empty file decodes to a nil map.
	if m == nil {
		m = map[string]any{}
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	m[key] = parsed

	return SaveService(contextDir, service, &m)
}

// ListServices returns the service names configured in a context directory.
// Each .yaml file corresponds to one service.
func ListServices(contextDir string) ([]string, error) {
	entries, err := os.ReadDir(contextDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list services: %w", err)
	}

	var services []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			services = append(services, name[:len(name)-len(ext)])
		}
	}
	return services, nil
}
