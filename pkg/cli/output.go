package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatText outputs a human-readable summary
	FormatText OutputFormat = "text"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatYAML, FormatJSON, FormatText:
		return f, nil
	case "":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Texter is implemented by results that have a text rendering.
type Texter interface {
	Text(s Styles) string
}

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, text)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer

	// Styles is used by FormatText; zero value uses DefaultStyles.
	Styles *Styles
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatText:
		styles := DefaultStyles()
		if opts.Styles != nil {
			styles = *opts.Styles
		}
		return outputText(w, result, styles)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputText(w io.Writer, result any, s Styles) error {
	switch v := result.(type) {
	case Texter:
		_, err := fmt.Fprintln(w, v.Text(s))
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(w, v.String())
		return err
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	default:
		return outputYAML(w, result)
	}
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
