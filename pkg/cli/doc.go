// Package cli formats command results for the deepscan command-line tool.
//
// Results are written as YAML (the default), JSON, or styled text:
//
//	cli.Output(report, cli.OutputOptions{
//	    Format: cli.FormatText,
//	})
//
// Text output uses lipgloss styles; colors are dropped automatically when
// the destination is not a terminal.
package cli
