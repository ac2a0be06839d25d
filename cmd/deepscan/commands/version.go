package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/build"
	"github.com/haivivi/deepscan/pkg/cli"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFormat)
		if err != nil {
			return err
		}
		if format != cli.FormatText {
			return cli.Output(build.Get(), cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if IsVerbose() {
			fmt.Fprintf(out, "  go:     %s\n", build.Get().Go)
			if cfg, err := GetConfig(); err == nil {
				fmt.Fprintf(out, "  config: %s\n", cfg.Dir)
			} else {
				fmt.Fprintf(out, "  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format: text, json, yaml")
	rootCmd.AddCommand(versionCmd)
}
