package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/config"
	"github.com/haivivi/deepscan/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and service configurations.

A context is a named directory holding per-service YAML config files:
detector.yaml, server.yaml, storage.yaml and scanlog.yaml. Settings a
context does not name take their defaults.

Examples:
  deepscan config list
  deepscan config add-context prod
  deepscan config use-context prod
  deepscan config current-context
  deepscan config set detector model /models/voicemodel.onnx
  deepscan config set detector input_shape "[130, 40]"
  deepscan config -c prod set storage kind s3
  deepscan config show`,
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "list-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: deepscan config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVICES")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			services, _ := config.ListServices(cfg.ContextDir(name))
			fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, strings.Join(services, ", "))
		}
		return w.Flush()
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		if err := cfg.AddContext(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q created.\n", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context and all its service configs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <service> <key> <value>",
	Short: "Set a service config value",
	Long: `Set a key in a service's YAML file in the selected context.

Values are parsed as YAML, so numbers, booleans and flow lists keep
their type.

Examples:
  deepscan config set detector threshold 0.7
  deepscan config set server listen :9000
  deepscan config set storage kind s3
  deepscan config set scanlog in_memory true`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		service, key, value := args[0], args[1], args[2]

		dir, err := cfg.ResolveContext(contextName)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("context directory %s not found", dir)
		}
		if err := config.SetValue(dir, service, key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s = %s\n", service, key, value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration of a context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}
		if svc.Storage.SecretAccessKey != "" {
			svc.Storage.SecretAccessKey = "********"
		}
		return cli.Output(svc, cli.OutputOptions{Format: cli.FormatYAML, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(configCmd)
}
