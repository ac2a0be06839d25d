package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/config"
)

var (
	// Global flags
	verbose     bool
	contextName string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "deepscan",
	Short: "Deepfake detection for audio media",
	Long: `deepscan - detect synthetic speech in audio files.

Audio is decoded, resampled, turned into MFCC features, adapted to the
model's input shape and scored by an ONNX classifier. The result is a
label (fake or real) and the probability that the clip is fake.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/deepscan/
  Linux:   ~/.config/deepscan/
  Windows: %AppData%/deepscan/

Use 'deepscan config' to manage contexts and service configurations.

Examples:
  # Classify one file
  deepscan detect --model voicemodel.onnx clip.wav

  # Show what the model expects
  deepscan inspect --model voicemodel.onnx --audio clip.wav

  # Run the HTTP API with the current context
  deepscan config add-context dev
  deepscan config use-context dev
  deepscan config set detector model /models/voicemodel.onnx
  deepscan serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "config context (default: current context)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load()
	if err != nil {
		// Commands that need config get the error from GetConfig; the
		// rest (detect with flags, version) still run.
		configLoadErr = err
		return
	}
	configLoadErr = nil
	globalConfig = cfg
}

// GetConfig returns the global configuration.
// Returns an error if the config could not be loaded (e.g., HOME not set).
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// loadServices resolves the service configuration of the --context flag,
// else the current context. Without either, every service takes its
// defaults.
func loadServices() (*config.Services, error) {
	cfg, err := GetConfig()
	if err != nil {
		if contextName != "" {
			return nil, err
		}
		return config.LoadServices("")
	}
	if contextName == "" && cfg.CurrentContext == "" {
		return config.LoadServices("")
	}
	dir, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, err
	}
	slog.Debug("using context", "dir", dir)
	return config.LoadServices(dir)
}

// writerFor returns the command's stdout unless output goes to a file.
func writerFor(cmd *cobra.Command, file string) io.Writer {
	if file != "" {
		return nil
	}
	return cmd.OutOrStdout()
}
