package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/deepscan/cmd/deepscan/internal/config"
	"github.com/haivivi/deepscan/pkg/api"
	"github.com/haivivi/deepscan/pkg/cli"
	"github.com/haivivi/deepscan/pkg/scanlog"
	"github.com/haivivi/deepscan/pkg/storage"
)

var (
	serveOpts     detectorFlags
	serveListen   string
	serveInMemory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API for media upload and deepfake scans.

Endpoints:
  GET  /health                 liveness
  POST /api/v1/media           multipart upload (media_type, file)
  POST /api/v1/scans           scan a remote URL {"url", "media_type"}
  GET  /api/v1/scans           recent scans (?limit=N)
  GET  /api/v1/scans/{id}      one scan
  GET  /api/v1/scans/watch     websocket stream of new scans

Settings come from server.yaml, storage.yaml, scanlog.yaml and
detector.yaml in the selected context.

Examples:
  deepscan serve --model voicemodel.onnx --listen :8080
  deepscan serve -c prod`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveOpts.registerModel(serveCmd.Flags())
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: server.listen)")
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "keep the scan log in memory")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	svc, err := loadServices()
	if err != nil {
		return err
	}
	serveOpts.apply(cmd.Flags(), &svc.Detector)
	if err := svc.Detector.Validate(); err != nil {
		return err
	}
	if serveListen != "" {
		svc.Server.Listen = serveListen
	}
	if serveInMemory {
		svc.Scanlog.InMemory = true
	}

	c, m, err := newClassifier(&svc.Detector)
	if err != nil {
		return err
	}
	defer m.Close()

	store, err := openStore(&svc.Storage)
	if err != nil {
		return err
	}
	scans, err := scanlog.Open(scanlog.Options{
		Dir:      svc.Scanlog.Dir,
		InMemory: svc.Scanlog.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer scans.Close()

	opts := svc.Server.Options()
	opts.Detect = svc.Detector.Options()
	opts.Logger = logger
	srv, err := api.New(c, store, scans, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("detector ready",
		"addr", svc.Server.Listen,
		"model", svc.Detector.Model,
		"storage", svc.Storage.Kind,
		"max_upload", cli.Size(opts.MaxUploadBytes))
	if err := srv.Serve(ctx, svc.Server.Listen); err != nil {
		return err
	}
	logger.Info("shut down")
	return nil
}

// openStore builds the media store described by s.
func openStore(s *config.StorageConfig) (storage.FileStore, error) {
	switch s.Kind {
	case config.StorageLocal:
		return storage.NewLocal(s.Dir)
	case config.StorageS3:
		client := storage.NewS3Client(storage.S3Options{
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			PathStyle:       s.PathStyle,
		})
		return storage.NewS3(client, s.Bucket, s.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", s.Kind)
	}
}
