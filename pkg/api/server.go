// Package api serves the detection pipeline over HTTP.
//
// Routes:
//
//	GET  /health                  liveness
//	POST /api/v1/media            multipart upload (media_type, file)
//	POST /api/v1/scans            scan a remote file: {"url", "media_type"}
//	GET  /api/v1/scans            recent scans, newest first (?limit=N)
//	GET  /api/v1/scans/{id}       one scan
//	GET  /api/v1/scans/watch      websocket feed of completed scans
//
// Uploaded and fetched media is kept in a [storage.FileStore]; every scan is
// recorded in a [scanlog.Log]. Only audio is analyzed; image and video are
// stored and recorded with status "unsupported".
package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/scanlog"
	"github.com/haivivi/deepscan/pkg/storage"
)

// Detector classifies a local audio file. [*classify.Classifier] satisfies it.
type Detector interface {
	ClassifyFile(ctx context.Context, path string, opts classify.Options) (*classify.Verdict, error)
}

// Options configures a Server. Zero fields take defaults.
type Options struct {
	// MaxUploadBytes limits uploaded and fetched media (default 50 MiB).
	MaxUploadBytes int64

	// FetchTimeout bounds remote media downloads (default 15s).
	FetchTimeout time.Duration

	// Detect is passed to the Detector for every audio scan.
	Detect classify.Options

	// HTTPClient fetches remote media. Nil builds one with FetchTimeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

const (
	defaultMaxUploadBytes = 50 << 20
	defaultFetchTimeout   = 15 * time.Second
)

// Server is the HTTP front end.
type Server struct {
	detector Detector
	store    storage.FileStore
	scans    *scanlog.Log
	hub      *hub
	opts     Options
	log      *slog.Logger
	client   *http.Client
}

// New creates a Server. All three collaborators are required.
func New(detector Detector, store storage.FileStore, scans *scanlog.Log, opts Options) (*Server, error) {
	if detector == nil || store == nil || scans == nil {
		return nil, errors.New("api: detector, store and scan log are required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &Server{
		detector: detector,
		store:    store,
		scans:    scans,
		hub:      newHub(opts.Logger),
		opts:     opts,
		log:      opts.Logger,
		client:   client,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/media", s.handleUpload)
	mux.HandleFunc("POST /api/v1/scans", s.handleScanURL)
	mux.HandleFunc("GET /api/v1/scans", s.handleListScans)
	mux.HandleFunc("GET /api/v1/scans/watch", s.handleWatch)
	mux.HandleFunc("GET /api/v1/scans/{id}", s.handleGetScan)
	return s.logRequests(mux)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.close()
		return err
	case <-ctx.Done():
	}

	s.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("api server stopped")
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
