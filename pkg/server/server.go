// Package server exposes the codec state machines over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/codec"
	"github.com/user/codecbridge/pkg/ports"
	"github.com/user/codecbridge/pkg/transcode"
)

// DefaultListen is used by ListenAndServe when addr is empty.
const DefaultListen = ":3001"

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Launcher ports.BackendLauncher
	Logger   ports.Logger

	// Registry receives the HTTP metrics and is served on /metrics.
	// Nil creates a private registry.
	Registry *prometheus.Registry

	MaxUploadBytes    int64
	MaxConcurrentJobs int64
	FlushTimeout      time.Duration
	TranscodeTimeout  time.Duration

	// Decoder supplies the default codec and coded size for /decode.
	Decoder codec.DecoderConfig
}

// Server is the HTTP front end.
type Server struct {
	opts       Options
	log        ports.Logger
	jobs       *semaphore.Weighted
	transcoder *transcode.Transcoder
	metrics    *httpMetrics
	handler    http.Handler
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 4
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = ports.DefaultFlushTimeout
	}
	if opts.Decoder.Codec == "" {
		opts.Decoder.Codec = "vp8"
	}
	if opts.Decoder.CodedWidth <= 0 || opts.Decoder.CodedHeight <= 0 {
		opts.Decoder.CodedWidth, opts.Decoder.CodedHeight = 640, 480
	}

	log := opts.Logger.WithComponent("server")
	tr := transcode.New(opts.Launcher, opts.Logger)
	if opts.TranscodeTimeout > 0 {
		tr.Timeout = opts.TranscodeTimeout
	}

	s := &Server{
		opts:       opts,
		log:        log,
		jobs:       semaphore.NewWeighted(opts.MaxConcurrentJobs),
		transcoder: tr,
		metrics:    newHTTPMetrics(opts.Registry),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodPost, "/encode", s.limit(s.handleEncode))
	router.HandlerFunc(http.MethodPost, "/decode", s.limit(s.handleDecode))
	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return s.requestID(s.cors(s.accessLog(router)))
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening on %s", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
