package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/statusbar/internal/metrics"
	"github.com/jpalmerr/statusbar/internal/page"
	"github.com/jpalmerr/statusbar/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// ClientScriptPath is where the browser client script is served.
	ClientScriptPath = "/assets/statusbar.js"

	// EventsPath is the SSE endpoint the client script connects to.
	EventsPath = "/api/sse"
)

// Renderer produces the HTML of the page being served.
type Renderer interface {
	Render() (string, error)
}

// Server handles HTTP requests for the job page and its API.
//
// Server provides these endpoints:
//   - GET /: Serves the current job page with live indicators
//   - GET /api/jobs: Returns all jobs as JSON
//   - GET /api/sse: Server-Sent Events stream for updates and reloads
//   - GET /assets/*: Serves the embedded client script
//   - GET /metrics: Prometheus metrics (when a collector is set)
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	page       Renderer
	port       int
	httpServer *http.Server
	assets     fs.FS
	metrics    *metrics.Collector
	logger     *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for job data
//   - pg: Renderer for the served page
//   - port: TCP port to listen on
//   - assets: Embedded filesystem with an "assets" directory (may be nil)
//   - collector: Prometheus collector; nil disables /metrics
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, pg Renderer, port int, assets fs.FS, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		page:    pg,
		port:    port,
		assets:  assets,
		metrics: collector,
		logger:  logger,
	}
}

// Handler builds the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/", s.handlePage)
	r.Get("/api/jobs", s.handleJobs)
	r.Get(EventsPath, s.handleSSE)

	if s.assets != nil {
		if sub, err := fs.Sub(s.assets, "assets"); err == nil {
			r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(sub))))
		} else {
			s.logger.Error("failed to open embedded assets", "error", err)
		}
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handlePage serves the current job page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.page == nil {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	content, err := s.page.Render()
	if errors.Is(err, page.ErrNoPage) {
		http.Error(w, "Page not loaded yet", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "Page not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err = w.Write([]byte(content)); err != nil {
		s.logger.Error("failed to write page response", "error", err)
	}
}

// handleJobs returns all jobs as JSON.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.store.GetAll()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(jobs); err != nil {
		s.logger.Error("failed to encode jobs response", "error", err)
	}
}

// handleSSE streams job events via Server-Sent Events.
//
// Every connection first receives one update event per known job, then live
// update and reload events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking forever.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no update falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send initial jobs (also protected by write deadline)
	for _, job := range s.store.GetAll() {
		data, err := json.Marshal(store.Event{Type: store.EventUpdate, Job: &job})
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	// stream events
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
