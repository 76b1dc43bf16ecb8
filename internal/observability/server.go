package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MDylan95/sma-trafic/internal/scheduler"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observability is a read-only local-dashboard surface, not a
	// public API; any origin may open the stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the observability HTTP/WebSocket server. It reads world
// and scheduler state; it never mutates either.
type Server struct {
	address string
	port    int
	world   *world.World
	sched   *scheduler.Scheduler
	events  *Bus
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a Server bound to address:port, reading live state
// from w and sched. A nil logger is replaced with slog.Default.
func NewServer(address string, port int, w *world.World, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		world:   w,
		sched:   sched,
		events:  NewBus(),
		logger:  logger,
	}
}

// Publish broadcasts a KPI snapshot to every connected /stream client.
// The scheduler's caller (cmd/trafficsim) calls this once per snapshot
// interval; a nil Server is never required to call it since callers
// hold their own reference, but Publish itself tolerates a nil Bus.
func (s *Server) Publish(snap scheduler.Snapshot) {
	s.events.Publish(snap)
}

// Start begins serving HTTP requests. It blocks until the server is
// shut down via Shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // /stream holds its connection open indefinitely
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting observability server", "address", addr, "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := buildSnapshot(s.world, s.sched)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, snap, s.logger)
}

// handleStream upgrades the connection to a WebSocket and pushes every
// KPI snapshot published via Publish until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.events.Subscribe(32)
	defer s.events.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
