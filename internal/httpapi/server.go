// Package httpapi exposes the relay's operational surface: health, config
// snapshot, recent-message listing, live stream (SSE and WebSocket), metrics,
// and the credential reload hook.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/bancho-relay/internal/core"
)

// Reloader re-reads credentials and reconnects the chat session.
type Reloader interface {
	ReloadBancho() error
}

// BuildInfo describes the compiled binary.
type BuildInfo struct {
	Version  string
	Revision string
	BuiltAt  time.Time
}

// Options configures the status server.
type Options struct {
	Addr            string
	CORSOrigins     []string
	RateLimitRPS    int
	RateLimitBurst  int
	EnableMetrics   bool
	EnableAccessLog bool
	EnablePprof     bool
	Build           BuildInfo
	ConfigSnapshot  map[string]any
	// Registry is shared with the relay pipeline collectors; nil creates a
	// private one.
	Registry *prometheus.Registry
	Reloader Reloader
	// RingSize caps the recent-message buffer; 0 means the default.
	RingSize int
}

type streamClient struct {
	filters   Filters
	transport string
}

type Server struct {
	opts       Options
	httpServer *http.Server
	mux        *http.ServeMux
	metrics    *Metrics
	limiter    *ipRateLimiter
	cors       *corsPolicy
	recent     *ring

	mu      sync.Mutex
	clients map[chan core.ChatEvent]streamClient
	closed  bool
}

func New(opts Options) *Server {
	srv := &Server{
		opts:    opts,
		mux:     http.NewServeMux(),
		limiter: newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:    newCORSPolicy(opts.CORSOrigins),
		recent:  newRing(opts.RingSize),
		clients: make(map[chan core.ChatEvent]streamClient),
	}
	if opts.EnableMetrics {
		srv.metrics = newMetrics(opts.Registry)
	}

	srv.mux.HandleFunc("/healthz", srv.wrap("/healthz", srv.handleHealthz))
	srv.mux.HandleFunc("/info", srv.wrap("/info", srv.handleInfo))
	srv.mux.HandleFunc("/configz", srv.wrap("/configz", srv.handleConfigz))
	srv.mux.HandleFunc("/messages", srv.wrap("/messages", srv.handleMessages))
	srv.mux.HandleFunc("/stream", srv.wrap("/stream", srv.handleStream))
	srv.mux.HandleFunc("/ws", srv.wrap("/ws", srv.handleWS))
	if srv.metrics != nil {
		srv.mux.Handle("/metrics", srv.metrics.Handler())
	}
	if opts.Reloader != nil {
		srv.mux.HandleFunc("/admin/bancho/reload", srv.wrap("/admin/bancho/reload", srv.handleReload))
	}
	if opts.EnablePprof {
		srv.mux.HandleFunc("/debug/pprof/", pprof.Index)
		srv.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		srv.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		srv.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Mux exposes the underlying mux so extra handlers can be registered before
// Start.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// wrap applies rate limiting, CORS, the access log, and request metrics.
func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newResponseRecorder(w)

		if !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
		} else if !s.cors.applyHeaders(rec, r) {
			http.Error(rec, "origin not allowed", http.StatusForbidden)
		} else {
			h(rec, r)
		}

		dur := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, rec.Status(), dur)
		if s.opts.EnableAccessLog {
			log.Printf("httpapi: %s %s %d %dB %s from %s", r.Method, r.URL.Path, rec.Status(), rec.bytes, dur.Round(time.Millisecond), remoteIP(r))
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type infoResponse struct {
	Version  string `json:"version"`
	Revision string `json:"rev"`
	BuiltAt  string `json:"built_at,omitempty"`
	Go       string `json:"go"`
	Recent   int    `json:"recent_messages"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	resp := infoResponse{
		Version:  s.opts.Build.Version,
		Revision: s.opts.Build.Revision,
		Go:       runtime.Version(),
		Recent:   s.recent.Count(),
	}
	if !s.opts.Build.BuiltAt.IsZero() {
		resp.BuiltAt = s.opts.Build.BuiltAt.UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleConfigz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(s.opts.ConfigSnapshot)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(s.recent.List(filters))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.opts.Reloader.ReloadBancho(); err != nil {
		http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
}

// Publish records an event in the recent buffer and fans it out to stream
// subscribers. Slow clients drop messages instead of blocking the pipeline.
func (s *Server) Publish(ev core.ChatEvent) {
	s.recent.Add(ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, client := range s.clients {
		if !client.filters.Matches(ev) {
			continue
		}
		select {
		case ch <- ev:
		default:
			s.metrics.IncBroadcastDrops(client.transport)
		}
	}
}

func (s *Server) subscribe(filters Filters, transport string) (chan core.ChatEvent, bool) {
	ch := make(chan core.ChatEvent, 256)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.clients[ch] = streamClient{filters: filters, transport: transport}
	return ch, true
}

func (s *Server) unsubscribe(ch chan core.ChatEvent) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) Start() error {
	log.Printf("httpapi: listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan core.ChatEvent]streamClient)
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
