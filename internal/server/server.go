package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/torosent/crankstore/internal/metrics"
)

// Server serves a metrics.Registry over HTTP.
type Server struct {
	registry *metrics.Registry
	logger   zerolog.Logger
	router   *mux.Router
	http     *http.Server
	done     chan error
}

// New builds a server for registry listening on addr. Nothing is bound until
// Start is called.
func New(addr string, registry *metrics.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		logger:   logger.With().Str("component", "server").Logger(),
		router:   mux.NewRouter(),
	}

	prom := prometheus.NewRegistry()
	prom.MustRegister(newRegistryCollector(registry))
	prom.MustRegister(collectors.NewGoCollector())

	s.router.HandleFunc("/api/metrics", s.listMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics/{name}", s.getMetrics).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(prom, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.Use(s.loggingMiddleware)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. It returns the bound
// address, which differs from the configured one when the port is 0.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return "", err
	}
	s.done = make(chan error, 1)
	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return ln.Addr().String(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}

func (s *Server) listMetrics(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.registry.Snapshot())
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	m, err := s.registry.GetByName(name)
	if err != nil {
		s.logger.Debug().Err(err).Str("name", name).Msg("metrics lookup failed")
		writeError(w, err)
		return
	}
	writeResult(w, m)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().Str("method", r.Method).Str("uri", r.RequestURI).Msg("request")
		next.ServeHTTP(w, r)
	})
}
