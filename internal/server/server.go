// Package server is the pdcpctl admin HTTP surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/pdcpmux/internal/auth"
	"github.com/danmuck/pdcpmux/internal/observability"
	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Multiplexer is what the admin routes read and drive.
type Multiplexer interface {
	pdcp.Tuning
	Bearers() []pdcp.BearerStatus
	CheckLCID(lcid uint32) error
	CheckMCHLCID(lcid uint32) error
	Metrics() pdcp.Metrics
	PrimaryDataBearer() uint32
	Reset()
	Reestablish()
	Stopped() bool
}

// Throughput reports the aggregation meter window; optional.
type Throughput func() pdcp.AggregationMetrics

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	mux        Multiplexer
	throughput Throughput
	validator  auth.Validator
	router     *gin.Engine
	log        zerolog.Logger
}

type Option func(*Server)

func WithThroughput(fn Throughput) Option {
	return func(s *Server) { s.throughput = fn }
}

// WithAuth requires a bearer token on routes that change state.
func WithAuth(v auth.Validator) Option {
	return func(s *Server) { s.validator = v }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// New builds the router with recovery, request logging, request metrics and
// CORS. Routes are added by RegisterRoutes.
func New(id, addr string, corsOrigins []string, mux Multiplexer, opts ...Option) *Server {
	observability.RegisterMetrics()
	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		mux:      mux,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log))
	r.Use(observability.RequestMetrics(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.router = r
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve registers routes and blocks until ctx is done or the listener
// fails. Shutdown waits for in-flight requests up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Msg("server.Server.Serve listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info().Msg("server.Server.Serve shutdown")
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
