// Package httpapi exposes a Registry over HTTP and coordinates the server's
// graceful shutdown between the DELETE /jobs route and SIGINT.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kkloberdanz/jobrun/job"
	"github.com/kkloberdanz/jobrun/registry"
)

// DefaultAddress is used when no bind address is given.
const DefaultAddress = "127.0.0.1:3030"

// maxJobBodyBytes is the content-length limit applied to every Job JSON
// body.
const maxJobBodyBytes = 16 * 1024

// Server binds a TCP socket and routes the REST surface of §6 to Registry
// operations, converting registry errors to HTTP status codes.
type Server struct {
	reg        *registry.Registry
	engine     *gin.Engine
	httpServer *http.Server
	shutdownCh chan struct{}
}

// New builds a Server around reg. Call Run to actually bind and serve.
func New(reg *registry.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		reg:        reg,
		engine:     engine,
		shutdownCh: make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	jobs := s.engine.Group("/jobs")
	jobs.GET("", s.listJobs)
	jobs.POST("", s.createJob)
	jobs.POST("/", s.createJob)
	jobs.DELETE("", s.clearJobs)
	jobs.GET("/:id", s.waitJob)
	jobs.PUT("/:id", s.updateJob)
	jobs.DELETE("/:id", s.deleteJob)
	jobs.GET("/:id/files", s.listJobFiles)
	jobs.GET("/:id/files/:name", s.getJobFile)
	jobs.PUT("/:id/files/:name", s.putJobFile)
}

// ServeHTTP lets Server itself act as an http.Handler, primarily so tests
// can drive routes without a real network listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Run resolves addr (DefaultAddress if empty), binds, and serves until
// either DELETE /jobs or SIGINT triggers a graceful shutdown, whichever
// comes first cancelling the other path cleanly.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddress
	}

	resolved, err := resolveBindAddress(addr)
	if err != nil {
		return fmt.Errorf("httpapi: %w", err)
	}

	listener, err := net.Listen("tcp", resolved)
	if err != nil {
		return fmt.Errorf("httpapi: failed to listen on %s: %w", resolved, err)
	}

	s.httpServer = &http.Server{Handler: s.engine}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- s.httpServer.Serve(listener)
	}()

	slog.Info("server listening", "addr", resolved)

	select {
	case <-s.shutdownCh:
		slog.Info("shutdown requested via DELETE /jobs")
	case <-ctx.Done():
		slog.Info("shutdown requested via interrupt")
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("httpapi: serve failed: %w", err)
		}
		return nil
	}

	s.reg.ClearJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: graceful shutdown failed: %w", err)
	}

	slog.Info("server finished")
	return nil
}

// resolveBindAddress resolves host:port, preferring an IPv4 address if the
// host resolves to more than one.
func resolveBindAddress(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("bad address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		// Not a hostname (e.g. already a literal IP); let net.Listen sort it
		// out directly.
		return addr, nil
	}

	chosen := ips[0]
	for _, ip := range ips {
		if ip.To4() != nil {
			chosen = ip
			break
		}
	}
	if len(ips) > 1 && chosen.To4() == nil {
		slog.Warn("no IPv4 address found for host, using first resolved address", "host", host, "addr", chosen)
	}

	return net.JoinHostPort(chosen.String(), port), nil
}

func registryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, job.ErrAlreadyStarted):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
